package intr

import "strconv"

// Handle 定时器句柄, 在注册表生命周期内唯一, 不复用.
type Handle uint64

// HandleNone 不会被分配的句柄.
const HandleNone Handle = 0

func (h Handle) String() string {
	return "timer-" + strconv.FormatUint(uint64(h), 10)
}

// Fire 一次触发.
// 同一句柄的 Seq 严格递增(从1开始), NowMs 不递减.
type Fire struct {
	Handle Handle
	Seq    uint64 // 按进入处理的顺序分配, 不是原生到期的顺序
	// NowMs 到期时间戳, 被夹到不小于同一句柄上一次的值.
	// AllowOverlap 下迟到的触发会拿到较新触发的时间戳和新的 Seq, 乱序不会被报告.
	NowMs int64

	cancel func() error
}

// Cancel 在处理函数内部取消自身定时器. 不等待当前触发(否则会死锁),
// 负载在最后一个在途触发返回后释放. 在外部请使用 Registry.Cancel.
func (f *Fire) Cancel() error {
	if f.cancel == nil {
		return ErrUnknownHandle.Printf("%v: cancel not available in this context", f.Handle)
	}
	return f.cancel()
}
