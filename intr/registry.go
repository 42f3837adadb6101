package intr

import (
	"sync"

	"github.com/rs/xid"
	"go.uber.org/multierr"

	"github.com/fixkme/gointr/mlog"
)

// workerTimer 一个活跃的工作协程型定时器.
type workerTimer struct {
	h        Handle
	periodMs int64
	once     bool
	g        *gate
	inv      invoker
	serial   *sync.Mutex // SerializeFires 时非空
	native   NativeHandle
	registry *Registry

	// 以下由 registry.mu 保护
	arming    bool // Arm 尚未返回, native 无效
	cancelled bool // 布防期间被取消, 由 Register 撤防
}

// dispatchWorker 原生层回调入口, arg 总是 *workerTimer.
func dispatchWorker(arg any, nowMs int64) {
	t, ok := arg.(*workerTimer)
	if !ok {
		mlog.Errorf("intr worker dispatch with foreign arg %T", arg)
		return
	}
	t.fire(nowMs)
}

func (t *workerTimer) fire(nowMs int64) {
	// 串行时先拿锁再分配序号, 处理函数看到的 Seq 才是递增的
	if t.serial != nil {
		t.serial.Lock()
		defer t.serial.Unlock()
	}
	seq, ts, ok := t.g.enter(nowMs)
	if !ok {
		return
	}
	defer t.g.leave()
	t.inv.invoke(&Fire{
		Handle: t.h,
		Seq:    seq,
		NowMs:  ts,
		cancel: t.cancelSelf,
	})
}

func (t *workerTimer) cancelSelf() error {
	return t.registry.cancel(t.h, false)
}

// Registry 工作协程型定时器注册表.
type Registry struct {
	id        string
	facility  Facility
	policy    OverlapPolicy
	maxTimers int

	mu      sync.Mutex
	genId  uint64
	timers map[Handle]*workerTimer // 含正在布防的定时器
	closed bool
}

func NewRegistry(facility Facility, options ...Option) *Registry {
	opts := &optionSet{}
	for _, o := range options {
		o(opts)
	}
	return &Registry{
		id:        xid.New().String(),
		facility:  facility,
		policy:    opts.policy,
		maxTimers: opts.maxTimers,
		timers:    make(map[Handle]*workerTimer),
	}
}

// ID 注册表实例ID, 用于日志.
func (r *Registry) ID() string { return r.id }

// Policy 当前生效的重叠策略.
func (r *Registry) Policy() OverlapPolicy { return r.policy }

// Len 活跃定时器数量.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Active 句柄是否仍然注册.
func (r *Registry) Active(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[h]
	return ok
}

// Fires 句柄已开始的触发次数.
func (r *Registry) Fires(h Handle) (uint64, error) {
	r.mu.Lock()
	t, ok := r.timers[h]
	r.mu.Unlock()
	if !ok {
		return 0, ErrUnknownHandle.Printf("%v", h)
	}
	return t.g.fires(), nil
}

// Register 注册周期定时器, 每 periodMs 毫秒以绑定的负载调用一次处理函数.
// 失败时不会留下任何已布防的定时源.
func (r *Registry) Register(periodMs int64, b WorkerBindable, options ...RegisterOption) (Handle, error) {
	if periodMs <= 0 {
		return HandleNone, ErrRegistration.Printf("invalid period %d ms", periodMs)
	}
	if b == nil {
		return HandleNone, ErrRegistration.Printf("nil binding")
	}
	inv := b.newInvoker()
	if !inv.valid() {
		return HandleNone, ErrRegistration.Printf("nil handler")
	}
	opts := applyRegisterOptions(options)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return HandleNone, ErrRegistration.Printf("registry %s closed", r.id)
	}
	if r.maxTimers > 0 && len(r.timers) >= r.maxTimers {
		r.mu.Unlock()
		return HandleNone, ErrRegistration.Printf("timer limit %d reached", r.maxTimers)
	}
	r.genId++
	t := &workerTimer{
		h:        Handle(r.genId),
		periodMs: periodMs,
		once:     opts.once,
		g:        newGate(),
		inv:      inv,
		registry: r,
		arming:   true,
	}
	if r.policy == SerializeFires {
		t.serial = &sync.Mutex{}
	}
	// Arm 返回前就可能触发, 处理函数里的 Fire.Cancel 要能找到它
	r.timers[t.h] = t
	r.mu.Unlock()

	native, err := r.facility.Arm(periodMs, !opts.once, dispatchWorker, t)

	r.mu.Lock()
	t.arming = false
	if err != nil {
		delete(r.timers, t.h)
		r.mu.Unlock()
		t.g.close(inv.release)
		mlog.Warnf("intr registry %s arm %v failed: %v", r.id, t.h, err)
		return HandleNone, ErrRegistration.Printf("arm %d ms", periodMs).Wrap(err)
	}
	t.native = native
	if r.closed {
		delete(r.timers, t.h)
		r.mu.Unlock()
		err = multierr.Append(ErrRegistration.Printf("registry %s closed", r.id), r.release(t, true))
		return HandleNone, err
	}
	if t.cancelled {
		// 布防期间处理函数已取消自身, 句柄照常返回但已失效
		r.mu.Unlock()
		if err = r.release(t, true); err != nil {
			return HandleNone, err
		}
		mlog.Debugf("intr registry %s %v cancelled while arming", r.id, t.h)
		return t.h, nil
	}
	r.mu.Unlock()

	mlog.Debugf("intr registry %s registered %v period=%dms once=%v policy=%v", r.id, t.h, periodMs, opts.once, r.policy)
	return t.h, nil
}

// Cancel 撤防并移除定时器, 阻塞到没有在途触发使用该绑定为止, 返回后负载引用已释放.
// 在该定时器自己的处理函数中请使用 Fire.Cancel.
func (r *Registry) Cancel(h Handle) error {
	return r.cancel(h, true)
}

func (r *Registry) cancel(h Handle, wait bool) error {
	r.mu.Lock()
	t, ok := r.timers[h]
	if ok {
		delete(r.timers, h)
	}
	arming := ok && t.arming
	if arming {
		t.cancelled = true
	}
	r.mu.Unlock()
	if !ok {
		return ErrUnknownHandle.Printf("%v", h)
	}
	if arming {
		// 原生句柄还没有, 撤防留给 Register
		t.g.close(t.inv.release)
		if wait {
			t.g.wait()
		}
		return nil
	}
	err := r.release(t, wait)
	mlog.Debugf("intr registry %s cancelled %v fires=%d", r.id, h, t.g.fires())
	return err
}

// release 关闭闸门 -> 撤防 -> (可选)等待排空.
func (r *Registry) release(t *workerTimer, wait bool) error {
	t.g.close(t.inv.release)
	var err error
	if derr := r.facility.Disarm(t.native); derr != nil {
		err = ErrDisarm.Printf("%v", t.h).Wrap(derr)
	}
	if wait {
		t.g.wait()
	}
	return err
}

// Close 取消全部定时器, 之后的 Register 失败.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	timers := make([]*workerTimer, 0, len(r.timers))
	for h, t := range r.timers {
		// 正在布防的由 Register 看到 closed 后释放
		if !t.arming {
			timers = append(timers, t)
			delete(r.timers, h)
		}
	}
	r.mu.Unlock()

	var err error
	for _, t := range timers {
		err = multierr.Append(err, r.release(t, true))
	}
	mlog.Infof("intr registry %s closed, %d timers cancelled", r.id, len(timers))
	return err
}

// Payload 以类型 T 读取句柄绑定的负载. T 与注册时的类型不一致返回 ErrPayloadTypeMismatch.
func Payload[T any](r *Registry, h Handle) (T, error) {
	var zero T
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[h]
	if !ok {
		return zero, ErrUnknownHandle.Printf("%v", h)
	}
	ti, ok := t.inv.(*typedInvoker[T])
	if !ok {
		return zero, ErrPayloadTypeMismatch.Printf("%v: want %T", h, zero)
	}
	return ti.arg, nil
}
