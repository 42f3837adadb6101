package clock

type Promise struct {
	TimerId int64
	NowTs   int64 // 当前时间戳 毫秒
	Data    any
}

// 定时器实现
// period > 0 为周期定时器, 到期投递后按 period 重新加入时间轮
type _Timer struct {
	id         int64           // ID
	when       int64           // 到期时间戳 毫秒
	period     int64           // 周期 毫秒, 0表示一次性
	data       any             // 数据
	receiver   chan<- *Promise // 处理器
	prev, next *_Timer         // 双向链表
}

func (t *_Timer) removeFromList() bool {
	if t.prev == nil || t.next == nil {
		return false
	}
	t.prev.next = t.next
	t.next.prev = t.prev
	t.prev = nil
	t.next = nil
	return true
}

type _List struct {
	root *_Timer //哨兵
}

func newTimerList() *_List {
	l := new(_List)
	l.root = new(_Timer)
	l.root.prev = l.root
	l.root.next = l.root
	return l
}

func (l *_List) PushBack(t *_Timer) {
	tail := l.root.prev
	tail.next = t
	t.prev = tail
	t.next = l.root
	l.root.prev = t
}

// Remove 从链表中移除指定节点
func (l *_List) Remove(t *_Timer) bool {
	if t == l.root {
		return false
	}
	return t.removeFromList()
}

// IsEmpty 检查链表是否为空
func (l *_List) IsEmpty() bool {
	return l.root.next == l.root
}

// Len 遍历计数
func (l *_List) Len() int {
	n := 0
	for t := l.root.next; t != l.root; t = t.next {
		n++
	}
	return n
}

// PopRange 删除并遍历链表中的节点
func (l *_List) PopRange(fn func(t *_Timer) bool) {
	for !l.IsEmpty() {
		t := l.root.next
		l.Remove(t)
		if !fn(t) {
			break
		}
	}
}
