package clock

import "sync"

var (
	builtinClock *Clock
	once         sync.Once
)

// Start 启动进程内共享的时钟, 只有第一次调用生效. quit 为 nil 时随进程存在
func Start(quit <-chan struct{}, opts ...Option) *Clock {
	once.Do(func() {
		builtinClock = NewClock(opts...)
		builtinClock.Start(quit)
	})
	return builtinClock
}

// Builtin 共享时钟, Start 之前为 nil
func Builtin() *Clock {
	return builtinClock
}
