package intr

// WorkerBindable 可以注册到 Registry 的绑定, 只能由 Bind 构造.
type WorkerBindable interface {
	newInvoker() invoker
}

type invoker interface {
	invoke(f *Fire)
	release()
	valid() bool
}

// WorkerBinding 处理函数与负载的定型绑定.
type WorkerBinding[T any] struct {
	handler func(f *Fire, arg T)
	arg     T
}

// Bind 绑定处理函数与负载, 处理函数看到的负载类型就是注册时的类型.
// 负载在定时器活跃期间与调用方共享; AllowOverlap 下可变负载需要自带同步.
func Bind[T any](handler func(f *Fire, arg T), arg T) WorkerBinding[T] {
	return WorkerBinding[T]{handler: handler, arg: arg}
}

func (b WorkerBinding[T]) newInvoker() invoker {
	return &typedInvoker[T]{handler: b.handler, arg: b.arg}
}

type typedInvoker[T any] struct {
	handler func(f *Fire, arg T)
	arg     T
}

func (t *typedInvoker[T]) invoke(f *Fire) {
	t.handler(f, t.arg)
}

// release 只在所有在途触发离开后调用, 之后不会再有读取.
func (t *typedInvoker[T]) release() {
	var zero T
	t.arg = zero
	t.handler = nil
}

func (t *typedInvoker[T]) valid() bool {
	return t.handler != nil
}
