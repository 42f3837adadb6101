package g

import (
	"context"
	"sync"
)

// RoutineAgent 单协程执行体. 普通任务与中断(Interrupt)都在同一个协程上串行执行,
// 中断只会插在两个任务之间, 不会与任务并行.
type RoutineAgent struct {
	*Go
	closeSig    chan struct{}
	done        chan struct{}
	isClosed    bool
	mutex       sync.RWMutex
	intrCh      chan func()
	beforeClose func()
}

func NewRoutineAgent(taskChSize, intrChSize int) *RoutineAgent {
	if intrChSize <= 0 {
		intrChSize = 64
	}
	a := &RoutineAgent{
		Go:       NewGoChan(taskChSize),
		closeSig: make(chan struct{}),
		done:     make(chan struct{}),
		intrCh:   make(chan func(), intrChSize),
	}
	return a
}

func (a *RoutineAgent) Init(beforeClose func()) {
	a.beforeClose = beforeClose
}

// Done Run 返回后关闭
func (a *RoutineAgent) Done() <-chan struct{} {
	return a.done
}

func (a *RoutineAgent) Run() {
	defer a.onClose()

	for {
		// 挂起的中断优先于下一个任务
		select {
		case fn := <-a.intrCh:
			a.Go.Exec(fn)
			continue
		default:
		}

		select {
		case <-a.closeSig:
			return
		case fn := <-a.intrCh:
			a.Go.Exec(fn)
		case cb := <-a.Go.ChanCb:
			a.Go.Exec(cb)
		}
	}
}

func (a *RoutineAgent) onClose() {
	defer close(a.done)
	if a.beforeClose != nil {
		a.beforeClose()
	}
	a.mutex.Lock()
	a.Go.Close()
	a.mutex.Unlock()
	for cb := range a.Go.ChanCb {
		a.Go.Exec(cb)
	}
}

func (a *RoutineAgent) Close() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.isClosed {
		return
	}

	a.isClosed = true
	close(a.closeSig)
}

// Interrupt 投递一个中断, 不阻塞. 关闭后投递的中断被丢弃.
func (a *RoutineAgent) Interrupt(fn func()) error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.isClosed {
		return ErrRoutineClosed
	}
	select {
	case a.intrCh <- fn:
		return nil
	default:
		return ErrInterruptChanFull
	}
}

func (a *RoutineAgent) SyncRunFunc(f func()) (err error) {
	a.mutex.RLock()
	if a.isClosed {
		a.mutex.RUnlock()
		return ErrRoutineClosed
	}
	errCh := a.Go.SubmitWithResult(f)
	a.mutex.RUnlock()
	return <-errCh
}

func (a *RoutineAgent) CtxRunFunc(ctx context.Context, f func()) (err error) {
	a.mutex.RLock()
	if a.isClosed {
		a.mutex.RUnlock()
		return ErrRoutineClosed
	}
	errCh := a.Go.SubmitWithResult(f)
	a.mutex.RUnlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err = <-errCh:
		return err
	}
}

func (a *RoutineAgent) TryRunFunc(f func()) error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.isClosed {
		return ErrRoutineClosed
	}

	if !a.Go.TrySubmit(f) {
		return ErrGoChanFull
	}
	return nil
}
