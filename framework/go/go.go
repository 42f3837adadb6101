package g

import (
	"errors"
	"sync/atomic"

	"github.com/fixkme/gointr/mlog"
)

var (
	ErrGoChanFull        = errors.New("go chan is full")
	ErrRoutineClosed     = errors.New("routine agent is closed")
	ErrGoChanClosed      = errors.New("go chan is closed")
	ErrInterruptChanFull = errors.New("interrupt chan is full")
)

type Go struct {
	ChanCb       chan func()
	panicHandler func(r any)
	closed       atomic.Bool
}

func NewGoChan(size int) *Go {
	if size < 1024 {
		size = 1024
	} else if size > 102400 {
		size = 102400
	}

	g := new(Go)
	g.ChanCb = make(chan func(), size)
	g.panicHandler = func(r any) {
		mlog.Errorf("go run panic: %v", r)
	}
	return g
}

func (g *Go) SetPanicHandler(f func(r any)) {
	if f != nil {
		g.panicHandler = f
	}
}

// Close 调用方保证之后不再有提交
func (g *Go) Close() {
	if g.closed.CompareAndSwap(false, true) {
		close(g.ChanCb)
	}
}

func (g *Go) SubmitWithResult(f func()) (errCh chan error) {
	errCh = make(chan error, 1)
	call := func() {
		defer close(errCh)
		f()
	}
	select {
	case g.ChanCb <- call:
	default:
		errCh <- ErrGoChanFull
	}
	return
}

func (g *Go) TrySubmit(f func()) (ok bool) {
	select {
	case g.ChanCb <- f:
		return true
	default:
		return false
	}
}

func (g *Go) Exec(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			g.panicHandler(r)
		}
	}()

	cb()
}
