//go:build linux

package sigtimer

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/fixkme/gointr/mlog"
	"github.com/fixkme/gointr/util"
)

// 可用作身份的信号及其间隔定时器. SIGPROF 由 runtime 使用, 不开放.
var itimers = map[syscall.Signal]unix.ItimerWhich{
	syscall.SIGALRM:   unix.ItimerReal,
	syscall.SIGVTALRM: unix.ItimerVirtual,
}

// Lookup 按名字查找信号, 如 "SIGALRM".
func Lookup(name string) (os.Signal, error) {
	sig := unix.SignalNum(name)
	if sig == 0 {
		return nil, errors.WithMessagef(ErrUnsupportedSignal, "%q", name)
	}
	if _, ok := itimers[sig]; !ok {
		return nil, errors.WithMessagef(ErrUnsupportedSignal, "%q", name)
	}
	return sig, nil
}

func itimerFor(sig os.Signal) (unix.ItimerWhich, error) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return 0, errors.WithMessagef(ErrUnsupportedSignal, "%v", sig)
	}
	which, ok := itimers[s]
	if !ok {
		return 0, errors.WithMessagef(ErrUnsupportedSignal, "%v", sig)
	}
	return which, nil
}

type installation struct {
	ch   chan os.Signal
	stop chan struct{}
	done chan struct{}
}

// Facility 实现 intr.SignalFacility.
type Facility struct {
	mu       sync.Mutex
	installs map[os.Signal]*installation
}

func New() *Facility {
	return &Facility{installs: make(map[os.Signal]*installation)}
}

// Install 订阅 sig, 每收到一次调用 deliver. 通道容量为1, 未及时处理的信号会合并,
// 内核对挂起的同一信号也只保留一次; setitimer 没有 overrun 计数, 这两种合并无法补回.
func (f *Facility) Install(sig os.Signal, deliver func(nowMs int64)) error {
	if _, err := itimerFor(sig); err != nil {
		return err
	}
	if deliver == nil {
		return errors.New("sigtimer: nil deliver")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.installs[sig]; ok {
		return errors.WithMessagef(ErrInstalled, "%v", sig)
	}
	in := &installation{
		ch:   make(chan os.Signal, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	signal.Notify(in.ch, sig)
	f.installs[sig] = in
	go func() {
		defer close(in.done)
		for {
			select {
			case <-in.stop:
				return
			case <-in.ch:
				deliver(util.NowMs())
			}
		}
	}()
	mlog.Debugf("sigtimer installed %v", sig)
	return nil
}

// Uninstall 退订 sig, 等待投递协程退出.
func (f *Facility) Uninstall(sig os.Signal) error {
	f.mu.Lock()
	in, ok := f.installs[sig]
	delete(f.installs, sig)
	f.mu.Unlock()
	if !ok {
		return errors.WithMessagef(ErrNotInstalled, "%v", sig)
	}
	signal.Stop(in.ch)
	close(in.stop)
	<-in.done
	mlog.Debugf("sigtimer uninstalled %v", sig)
	return nil
}

// Arm 设置 sig 对应的间隔定时器. periodic 为 false 时只到期一次.
func (f *Facility) Arm(sig os.Signal, periodMs int64, periodic bool) error {
	which, err := itimerFor(sig)
	if err != nil {
		return err
	}
	if periodMs <= 0 {
		return errors.Errorf("sigtimer: invalid period %d ms", periodMs)
	}
	f.mu.Lock()
	_, installed := f.installs[sig]
	f.mu.Unlock()
	if !installed {
		return errors.WithMessagef(ErrNotInstalled, "%v", sig)
	}
	tv := unix.NsecToTimeval((time.Duration(periodMs) * time.Millisecond).Nanoseconds())
	it := unix.Itimerval{Value: tv}
	if periodic {
		it.Interval = tv
	}
	if _, err = unix.Setitimer(which, it); err != nil {
		return errors.WithMessagef(err, "sigtimer setitimer %v", sig)
	}
	return nil
}

// Disarm 清零 sig 对应的间隔定时器.
func (f *Facility) Disarm(sig os.Signal) error {
	which, err := itimerFor(sig)
	if err != nil {
		return err
	}
	if _, err = unix.Setitimer(which, unix.Itimerval{}); err != nil {
		return errors.WithMessagef(err, "sigtimer disarm %v", sig)
	}
	return nil
}
