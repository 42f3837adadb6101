package intr

import (
	"errors"
	"os"
	"sync"
)

var errNative = errors.New("native refused")

type fakeSource struct {
	periodMs int64
	periodic bool
	cb       NativeCallback
	arg      any
	armed    bool
}

// fakeFacility 手动触发的原生定时设施.
type fakeFacility struct {
	mu        sync.Mutex
	genId     int64
	sources   map[NativeHandle]*fakeSource
	armErr    error
	disarmErr error
	fireOnArm bool // Arm 返回前同步触发一次, 如到期时间为0的定时器
}

func newFakeFacility() *fakeFacility {
	return &fakeFacility{sources: make(map[NativeHandle]*fakeSource)}
}

func (f *fakeFacility) Arm(periodMs int64, periodic bool, cb NativeCallback, arg any) (NativeHandle, error) {
	f.mu.Lock()
	if f.armErr != nil {
		f.mu.Unlock()
		return 0, f.armErr
	}
	f.genId++
	id := f.genId
	f.sources[id] = &fakeSource{periodMs: periodMs, periodic: periodic, cb: cb, arg: arg, armed: true}
	fireOnArm := f.fireOnArm
	f.mu.Unlock()
	if fireOnArm {
		cb(arg, 0)
	}
	return id, nil
}

func (f *fakeFacility) Disarm(h NativeHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[h]
	if ok {
		src.armed = false
	}
	if f.disarmErr != nil {
		return f.disarmErr
	}
	if !ok {
		return errors.New("unknown native handle")
	}
	return nil
}

func (f *fakeFacility) armed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, src := range f.sources {
		if src.armed {
			n++
		}
	}
	return n
}

func (f *fakeFacility) source(h NativeHandle) *fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources[h]
}

// fire 同步调用回调, 不检查 armed, 模拟撤防前已派发出去的回调.
func (f *fakeFacility) fire(h NativeHandle, nowMs int64) {
	src := f.source(h)
	src.cb(src.arg, nowMs)
}

// fakeSignalFacility 手动触发的信号设施.
type fakeSignalFacility struct {
	mu         sync.Mutex
	installed  map[os.Signal]func(nowMs int64)
	armed      map[os.Signal]bool
	periodic   map[os.Signal]bool
	installErr error
	armErr     error
	calls      []string
}

func newFakeSignalFacility() *fakeSignalFacility {
	return &fakeSignalFacility{
		installed: make(map[os.Signal]func(nowMs int64)),
		armed:     make(map[os.Signal]bool),
		periodic:  make(map[os.Signal]bool),
	}
}

func (f *fakeSignalFacility) Install(sig os.Signal, deliver func(nowMs int64)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "install")
	if f.installErr != nil {
		return f.installErr
	}
	f.installed[sig] = deliver
	return nil
}

func (f *fakeSignalFacility) Uninstall(sig os.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "uninstall")
	delete(f.installed, sig)
	return nil
}

func (f *fakeSignalFacility) Arm(sig os.Signal, periodMs int64, periodic bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "arm")
	if f.armErr != nil {
		return f.armErr
	}
	f.armed[sig] = true
	f.periodic[sig] = periodic
	return nil
}

func (f *fakeSignalFacility) Disarm(sig os.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "disarm")
	delete(f.armed, sig)
	return nil
}

func (f *fakeSignalFacility) raise(sig os.Signal, nowMs int64) bool {
	f.mu.Lock()
	deliver := f.installed[sig]
	f.mu.Unlock()
	if deliver == nil {
		return false
	}
	deliver(nowMs)
	return true
}

func (f *fakeSignalFacility) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
