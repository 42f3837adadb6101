package intr

import (
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	g "github.com/fixkme/gointr/framework/go"
)

func newAgent(t *testing.T) *g.RoutineAgent {
	a := g.NewRoutineAgent(1024, 16)
	go a.Run()
	t.Cleanup(func() {
		a.Close()
		<-a.Done()
	})
	return a
}

func countTicks(sc SignalScope, c *atomic.Int64) {
	c.Add(1 + int64(sc.Overrun))
}

func TestSignalCounter(t *testing.T) {
	f := newFakeSignalFacility()
	a := newAgent(t)
	r := NewSignalRegistry(f, a)

	var counter atomic.Int64
	h, err := r.Register(syscall.SIGALRM, 1000, BindSignal(countTicks, &counter))
	require.NoError(t, err)
	assert.Equal(t, []string{"install", "arm"}, f.history())

	for i := 1; i <= 5; i++ {
		require.True(t, f.raise(syscall.SIGALRM, int64(i*1000)))
		// 每次触发之后主协程才继续, 对应空闲主线程的逐次中断
		require.NoError(t, a.SyncRunFunc(func() {}))
	}
	assert.EqualValues(t, 5, counter.Load())

	require.NoError(t, r.Cancel(h))
	assert.False(t, f.raise(syscall.SIGALRM, 6000))
	assert.EqualValues(t, 5, counter.Load())
	assert.Equal(t, []string{"install", "arm", "disarm", "uninstall"}, f.history())
}

func TestSignalFiresInterleaveWithMainTasks(t *testing.T) {
	f := newFakeSignalFacility()
	a := newAgent(t)
	r := NewSignalRegistry(f, a)

	var inTask atomic.Bool
	var violations atomic.Int64
	var counter atomic.Int64
	_, err := r.Register(syscall.SIGALRM, 10, BindSignal(func(_ SignalScope, c *atomic.Int64) {
		if inTask.Load() {
			violations.Add(1)
		}
		c.Add(1)
	}, &counter))
	require.NoError(t, err)

	release := make(chan struct{})
	require.NoError(t, a.TryRunFunc(func() {
		inTask.Store(true)
		<-release
		inTask.Store(false)
	}))
	require.True(t, f.raise(syscall.SIGALRM, 10))
	close(release)
	require.NoError(t, a.SyncRunFunc(func() {}))

	assert.EqualValues(t, 1, counter.Load())
	assert.EqualValues(t, 0, violations.Load())
	require.NoError(t, r.Close())
}

func TestSignalCoalescesIntoOverrun(t *testing.T) {
	f := newFakeSignalFacility()
	a := newAgent(t)
	r := NewSignalRegistry(f, a)

	var fires, overrun atomic.Uint64
	_, err := r.Register(syscall.SIGALRM, 10, BindSignal(func(sc SignalScope, n *atomic.Uint64) {
		n.Add(1)
		overrun.Add(sc.Overrun)
	}, &fires))
	require.NoError(t, err)

	// 主协程忙时到达的三次信号合并为一次投递
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, a.TryRunFunc(func() {
		close(started)
		<-release
	}))
	<-started
	for i := 1; i <= 3; i++ {
		f.raise(syscall.SIGALRM, int64(i*10))
	}
	close(release)
	require.NoError(t, a.SyncRunFunc(func() {}))

	assert.EqualValues(t, 1, fires.Load())
	assert.EqualValues(t, 2, overrun.Load())
	require.NoError(t, r.Close())
}

func TestSignalIdentityConflict(t *testing.T) {
	f := newFakeSignalFacility()
	r := NewSignalRegistry(f, newAgent(t))

	var c1, c2 atomic.Int64
	h, err := r.Register(syscall.SIGALRM, 1000, BindSignal(countTicks, &c1))
	require.NoError(t, err)
	_, err = r.Register(syscall.SIGALRM, 500, BindSignal(countTicks, &c2))
	assert.ErrorIs(t, err, ErrIdentityConflict)

	// 其他身份不受影响
	h2, err := r.Register(syscall.SIGVTALRM, 500, BindSignal(countTicks, &c2))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	// 取消后身份可以再次使用
	require.NoError(t, r.Cancel(h))
	h3, err := r.Register(syscall.SIGALRM, 500, BindSignal(countTicks, &c1))
	require.NoError(t, err)
	assert.NotEqual(t, h, h3)
	require.NoError(t, r.Cancel(h2))
	require.NoError(t, r.Cancel(h3))
}

func TestSignalInstallCheckedBeforeArm(t *testing.T) {
	f := newFakeSignalFacility()
	f.installErr = errNative
	r := NewSignalRegistry(f, newAgent(t))

	var c atomic.Int64
	_, err := r.Register(syscall.SIGALRM, 1000, BindSignal(countTicks, &c))
	assert.ErrorIs(t, err, ErrRegistration)
	assert.ErrorIs(t, err, errNative)
	assert.Equal(t, []string{"install"}, f.history())

	// 身份没有被泄漏占用
	f.installErr = nil
	_, err = r.Register(syscall.SIGALRM, 1000, BindSignal(countTicks, &c))
	require.NoError(t, err)
}

func TestSignalArmFailureUninstalls(t *testing.T) {
	f := newFakeSignalFacility()
	f.armErr = errNative
	r := NewSignalRegistry(f, newAgent(t))

	var c atomic.Int64
	_, err := r.Register(syscall.SIGALRM, 1000, BindSignal(countTicks, &c))
	assert.ErrorIs(t, err, ErrRegistration)
	assert.Equal(t, []string{"install", "arm", "uninstall"}, f.history())
	assert.Equal(t, 0, r.Len())
}

func TestSignalRegisterValidation(t *testing.T) {
	f := newFakeSignalFacility()
	r := NewSignalRegistry(f, newAgent(t))

	var c atomic.Int64
	_, err := r.Register(syscall.SIGALRM, 0, BindSignal(countTicks, &c))
	assert.ErrorIs(t, err, ErrRegistration)
	_, err = r.Register(syscall.SIGALRM, -1000, BindSignal(countTicks, &c))
	assert.ErrorIs(t, err, ErrRegistration)
	_, err = r.Register(nil, 1000, BindSignal(countTicks, &c))
	assert.ErrorIs(t, err, ErrRegistration)
	_, err = r.Register(syscall.SIGALRM, 1000, BindSignal[*atomic.Int64](countTicks, nil))
	assert.ErrorIs(t, err, ErrRegistration)
	_, err = r.Register(syscall.SIGALRM, 1000, nil)
	assert.ErrorIs(t, err, ErrRegistration)
	assert.Empty(t, f.history())
	assert.ErrorIs(t, r.Cancel(Handle(7)), ErrUnknownHandle)
}

func TestSignalOnce(t *testing.T) {
	f := newFakeSignalFacility()
	r := NewSignalRegistry(f, newAgent(t))
	var b atomic.Bool
	_, err := r.Register(syscall.SIGALRM, 1000, BindSignal(func(_ SignalScope, p *atomic.Bool) { p.Store(true) }, &b), Once())
	require.NoError(t, err)
	assert.False(t, f.periodic[syscall.SIGALRM])
}

func TestAuditedSignalAdapter(t *testing.T) {
	f := newFakeSignalFacility()
	a := newAgent(t)
	r := NewSignalRegistry(f, a)

	var seen atomic.Int64
	worker := Bind(func(fire *Fire, v *atomic.Int64) {
		v.Store(int64(fire.Seq))
		assert.Error(t, fire.Cancel())
	}, &seen)
	h, err := r.Register(syscall.SIGALRM, 100, AuditedSignal(worker, "only stores into an atomic"))
	require.NoError(t, err)

	f.raise(syscall.SIGALRM, 100)
	require.NoError(t, a.SyncRunFunc(func() {}))
	assert.EqualValues(t, 1, seen.Load())
	require.NoError(t, r.Cancel(h))
}

func TestSignalCancelWaitsForDelivery(t *testing.T) {
	f := newFakeSignalFacility()
	a := newAgent(t)
	r := NewSignalRegistry(f, a)

	entered := make(chan struct{})
	release := make(chan struct{})
	var c atomic.Int64
	h, err := r.Register(syscall.SIGALRM, 10, BindSignal(func(_ SignalScope, p *atomic.Int64) {
		close(entered)
		<-release
		p.Add(1)
	}, &c))
	require.NoError(t, err)

	f.raise(syscall.SIGALRM, 10)
	<-entered
	done := make(chan error, 1)
	go func() { done <- r.Cancel(h) }()
	select {
	case <-done:
		t.Fatal("cancel returned during delivery")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, c.Load())
}

func TestSignalCounterKeepsMergedTicks(t *testing.T) {
	f := newFakeSignalFacility()
	a := newAgent(t)
	r := NewSignalRegistry(f, a)

	var counter atomic.Int64
	_, err := r.Register(syscall.SIGALRM, 1000, BindSignal(countTicks, &counter))
	require.NoError(t, err)

	require.True(t, f.raise(syscall.SIGALRM, 1000))
	require.NoError(t, a.SyncRunFunc(func() {}))

	// 主协程忙的期间到达四次
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, a.TryRunFunc(func() {
		close(started)
		<-release
	}))
	<-started
	for i := 2; i <= 5; i++ {
		require.True(t, f.raise(syscall.SIGALRM, int64(i*1000)))
	}
	close(release)
	require.NoError(t, a.SyncRunFunc(func() {}))

	assert.EqualValues(t, 5, counter.Load())
	require.NoError(t, r.Close())
}
