package g

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAgent(t *testing.T) *RoutineAgent {
	a := NewRoutineAgent(1024, 8)
	go a.Run()
	t.Cleanup(func() {
		a.Close()
		<-a.Done()
	})
	return a
}

func TestInterruptRunsBetweenTasks(t *testing.T) {
	a := runAgent(t)
	var inTask atomic.Bool
	var overlapped atomic.Bool
	var interrupts atomic.Int32

	release := make(chan struct{})
	require.NoError(t, a.TryRunFunc(func() {
		inTask.Store(true)
		<-release
		inTask.Store(false)
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, a.Interrupt(func() {
			if inTask.Load() {
				overlapped.Store(true)
			}
			interrupts.Add(1)
		}))
	}
	close(release)

	require.NoError(t, a.SyncRunFunc(func() {}))
	assert.EqualValues(t, 3, interrupts.Load())
	assert.False(t, overlapped.Load())
}

func TestInterruptChanFull(t *testing.T) {
	a := NewRoutineAgent(1024, 1)
	require.NoError(t, a.Interrupt(func() {}))
	assert.ErrorIs(t, a.Interrupt(func() {}), ErrInterruptChanFull)
	a.Close()
	assert.ErrorIs(t, a.Interrupt(func() {}), ErrRoutineClosed)
}

func TestPanicHandled(t *testing.T) {
	a := runAgent(t)
	var recovered atomic.Value
	a.SetPanicHandler(func(r any) { recovered.Store(r) })
	require.NoError(t, a.SyncRunFunc(func() { panic("boom") }))
	assert.Equal(t, "boom", recovered.Load())
}

func TestCtxRunFunc(t *testing.T) {
	a := runAgent(t)
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, a.TryRunFunc(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.CtxRunFunc(ctx, func() {}), context.DeadlineExceeded)
}

func TestClosedAgentRejects(t *testing.T) {
	a := NewRoutineAgent(1024, 1)
	go a.Run()
	a.Close()
	<-a.Done()
	assert.ErrorIs(t, a.SyncRunFunc(func() {}), ErrRoutineClosed)
	assert.ErrorIs(t, a.TryRunFunc(func() {}), ErrRoutineClosed)
}
