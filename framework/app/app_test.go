package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type testModule struct {
	name    string
	rec     *recorder
	initErr error
	quit    chan struct{}
}

func newTestModule(name string, rec *recorder) *testModule {
	return &testModule{name: name, rec: rec, quit: make(chan struct{})}
}

func (m *testModule) OnInit() error {
	m.rec.add("init " + m.name)
	return m.initErr
}

func (m *testModule) Run() {
	<-m.quit
	m.rec.add("run done " + m.name)
}

func (m *testModule) Destroy() {
	m.rec.add("destroy " + m.name)
	close(m.quit)
}

func (m *testModule) Name() string { return m.name }

func TestRunStop(t *testing.T) {
	rec := &recorder{}
	a := New()
	done := make(chan error, 1)
	go func() { done <- a.Run(newTestModule("a", rec), newTestModule("b", rec)) }()

	require.Eventually(t, func() bool { return a.GetState() == AppStateRun }, time.Second, 5*time.Millisecond)
	a.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, int32(AppStateNone), a.GetState())
	events := rec.list()
	assert.Equal(t, []string{"init a", "init b"}, events[:2])
	// 逆序销毁
	assert.Equal(t, "destroy b", events[2])
	assert.Contains(t, events, "destroy a")
	assert.Contains(t, events, "run done a")
	assert.Contains(t, events, "run done b")
}

func TestInitFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	bad := newTestModule("b", rec)
	bad.initErr = errors.New("boom")
	a := New()
	err := a.Run(newTestModule("a", rec), bad)
	require.Error(t, err)
	assert.ErrorContains(t, err, "module b init")
	assert.Equal(t, []string{"init a", "init b", "destroy a"}, rec.list())
	assert.Equal(t, int32(AppStateNone), a.GetState())
}
