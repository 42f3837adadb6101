package intr

import "sync"

// gate 绑定的排空闸门.
// 触发通过 enter/leave 进出, close 之后新的触发被拒绝,
// 在途触发全部离开后执行 onDrain 并关闭 drained.
type gate struct {
	mu       sync.Mutex
	closed   bool
	inflight int
	seq      uint64
	lastMs   int64
	onDrain  func()
	drained  chan struct{}
}

func newGate() *gate {
	return &gate{drained: make(chan struct{})}
}

// enter 分配本次触发的序号和时间戳, 时间戳被夹到不小于上一次.
func (g *gate) enter(nowMs int64) (seq uint64, ts int64, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0, 0, false
	}
	g.inflight++
	g.seq++
	if nowMs < g.lastMs {
		nowMs = g.lastMs
	}
	g.lastMs = nowMs
	return g.seq, nowMs, true
}

func (g *gate) leave() {
	g.mu.Lock()
	g.inflight--
	finish := g.closed && g.inflight == 0
	g.mu.Unlock()
	if finish {
		g.finish()
	}
}

// close 重复调用返回 false.
func (g *gate) close(onDrain func()) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.closed = true
	g.onDrain = onDrain
	finish := g.inflight == 0
	g.mu.Unlock()
	if finish {
		g.finish()
	}
	return true
}

func (g *gate) finish() {
	if g.onDrain != nil {
		g.onDrain()
	}
	close(g.drained)
}

func (g *gate) wait() {
	<-g.drained
}

func (g *gate) fires() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}
