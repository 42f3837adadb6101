// Package timerqueue 工作协程型原生定时设施: 时间轮计时, ants 协程池回调.
// 每次到期在池中任意一个工作协程上执行回调, 同一定时源的相邻回调可能并行.
package timerqueue

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"

	"github.com/fixkme/gointr/clock"
	"github.com/fixkme/gointr/intr"
	"github.com/fixkme/gointr/mlog"
	"github.com/fixkme/gointr/util"
)

const (
	defaultPoolSize       = 64
	defaultFireBuffer     = 1024
	defaultReleaseTimeout = 5 * time.Second
)

// ErrNotArmed 原生句柄未布防或已撤防.
var ErrNotArmed = errors.New("timerqueue: native handle not armed")

// ErrClosed 队列已关闭.
var ErrClosed = errors.New("timerqueue: closed")

type Config struct {
	PoolSize       int           // 工作协程数量
	MaxTimers      int           // 定时源上限, <=0 不限制; 使用共享 Clock 时忽略
	FireBuffer     int           // 到期通道容量
	ReleaseTimeout time.Duration // Close 等待在途回调的时间
	Clock          *clock.Clock  // 共享时钟, 为空时自建
}

func (c *Config) init() {
	if c.PoolSize <= 0 {
		c.PoolSize = defaultPoolSize
	}
	if c.FireBuffer <= 0 {
		c.FireBuffer = defaultFireBuffer
	}
	if c.ReleaseTimeout <= 0 {
		c.ReleaseTimeout = defaultReleaseTimeout
	}
}

type Stats struct {
	Armed     int    // 当前布防数量
	Delivered uint64 // 已提交到协程池的回调
	Dropped   uint64 // 协程池过载丢弃的回调
	Running   int    // 正在运行的工作协程
}

type source struct {
	id       intr.NativeHandle
	periodic bool
	cb       intr.NativeCallback
	arg      any
}

type Queue struct {
	cfg   Config
	clock *clock.Clock
	pool  *ants.Pool
	fires chan *clock.Promise
	quit  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	sources map[intr.NativeHandle]*source
	closed  bool

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

type poolLogger struct{}

func (poolLogger) Printf(format string, args ...any) {
	mlog.Warnf("timerqueue pool: "+format, args...)
}

func New(cfg Config) (*Queue, error) {
	cfg.init()
	pool, err := ants.NewPool(cfg.PoolSize,
		ants.WithNonblocking(true),
		ants.WithLogger(poolLogger{}),
		ants.WithPanicHandler(func(r any) {
			mlog.Errorf("timerqueue callback panic: %v", r)
		}),
	)
	if err != nil {
		return nil, errors.WithMessage(err, "timerqueue create pool")
	}
	q := &Queue{
		cfg:     cfg,
		pool:    pool,
		fires:   make(chan *clock.Promise, cfg.FireBuffer),
		quit:    make(chan struct{}),
		sources: make(map[intr.NativeHandle]*source),
	}
	if cfg.Clock != nil {
		q.clock = cfg.Clock
	} else {
		q.clock = clock.NewClock(clock.WithMaxTimers(cfg.MaxTimers))
		q.clock.Start(q.quit)
	}
	q.wg.Add(1)
	go q.deliverLoop()
	return q, nil
}

// Arm 实现 intr.Facility.
func (q *Queue) Arm(periodMs int64, periodic bool, cb intr.NativeCallback, arg any) (intr.NativeHandle, error) {
	if cb == nil {
		return 0, errors.New("timerqueue: nil callback")
	}
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	src := &source{periodic: periodic, cb: cb, arg: arg}
	var (
		id  int64
		err error
	)
	if periodic {
		id, err = q.clock.NewTicker(periodMs, src, q.fires)
	} else {
		id, err = q.clock.NewTimer(util.NowMs()+periodMs, src, q.fires)
	}
	if err != nil {
		return 0, errors.WithMessagef(err, "timerqueue arm %d ms", periodMs)
	}
	src.id = id

	q.mu.Lock()
	q.sources[id] = src
	q.mu.Unlock()
	return id, nil
}

// Disarm 实现 intr.Facility. 已经到期的一次性定时源也可以撤防.
func (q *Queue) Disarm(h intr.NativeHandle) error {
	q.mu.Lock()
	_, ok := q.sources[h]
	delete(q.sources, h)
	q.mu.Unlock()
	if !ok {
		return errors.WithMessagef(ErrNotArmed, "handle %d", h)
	}
	if _, err := q.clock.CancelTimer(h); err != nil {
		return errors.WithMessagef(err, "timerqueue disarm %d", h)
	}
	return nil
}

func (q *Queue) deliverLoop() {
	defer q.wg.Done()
	for {
		select {
		case <-q.quit:
			return
		case p := <-q.fires:
			src, ok := p.Data.(*source)
			if !ok {
				continue
			}
			nowMs := p.NowTs
			if err := q.pool.Submit(func() { src.cb(src.arg, nowMs) }); err != nil {
				q.dropped.Add(1)
				mlog.Warnf("timerqueue drop fire of %d: %v", src.id, err)
				continue
			}
			q.delivered.Add(1)
		}
	}
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	armed := len(q.sources)
	q.mu.Unlock()
	return Stats{
		Armed:     armed,
		Delivered: q.delivered.Load(),
		Dropped:   q.dropped.Load(),
		Running:   q.pool.Running(),
	}
}

// Close 停止投递并等待在途回调结束(最多 ReleaseTimeout).
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	ids := make([]intr.NativeHandle, 0, len(q.sources))
	for id := range q.sources {
		ids = append(ids, id)
	}
	q.sources = make(map[intr.NativeHandle]*source)
	q.mu.Unlock()

	// 共享时钟上的定时源需要显式取消
	for _, id := range ids {
		if _, err := q.clock.CancelTimer(id); err != nil && !errors.Is(err, clock.ErrClockClosed) {
			mlog.Warnf("timerqueue close cancel %d: %v", id, err)
		}
	}
	close(q.quit)
	q.wg.Wait()
	if err := q.pool.ReleaseTimeout(q.cfg.ReleaseTimeout); err != nil {
		return errors.WithMessage(err, "timerqueue release pool")
	}
	return nil
}
