package main

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/fixkme/gointr/clock"
	"github.com/fixkme/gointr/framework/config"
	g "github.com/fixkme/gointr/framework/go"
	"github.com/fixkme/gointr/intr"
	"github.com/fixkme/gointr/mlog"
	"github.com/fixkme/gointr/sigtimer"
	"github.com/fixkme/gointr/timerqueue"
	"github.com/fixkme/gointr/util"
)

func isr1(f *intr.Fire, arg int) {
	mlog.Infof("isr1 %s #%d at %s: arg=%d", f.Handle, f.Seq, util.Ms2Time(f.NowMs).Format(time.StampMilli), arg)
}

func isr2(f *intr.Fire, arg string) {
	mlog.Infof("isr2 %s #%d at %s: %s", f.Handle, f.Seq, util.Ms2Time(f.NowMs).Format(time.StampMilli), arg)
}

// countExpired 在信号上下文中执行, 只做原子自增. 合并到本次投递的到期一并计入
func countExpired(sc intr.SignalScope, c *atomic.Int64) {
	c.Add(1 + int64(sc.Overrun))
}

type expiredReport struct {
	expired  *atomic.Int64
	reported atomic.Int64
}

func reportExpired(_ *intr.Fire, r *expiredReport) {
	n := r.expired.Load()
	if r.reported.Swap(n) != n {
		mlog.Infof("Timer expired: %d", n)
	}
}

// intrModule 持有两种派发上下文: 工作协程定时器和以 agent 为被中断线程的信号定时器
type intrModule struct {
	conf    *config.AppConfig
	agent   *g.RoutineAgent
	queue   *timerqueue.Queue
	workers *intr.Registry
	signals *intr.SignalRegistry
	expired atomic.Int64
}

func newIntrModule(conf *config.AppConfig) *intrModule {
	return &intrModule{conf: conf}
}

func (m *intrModule) Name() string { return "intr" }

func (m *intrModule) OnInit() (err error) {
	tq := m.conf.TimerQueue
	m.queue, err = timerqueue.New(timerqueue.Config{
		PoolSize:       tq.PoolSize,
		MaxTimers:      tq.MaxTimers,
		FireBuffer:     tq.FireBuffer,
		ReleaseTimeout: time.Duration(tq.ReleaseTimeoutMs) * time.Millisecond,
		Clock:          clock.Start(nil, clock.WithMaxTimers(tq.MaxTimers)),
	})
	if err != nil {
		return err
	}
	policy := intr.AllowOverlap
	if tq.SerializeFires {
		policy = intr.SerializeFires
	}
	m.workers = intr.NewRegistry(m.queue, intr.WithOverlapPolicy(policy))
	m.agent = g.NewRoutineAgent(1024, 64)
	m.agent.SetPanicHandler(func(r any) {
		mlog.Errorf("agent panic: %v", r)
	})
	m.signals = intr.NewSignalRegistry(sigtimer.New(), m.agent)

	defer func() {
		if err != nil {
			m.Destroy()
		}
	}()
	for i, tc := range m.conf.Timers {
		h, err := m.registerTimer(tc)
		if err != nil {
			return errors.WithMessagef(err, "timers[%d] %s", i, tc.Handler)
		}
		mlog.Infof("registered %s %s every %d ms", tc.Handler, h, tc.PeriodMs)
	}
	if sc := m.conf.Signal; sc.Enabled {
		sig, err := sigtimer.Lookup(sc.Name)
		if err != nil {
			return err
		}
		h, err := m.signals.Register(sig, sc.PeriodMs, intr.BindSignal(countExpired, &m.expired))
		if err != nil {
			return errors.WithMessagef(err, "signal %s", sc.Name)
		}
		mlog.Infof("registered %v %s every %d ms", sig, h, sc.PeriodMs)
		report := &expiredReport{expired: &m.expired}
		if _, err = m.workers.Register(sc.PeriodMs, intr.Bind(reportExpired, report)); err != nil {
			return errors.WithMessage(err, "expired report")
		}
	}
	return nil
}

func (m *intrModule) registerTimer(tc config.TimerConfig) (intr.Handle, error) {
	var opts []intr.RegisterOption
	if tc.Once {
		opts = append(opts, intr.Once())
	}
	switch tc.Handler {
	case "isr1":
		n, err := strconv.Atoi(tc.Arg)
		if err != nil {
			return intr.HandleNone, errors.WithMessagef(err, "isr1 arg %q", tc.Arg)
		}
		return m.workers.Register(tc.PeriodMs, intr.Bind(isr1, n), opts...)
	case "isr2":
		return m.workers.Register(tc.PeriodMs, intr.Bind(isr2, tc.Arg), opts...)
	default:
		return intr.HandleNone, errors.Errorf("unknown handler %q", tc.Handler)
	}
}

// Run 当前协程成为被中断的主线程
func (m *intrModule) Run() {
	m.agent.Run()
}

func (m *intrModule) Destroy() {
	if err := m.signals.Close(); err != nil {
		mlog.Warnf("close signal timers: %v", err)
	}
	if err := m.workers.Close(); err != nil {
		mlog.Warnf("close worker timers: %v", err)
	}
	if err := m.queue.Close(); err != nil {
		mlog.Warnf("close timer queue: %v", err)
	}
	m.agent.Close()
	mlog.Infof("intr module destroyed, signal timer expired %d times", m.expired.Load())
}
