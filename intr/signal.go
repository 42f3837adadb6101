package intr

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
	"go.uber.org/multierr"

	"github.com/fixkme/gointr/mlog"
)

// SignalSafe 信号上下文允许的负载: 指向 sync/atomic 值类型的指针.
// 被中断的协程之后读取它们时, 读改写是原子的.
type SignalSafe interface {
	*atomic.Int32 | *atomic.Int64 | *atomic.Uint32 | *atomic.Uint64 | *atomic.Bool | *atomic.Uintptr
}

// SignalScope 信号上下文的能力集合, 只有只读的触发信息.
// 处理函数内不要分配内存/写日志/阻塞/访问注册表.
type SignalScope struct {
	Signal os.Signal
	Handle Handle
	Seq    uint64
	NowMs  int64
	// Overrun 上一次投递之后被合并掉的触发次数.
	Overrun uint64
}

// SignalBindable 可以注册到 SignalRegistry 的绑定, 由 BindSignal 或 AuditedSignal 构造.
type SignalBindable interface {
	newSignalInvoker() signalInvoker
	auditReason() string
}

type signalInvoker interface {
	invoke(sc SignalScope)
	release()
	valid() bool
}

// SignalBinding 信号上下文的定型绑定.
type SignalBinding[P SignalSafe] struct {
	handler func(sc SignalScope, p P)
	payload P
}

// BindSignal 绑定信号处理函数与原子负载.
func BindSignal[P SignalSafe](handler func(sc SignalScope, p P), payload P) SignalBinding[P] {
	return SignalBinding[P]{handler: handler, payload: payload}
}

func (b SignalBinding[P]) newSignalInvoker() signalInvoker {
	return &signalTypedInvoker[P]{handler: b.handler, payload: b.payload}
}

func (b SignalBinding[P]) auditReason() string { return "" }

type signalTypedInvoker[P SignalSafe] struct {
	handler func(sc SignalScope, p P)
	payload P
}

func (s *signalTypedInvoker[P]) invoke(sc SignalScope) {
	s.handler(sc, s.payload)
}

func (s *signalTypedInvoker[P]) release() {
	var zero P
	s.payload = zero
	s.handler = nil
}

func (s *signalTypedInvoker[P]) valid() bool {
	var zero P
	return s.handler != nil && s.payload != zero
}

// auditedBinding 经过人工审计的工作协程绑定, 允许在信号上下文执行.
type auditedBinding[T any] struct {
	b      WorkerBinding[T]
	reason string
}

// AuditedSignal 把工作协程绑定用于信号上下文. reason 必须说明该处理函数
// 为什么只做了信号安全的操作, 注册时会记录日志.
func AuditedSignal[T any](b WorkerBinding[T], reason string) SignalBindable {
	return auditedBinding[T]{b: b, reason: reason}
}

func (a auditedBinding[T]) newSignalInvoker() signalInvoker {
	return &auditedInvoker[T]{inner: typedInvoker[T]{handler: a.b.handler, arg: a.b.arg}}
}

func (a auditedBinding[T]) auditReason() string { return a.reason }

type auditedInvoker[T any] struct {
	inner typedInvoker[T]
}

func (a *auditedInvoker[T]) invoke(sc SignalScope) {
	a.inner.invoke(&Fire{Handle: sc.Handle, Seq: sc.Seq, NowMs: sc.NowMs})
}

func (a *auditedInvoker[T]) release() { a.inner.release() }

func (a *auditedInvoker[T]) valid() bool { return a.inner.valid() }

// signalTimer 一个活跃的信号型定时器.
type signalTimer struct {
	h         Handle
	sig       os.Signal
	periodMs  int64
	g         *gate
	inv       signalInvoker
	target    Interruptible
	pending   atomic.Bool
	overrun   atomic.Uint64
	raisedMs  atomic.Int64
	deliverFn func()
}

// raise 在原生层的投递协程上调用. 已有挂起的投递时合并为 overrun.
func (t *signalTimer) raise(nowMs int64) {
	t.raisedMs.Store(nowMs)
	if !t.pending.CompareAndSwap(false, true) {
		t.overrun.Add(1)
		return
	}
	if err := t.target.Interrupt(t.deliverFn); err != nil {
		t.pending.Store(false)
		t.overrun.Add(1)
		mlog.Warnf("intr signal %v interrupt %v failed: %v", t.sig, t.h, err)
	}
}

// deliver 在被中断的目标协程上执行.
func (t *signalTimer) deliver() {
	t.pending.Store(false)
	seq, ts, ok := t.g.enter(t.raisedMs.Load())
	if !ok {
		return
	}
	defer t.g.leave()
	t.inv.invoke(SignalScope{
		Signal:  t.sig,
		Handle:  t.h,
		Seq:     seq,
		NowMs:   ts,
		Overrun: t.overrun.Swap(0),
	})
}

// SignalRegistry 信号型定时器注册表. 每个信号身份同时只能有一个定时器.
type SignalRegistry struct {
	id       string
	facility SignalFacility
	target   Interruptible

	mu     sync.Mutex
	genId  uint64
	timers map[Handle]*signalTimer
	idents map[os.Signal]Handle
	closed bool
}

// NewSignalRegistry 触发在 target 上与其自身任务交错执行.
func NewSignalRegistry(facility SignalFacility, target Interruptible) *SignalRegistry {
	return &SignalRegistry{
		id:       xid.New().String(),
		facility: facility,
		target:   target,
		timers:   make(map[Handle]*signalTimer),
		idents:   make(map[os.Signal]Handle),
	}
}

// ID 注册表实例ID, 用于日志.
func (r *SignalRegistry) ID() string { return r.id }

// Len 活跃定时器数量.
func (r *SignalRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Active 句柄是否仍然注册.
func (r *SignalRegistry) Active(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[h]
	return ok
}

// Register 以信号 sig 为身份注册周期定时器. 先安装投递函数, 安装成功后才布防.
func (r *SignalRegistry) Register(sig os.Signal, periodMs int64, b SignalBindable, options ...RegisterOption) (Handle, error) {
	if periodMs <= 0 {
		return HandleNone, ErrRegistration.Printf("invalid period %d ms", periodMs)
	}
	if sig == nil {
		return HandleNone, ErrRegistration.Printf("nil signal")
	}
	if b == nil {
		return HandleNone, ErrRegistration.Printf("nil binding")
	}
	inv := b.newSignalInvoker()
	if !inv.valid() {
		return HandleNone, ErrRegistration.Printf("nil handler or payload")
	}
	opts := applyRegisterOptions(options)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return HandleNone, ErrRegistration.Printf("registry %s closed", r.id)
	}
	if owner, ok := r.idents[sig]; ok {
		r.mu.Unlock()
		return HandleNone, ErrIdentityConflict.Printf("%v owned by %v", sig, owner)
	}
	r.genId++
	t := &signalTimer{
		h:        Handle(r.genId),
		sig:      sig,
		periodMs: periodMs,
		g:        newGate(),
		inv:      inv,
		target:   r.target,
	}
	t.deliverFn = t.deliver
	// 先占住身份, 安装与布防在锁外进行
	r.idents[sig] = t.h
	r.mu.Unlock()

	if reason := b.auditReason(); reason != "" {
		mlog.Warnf("intr signal %v: audited worker handler on %v: %s", t.h, sig, reason)
	}

	fail := func(err error) (Handle, error) {
		r.mu.Lock()
		delete(r.idents, sig)
		r.mu.Unlock()
		t.g.close(inv.release)
		mlog.Warnf("intr signal registry %s register %v failed: %v", r.id, sig, err)
		return HandleNone, err
	}

	if err := r.facility.Install(sig, t.raise); err != nil {
		return fail(ErrRegistration.Printf("install %v", sig).Wrap(err))
	}
	if err := r.facility.Arm(sig, periodMs, !opts.once); err != nil {
		err = ErrRegistration.Printf("arm %v %d ms", sig, periodMs).Wrap(err)
		return fail(multierr.Append(err, r.facility.Uninstall(sig)))
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		err := multierr.Append(ErrRegistration.Printf("registry %s closed", r.id), r.release(t))
		return fail(err)
	}
	r.timers[t.h] = t
	r.mu.Unlock()

	mlog.Debugf("intr signal registry %s registered %v on %v period=%dms once=%v", r.id, t.h, sig, periodMs, opts.once)
	return t.h, nil
}

// Cancel 撤防, 卸载投递函数, 等待在途触发结束后释放负载.
// 不能在该定时器的处理函数中调用.
func (r *SignalRegistry) Cancel(h Handle) error {
	r.mu.Lock()
	t, ok := r.timers[h]
	if ok {
		delete(r.timers, h)
		delete(r.idents, t.sig)
	}
	r.mu.Unlock()
	if !ok {
		return ErrUnknownHandle.Printf("%v", h)
	}
	err := r.release(t)
	mlog.Debugf("intr signal registry %s cancelled %v on %v fires=%d", r.id, h, t.sig, t.g.fires())
	return err
}

func (r *SignalRegistry) release(t *signalTimer) error {
	t.g.close(t.inv.release)
	var err error
	if derr := multierr.Append(r.facility.Disarm(t.sig), r.facility.Uninstall(t.sig)); derr != nil {
		err = ErrDisarm.Printf("%v on %v", t.h, t.sig).Wrap(derr)
	}
	t.g.wait()
	return err
}

// Close 取消全部定时器, 之后的 Register 失败.
func (r *SignalRegistry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	timers := make([]*signalTimer, 0, len(r.timers))
	for h, t := range r.timers {
		timers = append(timers, t)
		delete(r.timers, h)
		delete(r.idents, t.sig)
	}
	r.mu.Unlock()

	var err error
	for _, t := range timers {
		err = multierr.Append(err, r.release(t))
	}
	mlog.Infof("intr signal registry %s closed, %d timers cancelled", r.id, len(timers))
	return err
}
