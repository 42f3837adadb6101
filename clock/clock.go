package clock

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/fixkme/gointr/mlog"
	"github.com/fixkme/gointr/util"
)

const (
	_SIEXP            = 1
	_SI               = 10 * (1 << _SIEXP) // ms
	_TIME_WHEEL_LEVEL = 4
)

var (
	_LEVEL_DIVIS = [_TIME_WHEEL_LEVEL]int64{0, 10, 18, 24}
	_LEVEL_SLOTS = [_TIME_WHEEL_LEVEL]int64{1 << 10, 1 << 8, 1 << 6, 1 << 6}
	_LEVEL_MASKS = [_TIME_WHEEL_LEVEL]int64{}
	_LEVEL_TICKS = [_TIME_WHEEL_LEVEL]int64{}
)

// Resolution 时间轮最小刻度
const Resolution = time.Millisecond * _SI

// ErrClockClosed 时钟已关闭.
var ErrClockClosed = errors.New("clock is closed")

// ErrTaskChanFull 任务通道已满.
var ErrTaskChanFull = errors.New("clock task channel full")

// ErrTimerLimit 定时器数量达到上限.
var ErrTimerLimit = errors.New("clock timer limit reached")

// ErrInvalidPeriod 周期必须大于0.
var ErrInvalidPeriod = errors.New("clock period must be positive")

func init() {
	for i := 0; i < _TIME_WHEEL_LEVEL; i++ {
		_LEVEL_MASKS[i] = _LEVEL_SLOTS[i] - 1
		if i > 0 {
			_LEVEL_TICKS[i] = _LEVEL_SLOTS[i] * _LEVEL_TICKS[i-1]
		} else {
			_LEVEL_TICKS[i] = _LEVEL_SLOTS[i]
		}
	}
}

type Option func(c *Clock)

// WithMaxTimers 限制同时存在的定时器数量, <=0 不限制
func WithMaxTimers(n int) Option {
	return func(c *Clock) {
		c.maxTimers = n
	}
}

// WithTaskChanSize 任务通道容量
func WithTaskChanSize(n int) Option {
	return func(c *Clock) {
		if n > 0 {
			c.taskch = make(chan func(), n)
		}
	}
}

type Clock struct {
	genId     int64
	lastTime  int64
	slot      [_TIME_WHEEL_LEVEL]int64 //每层的指针位置
	tw        [_TIME_WHEEL_LEVEL]timeWheel
	taskch    chan func()
	closed    atomic.Bool
	stopped   chan struct{}
	locs      map[int64]*_Timer //记录位置
	maxTimers int
}

func NewClock(opts ...Option) *Clock {
	c := &Clock{}
	c.taskch = make(chan func(), 10240)
	c.stopped = make(chan struct{})
	c.locs = make(map[int64]*_Timer)
	for _, opt := range opts {
		opt(c)
	}
	for i := 0; i < _TIME_WHEEL_LEVEL; i++ {
		c.slot[i] = 0
		c.tw[i] = make(timeWheel, _LEVEL_SLOTS[i])
	}
	return c
}

type timeWheel []*_List

func (c *Clock) Start(quit <-chan struct{}) {
	c.lastTime = util.NowMs()
	go c.run(quit)
}

// Stopped 时钟协程退出后关闭
func (c *Clock) Stopped() <-chan struct{} {
	return c.stopped
}

// NewTimer 一次性定时器, when 为到期时间戳(毫秒)
func (c *Clock) NewTimer(when int64, data any, receiver chan<- *Promise) (id int64, err error) {
	return c.newTimer(when, 0, data, receiver)
}

// NewTicker 周期定时器, 首次在 now+periodMs 到期, 之后每 periodMs 到期一次
func (c *Clock) NewTicker(periodMs int64, data any, receiver chan<- *Promise) (id int64, err error) {
	if periodMs <= 0 {
		return 0, ErrInvalidPeriod
	}
	return c.newTimer(util.NowMs()+periodMs, periodMs, data, receiver)
}

func (c *Clock) newTimer(when, period int64, data any, receiver chan<- *Promise) (id int64, err error) {
	t := &_Timer{
		when:     when,
		period:   period,
		data:     data,
		receiver: receiver,
	}
	var full bool
	err = c.pushTask(func() {
		if c.maxTimers > 0 && len(c.locs) >= c.maxTimers {
			full = true
			return
		}
		c.genId++
		t.id = c.genId
		c.addTimer(t)
		id = t.id
	})
	if err == nil && full {
		err = ErrTimerLimit
	}
	return
}

// CancelTimer 取消定时器, 已经投递到 receiver 的 Promise 不会被撤回
func (c *Clock) CancelTimer(id int64) (ok bool, err error) {
	err = c.pushTask(func() {
		t := c.delTimer(id)
		ok = t != nil
	})
	return
}

// Len 当前定时器数量
func (c *Clock) Len() (n int, err error) {
	err = c.pushTask(func() {
		n = len(c.locs)
	})
	return
}

func (c *Clock) addTimer(timer *_Timer) {
	var ticks, level, slot int64
	ticks = util.CeilDiv(timer.when-c.lastTime, _SI) //diff 向上取整
	if ticks <= 0 {
		ticks = 1
	}
	for level = 0; level < _TIME_WHEEL_LEVEL; level++ {
		if ticks < _LEVEL_TICKS[level] {
			slot = ((ticks >> _LEVEL_DIVIS[level]) + c.slot[level]) & _LEVEL_MASKS[level]
			break
		}
	}
	if level == _TIME_WHEEL_LEVEL {
		level--
		slot = _LEVEL_MASKS[level]
	}
	mlog.Tracef("clock add timer [%d, %d, %d], when=%d, lastTime=%d, ticks:%d", timer.id, level, slot, timer.when, c.lastTime, ticks)
	c.putTimer(level, slot, timer)
}

func (c *Clock) putTimer(level, slot int64, timer *_Timer) {
	timerList := c.tw[level][slot]
	if timerList == nil {
		timerList = newTimerList()
		c.tw[level][slot] = timerList
	}
	timerList.PushBack(timer)
	c.locs[timer.id] = timer
}

func (c *Clock) delTimer(id int64) *_Timer {
	timer, ok := c.locs[id]
	if ok {
		timer.removeFromList()
		delete(c.locs, id)
		return timer
	}
	return nil
}

// rearm 周期定时器计算下次到期时间, 落后多个周期时跳过错过的周期
func (c *Clock) rearm(timer *_Timer, nowMs int64) bool {
	next, ok := util.AddInt64(timer.when, timer.period)
	if !ok {
		return false
	}
	if next <= nowMs {
		missed := (nowMs-next)/timer.period + 1
		if next, ok = util.AddInt64(next, missed*timer.period); !ok {
			return false
		}
	}
	timer.when = next
	c.addTimer(timer)
	return true
}

func (c *Clock) trigger(nowMs int64) {
	timerList := c.tw[0][c.slot[0]]
	if timerList == nil {
		return
	}
	timerList.PopRange(func(timer *_Timer) bool {
		//删除
		delete(c.locs, timer.id)
		if timer.when > nowMs {
			// 重新加入时间轮, 一般是下一次tick
			c.addTimer(timer)
			return true
		}
		//触发
		promise := &Promise{TimerId: timer.id, NowTs: nowMs, Data: timer.data}
		select {
		case timer.receiver <- promise:
			mlog.Tracef("clock timer trigger id:%d, when:%d, now:%d", timer.id, timer.when, nowMs)
			if timer.period > 0 && !c.rearm(timer, nowMs) {
				mlog.Warnf("clock ticker %d overflow, dropped", timer.id)
			}
		default:
			c.putTimer(0, (c.slot[0]+1)&_LEVEL_MASKS[0], timer) //放入下一个tick
		}
		return true
	})
}

func (c *Clock) tick(nowMs, tkTime int64) {
	c.slot[0] = (c.slot[0] + 1) & _LEVEL_MASKS[0]
	// 0层触发定时器
	c.trigger(nowMs)
	// 高层轮动
	var level, slot, ticks int64
	for i := 1; i < _TIME_WHEEL_LEVEL; i++ {
		if c.slot[i-1] != 0 {
			break
		}
		c.slot[i] = (c.slot[i] + 1) & _LEVEL_MASKS[i]
		timerList := c.tw[i][c.slot[i]]
		if timerList == nil {
			continue
		}
		timerList.PopRange(func(timer *_Timer) bool {
			//加入到下一层
			ticks = util.CeilDiv(timer.when-tkTime, _SI)
			if ticks <= 0 {
				ticks = 1
			}
			for level = 0; level < _TIME_WHEEL_LEVEL; level++ {
				if ticks < _LEVEL_TICKS[level] {
					slot = ((ticks >> _LEVEL_DIVIS[level]) + c.slot[level]) & _LEVEL_MASKS[level]
					break
				}
			}
			if level == _TIME_WHEEL_LEVEL {
				level--
				slot = _LEVEL_MASKS[level]
			}
			c.putTimer(level, slot, timer)
			return true
		})
	}
}

func (c *Clock) run(quit <-chan struct{}) {
	defer close(c.stopped)
	tickTimeSpan := Resolution
	tickTimer := time.NewTimer(tickTimeSpan)
	defer tickTimer.Stop()
	var nowMs, tk int64
	for {
		select {
		case <-quit:
			c.closed.Store(true)
			return
		case <-tickTimer.C:
			nowMs = util.NowMs()
			tk = c.lastTime + _SI
			c.lastTime += _SI * ((nowMs - c.lastTime) / _SI)
			for ; tk <= c.lastTime; tk += _SI {
				c.tick(nowMs, tk)
			}
			tickTimer.Reset(tickTimeSpan)
		case fn := <-c.taskch:
			fn()
		}
	}
}

// pushTask 在时钟协程中同步执行 f
func (c *Clock) pushTask(f func()) error {
	if c.closed.Load() {
		return ErrClockClosed
	}
	done := make(chan struct{})
	ff := func() {
		defer close(done)
		f()
	}
	select {
	case c.taskch <- ff:
	default:
		return ErrTaskChanFull
	}
	select {
	case <-done:
		return nil
	case <-c.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrClockClosed
		}
	}
}
