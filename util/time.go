package util

import (
	"sync/atomic"
	"time"
)

var (
	startTime  = time.Now()     // 进程内时间基准, 携带单调时钟读数
	startMs    = startTime.UnixMilli()
	timeOffset atomic.Int64 // 时间偏移 纳秒
)

// SetTimeOffset 设置时间偏移量, 负值按0处理
func SetTimeOffset(newOffset time.Duration) {
	if newOffset < 0 {
		newOffset = 0
	}
	timeOffset.Store(int64(newOffset))
}

// GetTimeOffset 获取时间偏移量
func GetTimeOffset() time.Duration {
	return time.Duration(timeOffset.Load())
}

// NowMs 毫秒时间戳, 由单调时钟推导, 系统时间回拨时不会倒退
func NowMs() int64 {
	elapsed := time.Since(startTime) + GetTimeOffset()
	return startMs + elapsed.Milliseconds()
}

// Ms2Time ms时间戳转化为时间
func Ms2Time(ms int64) time.Time {
	return time.UnixMilli(ms)
}
