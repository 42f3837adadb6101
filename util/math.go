package util

import "math"

// AddInt64 溢出时返回饱和值和 false
func AddInt64(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64, false
	} else if b < 0 && a < math.MinInt64-b {
		return math.MinInt64, false
	}
	return a + b, true
}

// CeilDiv 向上取整除法, b 必须大于0
func CeilDiv(a, b int64) int64 {
	if a <= 0 {
		return a / b
	}
	return (a + b - 1) / b
}
