package crypto

import (
	"math"
	"time"
)

// AbsDuration returns |d|. math.MinInt64 saturates to the maximum duration.
func AbsDuration(d time.Duration) time.Duration {
	if d >= 0 {
		return d
	}
	if d == math.MinInt64 {
		return math.MaxInt64
	}
	return -d
}
