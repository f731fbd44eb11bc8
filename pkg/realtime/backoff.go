package realtime

import (
	"math"
	"time"
)

func backoff(attempts int, maxBackoff time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	// 1s * 2^(attempts-1), compared before conversion so large attempt
	// counts cannot overflow time.Duration
	seconds := math.Pow(2, float64(attempts-1))
	if seconds >= maxBackoff.Seconds() {
		return maxBackoff
	}
	return time.Duration(seconds * float64(time.Second))
}
