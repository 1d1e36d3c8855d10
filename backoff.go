package libsio

import (
	"math"
	"time"
)

const (
	DefaultReconnectDelay       = time.Second
	DefaultMaxReconnectAttempts = 5
)

// BackoffFunc returns how long to wait before the given reconnect attempt.
// Attempts are numbered from 1.
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff waits base × attempt: 1s, 2s, 3s... for a 1s base.
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(attempt)
	}
}

func ExponentialBackoff(attempts int) float64 {
	return (math.Pow(2.0, float64(attempts)) - 1) / 2
}

// ExponentialBackoffSeconds waits (2^attempt - 1) / 2 seconds, truncated.
func ExponentialBackoffSeconds(attempts int) time.Duration {
	return time.Duration(ExponentialBackoff(attempts)) * time.Second
}
