package libsio

import "time"

type (
	timer interface {
		Stop() bool
	}

	// clock schedules the deferred reconnect attempts.
	clock interface {
		AfterFunc(d time.Duration, f func()) timer
	}

	realClock struct{}
)

func (realClock) AfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}
