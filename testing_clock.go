package libsio

import (
	"sync"
	"time"
)

// fakeClock records scheduled callbacks and runs them only when told to.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	delay   time.Duration
	f       func()
	fired   bool
	stopped bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// delays returns the delay of every timer ever scheduled, in order.
func (c *fakeClock) delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, 0, len(c.timers))
	for _, t := range c.timers {
		out = append(out, t.delay)
	}
	return out
}

// pending counts timers neither fired nor stopped.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// fireNext runs the oldest pending timer on the calling goroutine. It reports
// false when nothing is pending.
func (c *fakeClock) fireNext() bool {
	c.mu.Lock()
	var next *fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			next = t
			break
		}
	}
	if next == nil {
		c.mu.Unlock()
		return false
	}
	next.fired = true
	c.mu.Unlock()

	next.f()
	return true
}

// fireStale runs every timer not yet fired, stopped ones included, the way a
// real timer whose Stop came too late would.
func (c *fakeClock) fireStale() int {
	c.mu.Lock()
	var run []*fakeTimer
	for _, t := range c.timers {
		if !t.fired {
			t.fired = true
			run = append(run, t)
		}
	}
	c.mu.Unlock()

	for _, t := range run {
		t.f()
	}
	return len(run)
}
