package libsio

import (
	"context"
	"sync"
	"time"
)

// PassiveKeepAliveHandler inspects an inbound frame and may answer it on conn.
type PassiveKeepAliveHandler func(conn Connection, m Message)

// KeepAliveHandlerReplyPingWithPong answers websocket ping frames. Engine.IO
// pings travel as text frames and are answered by the transport itself.
func KeepAliveHandlerReplyPingWithPong(conn Connection, m Message) {
	if m.Type() == PingMessage {
		_ = conn.Write(NewPongMessage(m.Data()))
	}
}

// livenessMonitor closes a connection that stopped hearing from the server.
// The server is expected to ping every interval and the peer to wait timeout
// more before giving up.
type livenessMonitor struct {
	logger    logger
	deadline  time.Duration
	onExpire  func()
	lastSeen  time.Time
	mu        sync.Mutex
	closeOnce sync.Once
	closeC    chan struct{}
}

func newLivenessMonitor(logger logger, interval, timeout time.Duration, onExpire func()) *livenessMonitor {
	return &livenessMonitor{
		logger:   logger.WithField("subtype", "liveness_monitor"),
		deadline: interval + timeout,
		onExpire: onExpire,
		lastSeen: time.Now(),
		closeC:   make(chan struct{}),
	}
}

// Touch records server activity.
func (h *livenessMonitor) Touch() {
	h.mu.Lock()
	h.lastSeen = time.Now()
	h.mu.Unlock()
}

func (h *livenessMonitor) expired(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return now.Sub(h.lastSeen) > h.deadline
}

// run checks the deadline until the monitor is stopped, the context ends or
// the deadline passes, in which case onExpire is called once.
func (h *livenessMonitor) run(ctx context.Context) {
	if h.deadline <= 0 {
		return
	}

	ticker := time.NewTicker(h.deadline / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.closeC:
			return
		case now := <-ticker.C:
			if h.expired(now) {
				h.logger.Warnf("no server ping for %s, closing", h.deadline)
				h.onExpire()
				return
			}
		}
	}
}

func (h *livenessMonitor) Stop() {
	h.closeOnce.Do(func() {
		close(h.closeC)
	})
}
