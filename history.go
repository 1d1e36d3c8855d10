package libsio

import (
	"sync"
	"time"
)

const DefaultHistorySize = 100

// HistoryEntry is an event stamped with its arrival time.
type HistoryEntry struct {
	Event
	ReceivedAt time.Time
}

// EventHistory keeps the most recent events in arrival order. Attach it with
// client.On(topic, history.Listener()).
type EventHistory struct {
	mu       sync.Mutex
	max      int
	entries  []HistoryEntry
	now      func() time.Time
	listener *EventListener
}

func NewEventHistory(max int) *EventHistory {
	if max <= 0 {
		max = DefaultHistorySize
	}
	h := &EventHistory{max: max, now: time.Now}
	h.listener = NewEventListener(h.Record)
	return h
}

// Listener is the reference to register on a client. It is the same pointer on
// every call so it can also be passed to Off.
func (h *EventHistory) Listener() *EventListener {
	return h.listener
}

func (h *EventHistory) Record(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, HistoryEntry{Event: e, ReceivedAt: h.now()})
	if over := len(h.entries) - h.max; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
}

// Recent returns up to limit of the latest entries for topic, oldest first.
// An empty topic matches everything; limit <= 0 means no limit.
func (h *EventHistory) Recent(topic Topic, limit int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []HistoryEntry
	for _, e := range h.entries {
		if topic == "" || e.Topic == topic {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (h *EventHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *EventHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}
