package libsio

import (
	"sync"
)

// Listener wraps a callback so the registration can be removed later. Two
// listeners are the same only if they are the same pointer.
type Listener[V any] struct {
	fn func(V)
}

// NewListener returns a new listener reference for fn.
func NewListener[V any](fn func(V)) *Listener[V] {
	return &Listener[V]{fn: fn}
}

func (l *Listener[V]) call(v V) {
	if l != nil && l.fn != nil {
		l.fn(v)
	}
}

// EventEmitterCallback maps events (of type K) to ordered listeners receiving
// values of type V.
type EventEmitterCallback[K comparable, V any] struct {
	listeners map[K][]*Listener[V]
	lock      sync.RWMutex
}

// NewEventEmitter creates a new EventEmitterCallback and returns a pointer to it.
func NewEventEmitter[K comparable, V any]() *EventEmitterCallback[K, V] {
	return &EventEmitterCallback[K, V]{
		listeners: make(map[K][]*Listener[V]),
	}
}

// On appends listener to the event. The same listener may be added more than once.
func (e *EventEmitterCallback[K, V]) On(event K, listener *Listener[V]) {
	if listener == nil {
		return
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	e.listeners[event] = append(e.listeners[event], listener)
}

// Off removes the first registration of listener for the event. It reports
// whether anything was removed.
func (e *EventEmitterCallback[K, V]) Off(event K, listener *Listener[V]) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	listeners := e.listeners[event]
	for i, l := range listeners {
		if l != listener {
			continue
		}

		next := make([]*Listener[V], 0, len(listeners)-1)
		next = append(next, listeners[:i]...)
		next = append(next, listeners[i+1:]...)
		if len(next) == 0 {
			delete(e.listeners, event)
		} else {
			e.listeners[event] = next
		}
		return true
	}

	return false
}

// Emit calls every listener of the event synchronously, in registration order.
// Listeners run outside the lock, so they may call On and Off; changes apply
// to the next Emit.
func (e *EventEmitterCallback[K, V]) Emit(event K, data V) {
	for _, listener := range e.snapshot(event) {
		listener.call(data)
	}
}

// EmitEach is Emit with a hook around every call, used to isolate listener panics.
func (e *EventEmitterCallback[K, V]) EmitEach(event K, data V, call func(l *Listener[V], data V)) {
	for _, listener := range e.snapshot(event) {
		call(listener, data)
	}
}

func (e *EventEmitterCallback[K, V]) snapshot(event K) []*Listener[V] {
	e.lock.RLock()
	defer e.lock.RUnlock()

	// Off never mutates a published slice in place, so sharing it is safe.
	return e.listeners[event]
}

// Len returns how many listeners are registered for the event.
func (e *EventEmitterCallback[K, V]) Len(event K) int {
	e.lock.RLock()
	defer e.lock.RUnlock()

	return len(e.listeners[event])
}

// Close removes all listeners.
func (e *EventEmitterCallback[K, V]) Close() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.listeners = make(map[K][]*Listener[V])
}
