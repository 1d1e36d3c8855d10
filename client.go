package libsio

import (
	"context"
)

type (
	// Client keeps a logical connection to the push channel alive and offers a
	// publish/subscribe view over it. Connectivity problems are never returned
	// as errors: they surface through the lifecycle topics (TopicConnect,
	// TopicDisconnect, TopicConnectError, TopicReconnectFailed) and IsConnected.
	Client interface {
		// Connect starts a fresh connection attempt and returns immediately. It
		// cancels any scheduled reconnect and resets the attempt counter, so it is
		// also the way out of the given up state.
		Connect(ctx context.Context)
		// Disconnect closes the connection on purpose. It never triggers a reconnect.
		Disconnect()
		// Subscribe adds topic to the subscription set and announces it to the
		// server when connected. The set is replayed after every reconnect.
		Subscribe(topic Topic) error
		// Unsubscribe removes topic from the set. Unknown topics are ignored.
		Unsubscribe(topic Topic) error
		// On registers l for topic. Listeners run in registration order on the
		// goroutine reading the connection, so they must not block: a slow
		// listener delays keep-alive replies and later events.
		On(topic Topic, l *EventListener)
		// Off removes the first registration of l for topic.
		Off(topic Topic, l *EventListener)
		// IsConnected reports whether the transport is currently up.
		IsConnected() bool
	}

	// State is the position of the client in its reconnection state machine.
	State int
)

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateGivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}
