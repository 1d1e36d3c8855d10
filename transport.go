package libsio

import (
	"context"
	"encoding/json"
)

type (
	// Signal is a named inbound packet from the push channel.
	Signal struct {
		Name string
		Data json.RawMessage
	}

	SignalHandler func(Signal)

	// Transport is the bidirectional push channel a Client drives. A Transport
	// is single use: once closed a new one is created for the next attempt.
	Transport interface {
		// Open dials and completes the handshake. It blocks until the transport is
		// usable or the attempt failed.
		Open(ctx context.Context) error
		// Emit sends a named event with a JSON encodable payload.
		Emit(event string, payload any) error
		// Close tears the transport down. The close is reported through CloseErr as ErrTerminated.
		Close()
		// CloseChan is closed once the transport is gone, whatever the reason.
		CloseChan() CloseChan
		// CloseErr explains why the transport closed.
		CloseErr() error
	}

	TransportFactory func(ctx context.Context, handler SignalHandler) Transport
)

// Names of the signals exchanged with the backend.
const (
	directiveSubscribe   = "subscribe"
	directiveUnsubscribe = "unsubscribe"

	signalConnected    = "connected"
	signalEvent        = "event"
	signalSubscribed   = "subscribed"
	signalUnsubscribed = "unsubscribed"
)

// directive is the payload of subscribe and unsubscribe.
type directive struct {
	Event Topic `json:"event"`
}
