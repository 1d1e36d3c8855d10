package libsio

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Topic names a category of inbound event.
type Topic string

// Topics broadcast by the school backend.
const (
	TopicNuovoVoto          Topic = "nuovo_voto"
	TopicStudenteModificato Topic = "studente_modificato"
	TopicPresenzaRegistrata Topic = "presenza_registrata"
	TopicNuovaComunicazione Topic = "nuova_comunicazione"
)

// Lifecycle topics are raised by the client itself. They share the listener
// registry with server topics but are never subscribed on the server.
const (
	TopicConnect         Topic = "connect"
	TopicDisconnect      Topic = "disconnect"
	TopicConnectError    Topic = "connect_error"
	TopicReconnectFailed Topic = "reconnect_failed"
)

// DomainTopics lists the server topics the backend is known to broadcast.
var DomainTopics = []Topic{
	TopicNuovoVoto,
	TopicStudenteModificato,
	TopicPresenzaRegistrata,
	TopicNuovaComunicazione,
}

func (t Topic) String() string { return string(t) }

// IsLifecycle reports whether t is raised locally rather than by the server.
func (t Topic) IsLifecycle() bool {
	switch t {
	case TopicConnect, TopicDisconnect, TopicConnectError, TopicReconnectFailed:
		return true
	}
	return false
}

var emptyPayload = json.RawMessage(`{}`)

// Event is what listeners receive. Data is the raw JSON payload, `{}` for
// lifecycle events. Err is set on lifecycle events caused by a failure.
type Event struct {
	Topic Topic
	Data  json.RawMessage
	Err   error
}

// EventListener is the listener type accepted by Client.On and Client.Off.
type EventListener = Listener[Event]

// NewEventListener returns a listener reference for fn.
func NewEventListener(fn func(Event)) *EventListener {
	return NewListener(fn)
}

// eventEnvelope is the payload of the `event` signal.
type eventEnvelope struct {
	Type Topic           `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the event payload into T.
func Decode[T any](e Event) (T, error) {
	var out T
	if len(e.Data) == 0 {
		return out, errors.Errorf("event %s has no payload", e.Topic)
	}
	if err := json.Unmarshal(e.Data, &out); err != nil {
		return out, errors.Wrapf(err, "cannot decode %s payload", e.Topic)
	}
	return out, nil
}

// NewTypedListener decodes every payload into T before calling fn. Decoding
// failures are passed to fn instead of being dropped.
func NewTypedListener[T any](fn func(T, error)) *EventListener {
	return NewEventListener(func(e Event) {
		fn(Decode[T](e))
	})
}
