package main

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sonirico/libsio"
)

// eventLine is one line of output.
type eventLine struct {
	Topic      libsio.Topic    `json:"topic"`
	ReceivedAt time.Time       `json:"received_at"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// linePrinter writes every event it hears as a JSON line. Listeners run on
// the client's goroutines, so writes are serialized.
type linePrinter struct {
	mu       sync.Mutex
	enc      *json.Encoder
	now      func() time.Time
	listener *libsio.EventListener
}

func newLinePrinter(w io.Writer) *linePrinter {
	p := &linePrinter{enc: json.NewEncoder(w), now: time.Now}
	p.listener = libsio.NewEventListener(p.print)
	return p
}

func (p *linePrinter) Listener() *libsio.EventListener {
	return p.listener
}

func (p *linePrinter) print(e libsio.Event) {
	line := eventLine{Topic: e.Topic, ReceivedAt: p.now().UTC(), Data: e.Data}
	if e.Err != nil {
		line.Error = e.Err.Error()
	}
	if len(line.Data) > 0 && !json.Valid(line.Data) {
		line.Data = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.enc.Encode(line)
}
