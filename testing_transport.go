package libsio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type emitted struct {
	Name  string
	Topic Topic
}

// fakeTransport is a scriptable Transport. Open blocks until the test decides
// the outcome through the owning fakeNetwork.
type fakeTransport struct {
	handler SignalHandler
	result  chan error

	mu      sync.Mutex
	emitted []emitted

	closeC    CloseChan
	closeOnce sync.Once
	closeErr  error
}

func (f *fakeTransport) Open(ctx context.Context) error {
	select {
	case err := <-f.result:
		if err != nil {
			f.closeWith(err)
		}
		return err
	case <-ctx.Done():
		f.closeWith(ErrTerminated)
		return ctx.Err()
	case <-f.closeC:
		return ErrTerminated
	}
}

func (f *fakeTransport) Emit(event string, payload any) error {
	select {
	case <-f.closeC:
		return ErrConnectionClosed
	default:
	}
	e := emitted{Name: event}
	if d, ok := payload.(directive); ok {
		e.Topic = d.Event
	}
	f.mu.Lock()
	f.emitted = append(f.emitted, e)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() { f.closeWith(ErrTerminated) }

func (f *fakeTransport) CloseChan() CloseChan { return f.closeC }

func (f *fakeTransport) CloseErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeErr
}

func (f *fakeTransport) closeWith(err error) {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closeErr = err
		f.mu.Unlock()
		close(f.closeC)
	})
}

func (f *fakeTransport) closed() bool {
	select {
	case <-f.closeC:
		return true
	default:
		return false
	}
}

// drop simulates an unintentional loss of the connection.
func (f *fakeTransport) drop() {
	f.closeWith(ErrConnectionClosed)
}

// deliver pushes a server `event` signal.
func (f *fakeTransport) deliver(topic Topic, data string) {
	env := fmt.Sprintf(`{"type":%q,"data":%s}`, topic, data)
	f.handler(Signal{Name: signalEvent, Data: json.RawMessage(env)})
}

// directives returns what was emitted, optionally filtered by name.
func (f *fakeTransport) directives(name string) []Topic {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Topic
	for _, e := range f.emitted {
		if name == "" || e.Name == name {
			out = append(out, e.Topic)
		}
	}
	return out
}

// fakeNetwork is the TransportFactory for tests. Every attempt creates a
// fakeTransport which is handed to the test through dials.
type fakeNetwork struct {
	mu         sync.Mutex
	transports []*fakeTransport
	dials      chan *fakeTransport
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{dials: make(chan *fakeTransport, 32)}
}

func (n *fakeNetwork) factory() TransportFactory {
	return func(_ context.Context, handler SignalHandler) Transport {
		t := &fakeTransport{
			handler: handler,
			result:  make(chan error, 1),
			closeC:  make(CloseChan),
		}
		n.mu.Lock()
		n.transports = append(n.transports, t)
		n.mu.Unlock()
		n.dials <- t
		return t
	}
}

func (n *fakeNetwork) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.transports)
}
