package libsio

import (
	"context"
	"sync"
)

// pipeConnection is an in-memory Connection. Frames written by the owner are
// collected in written, frames pushed with serverSend reach the owner's recv
// channel.
type pipeConnection struct {
	OpenFunc func(ctx context.Context) error

	recv chan<- Message

	mu      sync.Mutex
	written []Message
	wroteC  chan Message

	closeC    CloseChan
	closeOnce sync.Once
	closeErr  error
}

func newPipeConnection(recv chan<- Message) *pipeConnection {
	return &pipeConnection{
		recv:   recv,
		wroteC: make(chan Message, 64),
		closeC: make(CloseChan),
	}
}

func (p *pipeConnection) Open(ctx context.Context) error {
	if p.OpenFunc != nil {
		if err := p.OpenFunc(ctx); err != nil {
			p.drop(err)
			return err
		}
	}
	return nil
}

func (p *pipeConnection) Write(m Message) error {
	select {
	case <-p.closeC:
		return ErrConnectionClosed
	default:
	}
	p.mu.Lock()
	p.written = append(p.written, m)
	p.mu.Unlock()
	select {
	case p.wroteC <- m:
	default:
	}
	return nil
}

func (p *pipeConnection) Close() { p.drop(ErrTerminated) }

func (p *pipeConnection) CloseChan() CloseChan { return p.closeC }

func (p *pipeConnection) CloseErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeErr
}

// drop closes the connection as if the network failed with err.
func (p *pipeConnection) drop(err error) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closeErr = err
		p.mu.Unlock()
		close(p.closeC)
	})
}

// serverSend delivers a text frame as if the server sent it.
func (p *pipeConnection) serverSend(frame string) {
	select {
	case p.recv <- NewTextMessage([]byte(frame)):
	case <-p.closeC:
	}
}

func (p *pipeConnection) writtenFrames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.written))
	for _, m := range p.written {
		out = append(out, string(m.Data()))
	}
	return out
}

// pipeConnectionFactory hands out pipeConnections and remembers them.
type pipeConnectionFactory struct {
	mu    sync.Mutex
	conns []*pipeConnection
	made  chan *pipeConnection
	open  func(ctx context.Context) error
}

func newPipeConnectionFactory() *pipeConnectionFactory {
	return &pipeConnectionFactory{made: make(chan *pipeConnection, 16)}
}

func (f *pipeConnectionFactory) factory() ConnectionFactory {
	return func(_ context.Context, recv chan<- Message) Connection {
		c := newPipeConnection(recv)
		c.OpenFunc = f.open
		f.mu.Lock()
		f.conns = append(f.conns, c)
		f.mu.Unlock()
		f.made <- c
		return c
	}
}
