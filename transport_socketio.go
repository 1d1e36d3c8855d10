package libsio

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const defaultHandshakeTimeout = 10 * time.Second

// SocketIOOptions tunes the socket.io transport.
type SocketIOOptions struct {
	// Namespace to join. Empty means "/".
	Namespace string
	// Auth is sent as the CONNECT payload when non nil.
	Auth any
	// HandshakeTimeout bounds Open. Defaults to 10s.
	HandshakeTimeout time.Duration
	// KeepAlive answers websocket control frames. Defaults to replying pings with pongs.
	KeepAlive PassiveKeepAliveHandler
}

// socketIOTransport speaks socket.io v5 over an Engine.IO v4 websocket.
type socketIOTransport struct {
	logger      logger
	opts        SocketIOOptions
	connFactory ConnectionFactory
	handler     SignalHandler

	conn   Connection
	connMu sync.Mutex
	recv   chan Message

	handshake     chan error
	handshakeOnce sync.Once

	liveness *livenessMonitor

	closeC     CloseChan
	closeOnce  sync.Once
	closeErr   error
	closeErrMu sync.Mutex
}

func newSocketIOTransport(
	logger logger,
	connFactory ConnectionFactory,
	handler SignalHandler,
	opts SocketIOOptions,
) *socketIOTransport {
	if opts.Namespace == "" {
		opts.Namespace = defaultNamespace
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.KeepAlive == nil {
		opts.KeepAlive = KeepAliveHandlerReplyPingWithPong
	}
	return &socketIOTransport{
		logger:      logger.WithField("type", "socketio_transport").WithField("nsp", opts.Namespace),
		opts:        opts,
		connFactory: connFactory,
		handler:     handler,
		recv:        make(chan Message, 32),
		handshake:   make(chan error, 1),
		closeC:      make(CloseChan),
	}
}

// NewSocketIOTransportFactory builds socket.io transports on top of the
// connections produced by connFactory.
func NewSocketIOTransportFactory(
	logger logger,
	connFactory ConnectionFactory,
	opts SocketIOOptions,
) TransportFactory {
	return func(_ context.Context, handler SignalHandler) Transport {
		return newSocketIOTransport(logger, connFactory, handler, opts)
	}
}

func (t *socketIOTransport) Open(ctx context.Context) error {
	t.connMu.Lock()
	select {
	case <-t.closeC:
		t.connMu.Unlock()
		return ErrTerminated
	default:
	}
	conn := t.connFactory(ctx, t.recv)
	t.conn = conn
	t.connMu.Unlock()

	if err := conn.Open(ctx); err != nil {
		t.closeWith(err)
		return err
	}

	go t.run(ctx, conn)

	timer := time.NewTimer(t.opts.HandshakeTimeout)
	defer timer.Stop()

	select {
	case err := <-t.handshake:
		if err != nil {
			t.closeWith(err)
			return err
		}
		return nil
	case <-timer.C:
		err := errors.Wrapf(ErrHandshake, "no connect ack within %s", t.opts.HandshakeTimeout)
		t.closeWith(err)
		return err
	case <-ctx.Done():
		t.closeWith(ErrTerminated)
		return ctx.Err()
	case <-t.closeC:
		return errors.Wrap(ErrHandshake, "closed during handshake: "+errString(t.CloseErr()))
	}
}

func (t *socketIOTransport) Emit(event string, payload any) error {
	select {
	case <-t.closeC:
		return ErrConnectionClosed
	default:
	}

	bts, err := encodeEvent(t.opts.Namespace, event, payload)
	if err != nil {
		return err
	}

	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil {
		return ErrConnectionClosed
	}
	return conn.Write(NewTextMessage(bts))
}

func (t *socketIOTransport) Close() {
	t.closeWith(ErrTerminated)
}

func (t *socketIOTransport) CloseChan() CloseChan {
	return t.closeC
}

func (t *socketIOTransport) CloseErr() error {
	t.closeErrMu.Lock()
	defer t.closeErrMu.Unlock()
	return t.closeErr
}

func (t *socketIOTransport) closeWith(reason error) {
	t.closeOnce.Do(func() {
		t.closeErrMu.Lock()
		t.closeErr = reason
		t.closeErrMu.Unlock()

		t.resolveHandshake(errors.Wrap(ErrHandshake, errString(reason)))

		t.connMu.Lock()
		conn := t.conn
		liveness := t.liveness
		t.connMu.Unlock()

		if liveness != nil {
			liveness.Stop()
		}
		if conn != nil {
			conn.Close()
		}

		close(t.closeC)
	})
}

func (t *socketIOTransport) resolveHandshake(err error) {
	t.handshakeOnce.Do(func() {
		t.handshake <- err
	})
}

func (t *socketIOTransport) run(ctx context.Context, conn Connection) {
	connClosed := conn.CloseChan()

	for {
		select {
		case <-t.closeC:
			return
		case <-connClosed:
			t.drain(ctx, conn)
			reason := conn.CloseErr()
			if reason == nil {
				reason = ErrConnectionClosed
			}
			t.closeWith(reason)
			return
		case m := <-t.recv:
			t.handleFrame(ctx, conn, m)
		}
	}
}

// drain handles the frames the connection delivered before it closed.
func (t *socketIOTransport) drain(ctx context.Context, conn Connection) {
	for {
		select {
		case m := <-t.recv:
			t.handleFrame(ctx, conn, m)
		default:
			return
		}
	}
}

func (t *socketIOTransport) handleFrame(ctx context.Context, conn Connection, m Message) {
	t.opts.KeepAlive(conn, m)

	if !m.Type().IsText() {
		return
	}

	p, err := parseEnginePacket(m.Data())
	if err != nil {
		t.logger.Warnf("dropping frame: %s", err)
		return
	}

	switch p.Type {
	case engineOpen:
		hs, err := parseHandshake(p.Data)
		if err != nil {
			t.closeWith(err)
			return
		}
		t.connMu.Lock()
		opened := t.liveness != nil
		t.connMu.Unlock()
		if opened {
			t.logger.Warnf("ignoring repeated engine.io open for session %s", hs.SID)
			return
		}
		t.logger.Debugf("engine.io session %s open (ping %dms/%dms)", hs.SID, hs.PingInterval, hs.PingTimeout)

		liveness := newLivenessMonitor(
			t.logger,
			time.Duration(hs.PingInterval)*time.Millisecond,
			time.Duration(hs.PingTimeout)*time.Millisecond,
			func() { t.closeWith(ErrPingTimeout) },
		)
		t.connMu.Lock()
		t.liveness = liveness
		t.connMu.Unlock()
		go liveness.run(ctx)

		bts, err := encodeConnect(t.opts.Namespace, t.opts.Auth)
		if err != nil {
			t.closeWith(err)
			return
		}
		if err := conn.Write(NewTextMessage(bts)); err != nil {
			t.closeWith(err)
		}
	case enginePing:
		t.connMu.Lock()
		liveness := t.liveness
		t.connMu.Unlock()
		if liveness != nil {
			liveness.Touch()
		}
		_ = conn.Write(NewTextMessage(encodeEnginePacket(enginePong, nil)))
	case engineClose:
		t.closeWith(errors.Wrap(ErrConnectionClosed, "server closed the engine.io session"))
	case engineMessage:
		t.handleSocketPacket(p.Data)
	default:
		// pong, upgrade and noop carry nothing for a websocket-only client
	}
}

func (t *socketIOTransport) handleSocketPacket(data []byte) {
	p, err := parseSocketPacket(data)
	if err != nil {
		t.logger.Warnf("dropping socket.io packet: %s", err)
		return
	}

	if p.Namespace != t.opts.Namespace {
		t.logger.Debugf("ignoring packet for namespace %s", p.Namespace)
		return
	}

	switch p.Type {
	case socketConnect:
		t.logger.Debugf("namespace joined: %s", p.Data)
		t.resolveHandshake(nil)
	case socketConnectError:
		var body struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(p.Data, &body)
		err := errors.Wrap(ErrHandshake, "server refused connection: "+body.Message)
		t.resolveHandshake(err)
		t.closeWith(err)
	case socketDisconnect:
		t.closeWith(errors.Wrap(ErrConnectionClosed, "server disconnected the namespace"))
	case socketEvent:
		name, payload, err := p.eventArgs()
		if err != nil {
			t.logger.Warnf("dropping event: %s", err)
			return
		}
		t.handler(Signal{Name: name, Data: payload})
	default:
		t.logger.Debugf("ignoring socket.io packet type %c", p.Type)
	}
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
