package libsio

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const writeWait = time.Second

type (
	openConnectionParamsRepo interface {
		Get(ctx context.Context) (OpenConnectionParams, error)
	}

	ErrAdapter func(*websocket.Conn, *http.Response, error) error

	ErrorAdapters struct {
		OnDial ErrAdapter
	}

	// WsConnection represents a WebSocket connection.
	// It implements the Connection interface.
	WsConnection struct {
		id                       string
		errAdapters              ErrorAdapters
		openConnectionParamsRepo openConnectionParamsRepo
		logger                   logger
		dialer                   *websocket.Dialer
		conn                     *websocket.Conn
		connMu                   sync.Mutex
		closeChan                CloseChan
		closeOnce                sync.Once
		closeReason              error
		closeReasonMu            sync.Mutex
		recv                     chan<- Message // frames received over the wire
		send                     chan Message   // frames to be sent over the wire
	}
)

func NewWebsocketConnection(
	dialer *websocket.Dialer,
	openParamsRepo openConnectionParamsRepo,
	logger logger,
	recvChan chan<- Message,
	errorHandlers ErrorAdapters,
) *WsConnection {
	id := uuid.NewString()
	return &WsConnection{
		id:                       id,
		errAdapters:              errorHandlers,
		dialer:                   dialer,
		openConnectionParamsRepo: openParamsRepo,
		recv:                     recvChan,
		send:                     make(chan Message),
		closeChan:                make(CloseChan),
		logger:                   logger.WithField("net", "ws_connection").WithField("conn_id", id),
	}
}

func NewWebsocketFactory(
	logger logger,
	dialer *websocket.Dialer,
	openConnectionParamsRepo openConnectionParamsRepo,
	errorHandlers ErrorAdapters,
) ConnectionFactory {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return func(ctx context.Context, recvChan chan<- Message) Connection {
		return NewWebsocketConnection(
			dialer,
			openConnectionParamsRepo,
			logger,
			recvChan,
			errorHandlers,
		)
	}
}

// ID identifies this connection in logs.
func (w *WsConnection) ID() string {
	return w.id
}

// Write queues a frame for the write loop.
func (w *WsConnection) Write(m Message) error {
	select {
	case <-w.closeChan:
		return ErrConnectionClosed
	case w.send <- m:
		return nil
	}
}

// Close terminates the WebSocket connection from our side.
func (w *WsConnection) Close() {
	w.setCloseReason(ErrTerminated)
	w.safeClose()
}

// Open dials the server and spawns the read and write loops.
func (w *WsConnection) Open(ctx context.Context) error {
	return w.start(ctx)
}

// CloseChan returns a channel that will be closed when the WebSocket connection is closed.
func (w *WsConnection) CloseChan() CloseChan {
	return w.closeChan
}

// CloseErr explains why the connection was closed. ErrTerminated means we closed it.
func (w *WsConnection) CloseErr() error {
	w.closeReasonMu.Lock()
	defer w.closeReasonMu.Unlock()
	return w.closeReason
}

func (w *WsConnection) start(ctx context.Context) error {
	p, err := w.openConnectionParamsRepo.Get(ctx)
	if err != nil {
		w.logger.Errorf("cannot get connection params due to %s", err)
		err = errors.Wrap(ErrCannotConnect, err.Error())
		w.setCloseReason(err)
		w.safeClose()
		return wrapDialError(err, p.URL)
	}

	conn, resp, err := w.dialer.DialContext(ctx, p.URL.String(), p.Header)

	if err = w.handleDialError(conn, resp, err); err != nil {
		w.logger.Errorf("connection err to %s: %s", p.URL.Redacted(), err)
		if conn != nil {
			_ = conn.Close()
		}
		w.setCloseReason(err)
		w.safeClose()
		return wrapDialError(err, p.URL)
	}

	w.logger.Debugf("success opening connection to %s", p.URL.Redacted())

	w.connMu.Lock()
	select {
	case <-w.closeChan:
		// Closed while dialing.
		w.connMu.Unlock()
		_ = conn.Close()
		return wrapDialError(ErrTerminated, p.URL)
	default:
	}
	w.conn = conn
	w.connMu.Unlock()

	// Control frames are surfaced to the owner so the keep-alive policy stays
	// in one place.
	conn.SetPingHandler(func(appData string) error {
		w.logger.Debugln("<= [PING]")
		w.deliver(NewPingMessage([]byte(appData)))
		return nil
	})

	conn.SetPongHandler(func(appData string) error {
		w.logger.Debugln("<= [PONG]")
		w.deliver(NewPongMessage([]byte(appData)))
		return nil
	})

	conn.SetCloseHandler(func(code int, text string) error {
		w.logger.Debugf("<= [CLOSE] %d %s", code, text)
		w.deliver(NewCloseMessage(code, []byte(text)))
		return nil
	})

	go w.read(ctx)
	go w.write(ctx)

	return nil
}

func (w *WsConnection) deliver(m Message) {
	select {
	case w.recv <- m:
	case <-w.closeChan:
	}
}

func (w *WsConnection) read(ctx context.Context) {
	defer w.safeClose()

	for {
		select {
		case <-w.closeChan:
			w.setCloseReason(ErrTerminated)
			return
		case <-ctx.Done():
			w.setCloseReason(ErrTerminated)
			return
		default:
			messageType, bts, err := w.conn.ReadMessage()
			if err != nil {
				w.logger.Debugf("websocket read stopped: %s", err)

				w.setCloseReason(errors.Wrap(
					ErrConnectionClosed,
					"error occurred on websocket read: "+err.Error(),
				))
				return
			}
			switch messageType {
			case websocket.BinaryMessage:
				w.logger.Debugln("<= [BIN]")
				w.deliver(NewBinaryMessage(bts))
			default:
				w.logger.Debugf("<= [TEXT] %s", bts)
				w.deliver(NewTextMessage(bts))
			}
		}
	}
}

func (w *WsConnection) write(ctx context.Context) {
	defer w.safeClose()

	for {
		select {
		case <-w.closeChan:
			w.setCloseReason(ErrTerminated)
			return
		case <-ctx.Done():
			w.setCloseReason(ErrTerminated)
			return
		case msg := <-w.send:
			deadline := time.Now().Add(writeWait)
			_ = w.conn.SetWriteDeadline(deadline)

			var err error

			switch msg.Type() {
			case PingMessage:
				w.logger.Debugln("=> [PING]")
				err = w.conn.WriteControl(websocket.PingMessage, msg.Data(), deadline)
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					err = nil
				}
			case PongMessage:
				w.logger.Debugln("=> [PONG]")
				err = w.conn.WriteControl(websocket.PongMessage, msg.Data(), deadline)
			case BinaryMessage:
				w.logger.Debugln("=> [BIN]")
				err = w.conn.WriteMessage(websocket.BinaryMessage, msg.Data())
			default:
				w.logger.Debugf("=> [TEXT] %s", msg.Data())
				err = w.conn.WriteMessage(websocket.TextMessage, msg.Data())
			}

			if err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					w.setCloseReason(ErrConnectionClosed)
				} else {
					w.setCloseReason(errors.Wrap(ErrConnectionClosed, err.Error()))
				}
				return
			}
		}
	}
}

func (w *WsConnection) safeClose() {
	w.closeOnce.Do(w.close)
}

func (w *WsConnection) close() {
	w.connMu.Lock()
	conn := w.conn
	w.connMu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		_ = conn.Close()
	}
	close(w.closeChan)
}

func (w *WsConnection) setCloseReason(err error) {
	w.closeReasonMu.Lock()
	defer w.closeReasonMu.Unlock()
	if w.closeReason == nil {
		w.closeReason = err
	}
}

func (w *WsConnection) handleDialError(conn *websocket.Conn, resp *http.Response, err error) error {
	if w.errAdapters.OnDial != nil {
		return w.errAdapters.OnDial(conn, resp, err)
	}

	// 1. Check HTTP errors first
	var msg string

	if resp != nil && err != nil {
		if resp.Body != nil {
			bts, rerr := io.ReadAll(resp.Body)
			if rerr == nil {
				msg = string(bts)
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return errors.Wrap(ErrRateLimit, msg)
		}
	}

	// 2. Network errors
	if err != nil {
		return errors.Wrap(ErrCannotConnect, err.Error())
	}

	return nil
}
