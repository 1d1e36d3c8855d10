package libsio

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const openFrame = `0{"sid":"s1","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`

func nextWrite(t *testing.T, conn *pipeConnection) string {
	t.Helper()
	select {
	case m := <-conn.wroteC:
		return string(m.Data())
	case <-time.After(waitFor):
		t.Fatal("expected a frame to be written")
		return ""
	}
}

func nextSignal(t *testing.T, signals <-chan Signal) Signal {
	t.Helper()
	select {
	case s := <-signals:
		return s
	case <-time.After(waitFor):
		t.Fatal("expected a signal")
		return Signal{}
	}
}

type transportHarness struct {
	transport *socketIOTransport
	factory   *pipeConnectionFactory
	signals   chan Signal
	openErr   chan error
}

func startTransport(t *testing.T, opts SocketIOOptions) (*transportHarness, *pipeConnection) {
	t.Helper()
	h := &transportHarness{
		factory: newPipeConnectionFactory(),
		signals: make(chan Signal, 16),
		openErr: make(chan error, 1),
	}
	h.transport = newSocketIOTransport(
		newTestLogger(io.Discard),
		h.factory.factory(),
		func(s Signal) { h.signals <- s },
		opts,
	)
	go func() { h.openErr <- h.transport.Open(context.Background()) }()

	select {
	case conn := <-h.factory.made:
		return h, conn
	case <-time.After(waitFor):
		t.Fatal("expected a connection")
		return nil, nil
	}
}

func (h *transportHarness) result(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.openErr:
		return err
	case <-time.After(waitFor):
		t.Fatal("Open did not return")
		return nil
	}
}

func openedTransport(t *testing.T, opts SocketIOOptions) (*transportHarness, *pipeConnection) {
	t.Helper()
	h, conn := startTransport(t, opts)
	conn.serverSend(openFrame)
	require.Equal(t, "40", nextWrite(t, conn))
	conn.serverSend(`40{"sid":"n1"}`)
	require.NoError(t, h.result(t))
	return h, conn
}

func TestSocketIOTransport_Handshake(t *testing.T) {
	h, _ := openedTransport(t, SocketIOOptions{})
	assert.False(t, isClosed(h.transport.CloseChan()))
}

func TestSocketIOTransport_HandshakeWithNamespaceAndAuth(t *testing.T) {
	h, conn := startTransport(t, SocketIOOptions{
		Namespace: "/registro",
		Auth:      map[string]string{"token": "abc"},
	})
	conn.serverSend(openFrame)
	assert.Equal(t, `40/registro,{"token":"abc"}`, nextWrite(t, conn))

	// an ack for another namespace does not complete the handshake
	conn.serverSend(`40{"sid":"other"}`)
	conn.serverSend(`40/registro,{"sid":"n1"}`)
	require.NoError(t, h.result(t))

	require.NoError(t, h.transport.Emit(directiveSubscribe, directive{Event: TopicNuovoVoto}))
	assert.Equal(t, `42/registro,["subscribe",{"event":"nuovo_voto"}]`, nextWrite(t, conn))
}

func TestSocketIOTransport_ConnectError(t *testing.T) {
	h, conn := startTransport(t, SocketIOOptions{})
	conn.serverSend(openFrame)
	nextWrite(t, conn)
	conn.serverSend(`44{"message":"not authorized"}`)

	err := h.result(t)
	assert.ErrorIs(t, err, ErrHandshake)
	assert.Contains(t, err.Error(), "not authorized")
	assert.True(t, isClosed(h.transport.CloseChan()))
	assert.True(t, isClosed(conn.CloseChan()))
}

func TestSocketIOTransport_HandshakeTimeout(t *testing.T) {
	h, _ := startTransport(t, SocketIOOptions{HandshakeTimeout: 20 * time.Millisecond})

	err := h.result(t)
	assert.ErrorIs(t, err, ErrHandshake)
	assert.True(t, isClosed(h.transport.CloseChan()))
}

func TestSocketIOTransport_OpenFailure(t *testing.T) {
	f := newPipeConnectionFactory()
	f.open = func(context.Context) error { return ErrCannotConnect }
	tr := newSocketIOTransport(newTestLogger(io.Discard), f.factory(), func(Signal) {}, SocketIOOptions{})

	err := tr.Open(context.Background())
	assert.ErrorIs(t, err, ErrCannotConnect)
	assert.True(t, isClosed(tr.CloseChan()))
	assert.ErrorIs(t, tr.CloseErr(), ErrCannotConnect)
}

func TestSocketIOTransport_OpenAfterClose(t *testing.T) {
	f := newPipeConnectionFactory()
	tr := newSocketIOTransport(newTestLogger(io.Discard), f.factory(), func(Signal) {}, SocketIOOptions{})
	tr.Close()

	assert.ErrorIs(t, tr.Open(context.Background()), ErrTerminated)
	assert.Empty(t, f.conns)
}

func TestSocketIOTransport_RepliesToPing(t *testing.T) {
	_, conn := openedTransport(t, SocketIOOptions{})

	conn.serverSend("2")
	assert.Equal(t, "3", nextWrite(t, conn))
}

func TestSocketIOTransport_AnswersWebsocketPing(t *testing.T) {
	_, conn := openedTransport(t, SocketIOOptions{})

	conn.recv <- NewPingMessage([]byte("hb"))
	m := <-conn.wroteC
	assert.Equal(t, PongMessage, m.Type())
	assert.Equal(t, "hb", string(m.Data()))
}

func TestSocketIOTransport_DeliversSignals(t *testing.T) {
	h, conn := openedTransport(t, SocketIOOptions{})

	conn.serverSend(`42["connected",{"message":"benvenuto"}]`)
	conn.serverSend(`42["event",{"type":"nuovo_voto","data":{"id":7}}]`)
	conn.serverSend(`42`)
	conn.serverSend(`42["subscribed",{"event":"nuovo_voto"}]`)

	s := nextSignal(t, h.signals)
	assert.Equal(t, signalConnected, s.Name)
	assert.JSONEq(t, `{"message":"benvenuto"}`, string(s.Data))

	s = nextSignal(t, h.signals)
	assert.Equal(t, signalEvent, s.Name)
	assert.JSONEq(t, `{"type":"nuovo_voto","data":{"id":7}}`, string(s.Data))

	s = nextSignal(t, h.signals)
	assert.Equal(t, signalSubscribed, s.Name)
}

func TestSocketIOTransport_EmitDirective(t *testing.T) {
	h, conn := openedTransport(t, SocketIOOptions{})

	require.NoError(t, h.transport.Emit(directiveUnsubscribe, directive{Event: TopicPresenzaRegistrata}))
	assert.Equal(t, `42["unsubscribe",{"event":"presenza_registrata"}]`, nextWrite(t, conn))
}

func TestSocketIOTransport_ServerDisconnect(t *testing.T) {
	h, conn := openedTransport(t, SocketIOOptions{})

	conn.serverSend(`41`)
	require.Eventually(t, func() bool { return isClosed(h.transport.CloseChan()) }, waitFor, time.Millisecond)
	assert.ErrorIs(t, h.transport.CloseErr(), ErrConnectionClosed)
	assert.ErrorIs(t, h.transport.Emit("x", nil), ErrConnectionClosed)
}

func TestSocketIOTransport_EngineClose(t *testing.T) {
	h, conn := openedTransport(t, SocketIOOptions{})

	conn.serverSend(`1`)
	require.Eventually(t, func() bool { return isClosed(h.transport.CloseChan()) }, waitFor, time.Millisecond)
	assert.ErrorIs(t, h.transport.CloseErr(), ErrConnectionClosed)
}

func TestSocketIOTransport_ConnectionDropPropagates(t *testing.T) {
	h, conn := openedTransport(t, SocketIOOptions{})

	cause := errors.Wrap(ErrConnectionClosed, "read: connection reset by peer")
	conn.drop(cause)

	require.Eventually(t, func() bool { return isClosed(h.transport.CloseChan()) }, waitFor, time.Millisecond)
	assert.Equal(t, cause, h.transport.CloseErr())
}

func TestSocketIOTransport_DeliversBufferedEventsBeforeDrop(t *testing.T) {
	const events = 5

	for run := 0; run < 50; run++ {
		h, conn := openedTransport(t, SocketIOOptions{})

		for i := 0; i < events; i++ {
			conn.serverSend(`42["event",{"type":"nuovo_voto","data":{"id":` + strconv.Itoa(i) + `}}]`)
		}
		conn.drop(errors.Wrap(ErrConnectionClosed, "read: connection reset by peer"))

		require.Eventually(t, func() bool { return isClosed(h.transport.CloseChan()) }, waitFor, time.Millisecond)
		require.Len(t, h.signals, events, "run %d", run)
		for i := 0; i < events; i++ {
			s := <-h.signals
			assert.JSONEq(t, `{"type":"nuovo_voto","data":{"id":`+strconv.Itoa(i)+`}}`, string(s.Data))
		}
	}
}

func TestSocketIOTransport_DeliversEventsSentBeforeServerDisconnect(t *testing.T) {
	h, conn := openedTransport(t, SocketIOOptions{})

	conn.serverSend(`42["event",{"type":"nuovo_voto","data":{}}]`)
	conn.serverSend(`41`)

	require.Eventually(t, func() bool { return isClosed(h.transport.CloseChan()) }, waitFor, time.Millisecond)
	require.Len(t, h.signals, 1)
}

func TestSocketIOTransport_ListenerRunsOnReadGoroutine(t *testing.T) {
	factory := newPipeConnectionFactory()
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	transport := newSocketIOTransport(
		newTestLogger(io.Discard),
		factory.factory(),
		func(Signal) {
			entered <- struct{}{}
			<-release
		},
		SocketIOOptions{},
	)
	openErr := make(chan error, 1)
	go func() { openErr <- transport.Open(context.Background()) }()

	conn := <-factory.made
	conn.serverSend(openFrame)
	require.Equal(t, "40", nextWrite(t, conn))
	conn.serverSend(`40`)
	require.NoError(t, <-openErr)

	conn.serverSend(`42["event",{"type":"nuovo_voto","data":{}}]`)
	conn.serverSend("2")
	<-entered

	// the ping behind a blocked listener waits for it
	select {
	case m := <-conn.wroteC:
		t.Fatalf("unexpected write %q while the listener blocks", m.Data())
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.Equal(t, "3", nextWrite(t, conn))
	transport.Close()
}

func TestSocketIOTransport_IgnoresRepeatedOpen(t *testing.T) {
	h, conn := startTransport(t, SocketIOOptions{})
	conn.serverSend(`0{"sid":"s1","pingInterval":50,"pingTimeout":50}`)
	require.Equal(t, "40", nextWrite(t, conn))
	conn.serverSend(`40`)
	require.NoError(t, h.result(t))

	conn.serverSend(`0{"sid":"s2","pingInterval":50,"pingTimeout":50}`)

	// keep pinging well past the first session's deadline
	for i := 0; i < 15; i++ {
		conn.serverSend("2")
		time.Sleep(20 * time.Millisecond)
	}

	assert.False(t, isClosed(h.transport.CloseChan()), "closed with %v", h.transport.CloseErr())
	assert.NotContains(t, conn.writtenFrames()[1:], "40", "no second connect packet")
}

func TestSocketIOTransport_CloseClosesConnection(t *testing.T) {
	h, conn := openedTransport(t, SocketIOOptions{})

	h.transport.Close()
	h.transport.Close()

	assert.True(t, isClosed(conn.CloseChan()))
	assert.ErrorIs(t, h.transport.CloseErr(), ErrTerminated)
}

func TestSocketIOTransport_IgnoresGarbage(t *testing.T) {
	h, conn := openedTransport(t, SocketIOOptions{})

	conn.serverSend(``)
	conn.serverSend(`x`)
	conn.serverSend(`4x`)
	conn.serverSend(`42{"not":"an array"}`)
	conn.serverSend(`451-["event",{"_placeholder":true,"num":0}]`)
	conn.serverSend(`42["event",{"type":"nuovo_voto","data":{}}]`)

	s := nextSignal(t, h.signals)
	assert.Equal(t, signalEvent, s.Name)
	assert.False(t, isClosed(h.transport.CloseChan()))
}

func isClosed(c CloseChan) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}

// socketIOServer is a minimal socket.io endpoint: it completes the handshake,
// greets the client and echoes every subscription back as an event.
func socketIOServer(t *testing.T, token string) *httptest.Server {
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/socket.io/" || r.URL.Query().Get("EIO") != "4" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %s", err)
			return
		}
		defer conn.Close()

		write := func(frame string) bool {
			return conn.WriteMessage(websocket.TextMessage, []byte(frame)) == nil
		}

		if !write(openFrame) {
			return
		}
		for {
			_, bts, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch frame := string(bts); {
			case frame == "40":
				write(`40{"sid":"n1"}`)
				write(`42["connected",{"message":"benvenuto"}]`)
			case frame == `42["subscribe",{"event":"nuovo_voto"}]`:
				write(`42["subscribed",{"event":"nuovo_voto"}]`)
				write(`42["event",{"type":"nuovo_voto","data":{"id":7}}]`)
			}
		}
	}))
}

func TestSocketIOClient_EndToEnd(t *testing.T) {
	srv := socketIOServer(t, "secret")
	defer srv.Close()

	c, err := NewSocketIOClient(SocketIOConfig{
		URL:   srv.URL,
		Token: "secret",
	}, WithLogger(newTestLogger(io.Discard)))
	require.NoError(t, err)

	votes := record(c, TopicNuovoVoto)
	require.NoError(t, c.Subscribe(TopicNuovoVoto))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Connect(ctx)

	e := receive(t, votes)
	assert.JSONEq(t, `{"id":7}`, string(e.Data))
	assert.True(t, c.IsConnected())

	c.Disconnect()
	assert.False(t, c.IsConnected())
}

func TestSocketIOClient_TransportLogsCarryOneTypeField(t *testing.T) {
	srv := socketIOServer(t, "secret")
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	c, err := NewSocketIOClient(SocketIOConfig{
		URL:   srv.URL,
		Token: "secret",
	}, WithLogger(NewZapLogger(zap.New(core))))
	require.NoError(t, err)

	votes := record(c, TopicNuovoVoto)
	require.NoError(t, c.Subscribe(TopicNuovoVoto))
	c.Connect(context.Background())
	receive(t, votes)
	c.Disconnect()

	types := map[string]bool{}
	for _, entry := range logs.All() {
		n := 0
		for _, f := range entry.Context {
			if f.Key == "type" {
				n++
				types[f.String] = true
			}
		}
		assert.LessOrEqual(t, n, 1, "duplicate type field on %q", entry.Message)
	}
	assert.True(t, types["realtime_client"])
	assert.True(t, types["socketio_transport"])
}

func TestSocketIOClient_RejectedDialIsConnectError(t *testing.T) {
	srv := socketIOServer(t, "secret")
	defer srv.Close()

	c, err := NewSocketIOClient(SocketIOConfig{
		URL:   srv.URL,
		Token: "wrong",
	}, WithLogger(newTestLogger(io.Discard)), WithMaxReconnectAttempts(0))
	require.NoError(t, err)

	failures := record(c, TopicConnectError)
	givenUp := record(c, TopicReconnectFailed)
	c.Connect(context.Background())

	e := receive(t, failures)
	assert.True(t, IsDialError(e.Err))
	assert.ErrorIs(t, e.Err, ErrCannotConnect)
	receive(t, givenUp)
	assert.False(t, c.IsConnected())
}

func TestNewSocketIOClient_InvalidURL(t *testing.T) {
	_, err := NewSocketIOClient(SocketIOConfig{URL: "ftp://example.com"})
	assert.Error(t, err)
}
