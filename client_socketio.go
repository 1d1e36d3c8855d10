package libsio

import (
	"net/http"

	"github.com/fasthttp/websocket"
)

// SocketIOConfig describes how to reach a socket.io server.
type SocketIOConfig struct {
	// URL of the server, e.g. https://school.example.com.
	URL string
	// Path of the socket.io endpoint. Defaults to /socket.io/.
	Path string
	// Token, when set, is sent as a bearer Authorization header on every dial.
	Token string
	// Header is added to every dial.
	Header http.Header
	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer

	SocketIOOptions
}

// NewSocketIOClient wires a Client to a socket.io server over websockets.
func NewSocketIOClient(cfg SocketIOConfig, opts ...Option) (Client, error) {
	getter, err := StaticOpenConnectionParams(cfg.URL, cfg.Path, cfg.Token, cfg.Header)
	if err != nil {
		return nil, err
	}

	c := newRealtimeClient(nil, opts...)

	repo := NewOpenConnectionParamsRepo(c.baseLogger, getter)
	connFactory := NewWebsocketFactory(c.baseLogger, cfg.Dialer, repo, ErrorAdapters{})
	c.factory = NewSocketIOTransportFactory(c.baseLogger, connFactory, cfg.SocketIOOptions)

	return c, nil
}
