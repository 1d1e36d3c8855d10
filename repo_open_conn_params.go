package libsio

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const (
	defaultSocketIOPath = "/socket.io/"
	engineIOVersion     = "4"
)

type (
	// OpenConnectionParams is everything needed to dial the push channel.
	OpenConnectionParams struct {
		URL    url.URL
		Header http.Header
	}

	OpenConnectionParamsGetter func(ctx context.Context) (OpenConnectionParams, error)

	// OpenConnectionParamsRepo resolves dial parameters on every attempt, so
	// rotating credentials are picked up by reconnects.
	OpenConnectionParamsRepo struct {
		logger logger
		getter OpenConnectionParamsGetter
	}
)

func (r OpenConnectionParamsRepo) Get(
	ctx context.Context,
) (params OpenConnectionParams, err error) {
	params, err = r.getter(ctx)
	if err != nil {
		r.logger.Errorf("cannot fetch open connection params: %s", err)
	}
	return
}

func NewOpenConnectionParamsRepo(
	logger logger,
	getter OpenConnectionParamsGetter,
) OpenConnectionParamsRepo {
	return OpenConnectionParamsRepo{getter: getter, logger: logger}
}

// SocketIOURL turns a server base URL (http, https, ws or wss) into the
// Engine.IO websocket endpoint. An empty path selects /socket.io/.
func SocketIOURL(base string, path string) (url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return url.URL{}, errors.Wrap(err, "invalid server url")
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return url.URL{}, errors.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return url.URL{}, errors.New("server url has no host")
	}

	if path == "" {
		path = defaultSocketIOPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	q := u.Query()
	q.Set("EIO", engineIOVersion)
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()

	return *u, nil
}

// StaticOpenConnectionParams returns a getter that always yields the socket.io
// endpoint for base. A non-empty token is sent as a bearer Authorization header.
func StaticOpenConnectionParams(base, path, token string, header http.Header) (OpenConnectionParamsGetter, error) {
	u, err := SocketIOURL(base, path)
	if err != nil {
		return nil, err
	}

	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}

	return func(context.Context) (OpenConnectionParams, error) {
		return OpenConnectionParams{URL: u, Header: h.Clone()}, nil
	}, nil
}
