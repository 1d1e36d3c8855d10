package libsio

import (
	"fmt"
	"net/url"

	"github.com/pkg/errors"
)

var (
	ErrConnectionClosed  = errors.New("connection has been closed")
	ErrCannotConnect     = errors.New("connection cannot be established")
	ErrTerminated        = errors.New("program exit")
	ErrRateLimit         = errors.New("rate limit exceeded")
	ErrHandshake         = errors.New("socket.io handshake failed")
	ErrPingTimeout       = errors.New("no ping received from server")
	ErrUnsupportedPacket = errors.New("unsupported packet")
	ErrMalformedPacket   = errors.New("malformed packet")
	ErrInvalidTopic      = errors.New("invalid topic")
	ErrRetriesExhausted  = errors.New("max reconnect attempts reached")
)

// DialError is returned when a connection attempt fails before the transport
// became usable. It is never the cause of a drop.
type DialError struct {
	err error
	url url.URL
}

func (e *DialError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %s", e.url.String(), e.err)
}

func (e *DialError) Unwrap() error { return e.err }

// URL returns the endpoint the attempt was made against.
func (e *DialError) URL() url.URL { return e.url }

func wrapDialError(err error, u url.URL) error {
	if err == nil {
		return nil
	}
	return &DialError{err: err, url: u}
}

// IsDialError reports whether err comes from a failed connection attempt.
func IsDialError(err error) bool {
	var de *DialError
	return errors.As(err, &de)
}
