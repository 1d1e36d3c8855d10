package config

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"github.com/sonirico/libsio"
)

// Validate checks that all required fields are set and values are valid.
// Call ApplyDefaults first.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	if _, err := libsio.SocketIOURL(c.Server.URL, c.Server.Path); err != nil {
		return errors.Wrap(err, "server.url")
	}
	if !strings.HasPrefix(c.Server.Namespace, "/") {
		return errors.New("server.namespace must start with /")
	}
	if c.Server.HandshakeTimeout < 0 {
		return errors.New("server.handshake_timeout must be >= 0")
	}

	for i, t := range c.Topics {
		topic := libsio.Topic(t)
		if topic == "" {
			return errors.Errorf("topics[%d] is empty", i)
		}
		if topic.IsLifecycle() {
			return errors.Errorf("topics[%d]: %s is a client lifecycle topic", i, t)
		}
	}

	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxAttempts != nil && *c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect.max_attempts must be >= 0")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	if c.Metrics.Addr != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}

	if c.History.Size < 0 {
		return errors.New("history.size must be >= 0")
	}

	return nil
}
