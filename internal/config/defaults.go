package config

import (
	"time"

	"github.com/sonirico/libsio"
)

// Default values for optional configuration fields.
const (
	DefaultPath             = "/socket.io/"
	DefaultNamespace        = "/"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReconnectDelay   = libsio.DefaultReconnectDelay
	DefaultMaxAttempts      = libsio.DefaultMaxReconnectAttempts
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultHistorySize      = libsio.DefaultHistorySize
)

// Default returns a config with every optional field set.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills the fields left empty.
func (c *Config) ApplyDefaults() {
	if c.Server.Path == "" {
		c.Server.Path = DefaultPath
	}
	if c.Server.Namespace == "" {
		c.Server.Namespace = DefaultNamespace
	}
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = DefaultHandshakeTimeout
	}

	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectDelay
	}
	if c.Reconnect.MaxAttempts == nil {
		n := DefaultMaxAttempts
		c.Reconnect.MaxAttempts = &n
	}
	if c.Reconnect.CancelOnDisconnect == nil {
		v := true
		c.Reconnect.CancelOnDisconnect = &v
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.History.Size == 0 {
		c.History.Size = DefaultHistorySize
	}
}
