package libsio

// Option configures a client built by NewClient.
type Option func(*realtimeClient)

// WithLogger sets the logger. Defaults to NewNopLogger.
func WithLogger(l logger) Option {
	return func(c *realtimeClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics collector. Defaults to a no-op collector.
func WithMetrics(m Metrics) Option {
	return func(c *realtimeClient) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithBackoff sets the delay policy between reconnect attempts.
// Defaults to LinearBackoff(DefaultReconnectDelay).
func WithBackoff(b BackoffFunc) Option {
	return func(c *realtimeClient) {
		if b != nil {
			c.backoff = b
		}
	}
}

// WithMaxReconnectAttempts sets how many automatic attempts follow a drop
// before giving up. Defaults to DefaultMaxReconnectAttempts.
func WithMaxReconnectAttempts(n int) Option {
	return func(c *realtimeClient) {
		if n >= 0 {
			c.maxAttempts = n
		}
	}
}

// WithCancelReconnectOnDisconnect chooses whether Disconnect cancels a
// scheduled reconnect. Defaults to true. With false a reconnect scheduled
// before Disconnect still fires and reconnects the client.
func WithCancelReconnectOnDisconnect(cancel bool) Option {
	return func(c *realtimeClient) {
		c.cancelReconnectOnDisconnect = cancel
	}
}

func withClock(cl clock) Option {
	return func(c *realtimeClient) {
		c.clock = cl
	}
}
