package libsio

// Metrics receives connection lifecycle and dispatch counters. See the
// telemetry package for a Prometheus implementation.
type Metrics interface {
	IncConnections()
	IncDisconnects()
	IncConnectFailures()
	IncReconnectAttempts()
	IncRetriesExhausted()
	IncEvents(topic string)
	SetConnectionStatus(status float64)
}

type nopMetrics struct{}

func (nopMetrics) IncConnections()           {}
func (nopMetrics) IncDisconnects()           {}
func (nopMetrics) IncConnectFailures()       {}
func (nopMetrics) IncReconnectAttempts()     {}
func (nopMetrics) IncRetriesExhausted()      {}
func (nopMetrics) IncEvents(string)          {}
func (nopMetrics) SetConnectionStatus(float64) {}
