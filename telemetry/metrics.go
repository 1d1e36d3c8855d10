package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "realtime"

// PromMetrics implements the libsio.Metrics interface using Prometheus.
type PromMetrics struct {
	connections       prometheus.Counter
	disconnects       prometheus.Counter
	connectFailures   prometheus.Counter
	reconnectAttempts prometheus.Counter
	retriesExhausted  prometheus.Counter
	events            *prometheus.CounterVec
	connStatus        prometheus.Gauge
}

// NewMetrics creates and registers the realtime client metrics.
// If registry is nil, it uses the global default registry.
func NewMetrics(registry prometheus.Registerer, labels map[string]string) *PromMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	m := &PromMetrics{
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "connections_total",
			Help:        "Total number of successful socket.io connections established.",
			ConstLabels: labels,
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "disconnects_total",
			Help:        "Total number of connections lost or closed.",
			ConstLabels: labels,
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "connect_failures_total",
			Help:        "Total number of connection attempts that failed.",
			ConstLabels: labels,
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "reconnect_attempts_total",
			Help:        "Total number of automatic reconnect attempts scheduled.",
			ConstLabels: labels,
		}),
		retriesExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "retries_exhausted_total",
			Help:        "Total number of times the client gave up reconnecting.",
			ConstLabels: labels,
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "events_total",
			Help:        "Total number of server events dispatched, by topic.",
			ConstLabels: labels,
		}, []string{"topic"}),
		connStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "connection_status",
			Help:        "Current status of the connection (1 = connected, 0 = disconnected).",
			ConstLabels: labels,
		}),
	}

	registry.MustRegister(
		m.connections,
		m.disconnects,
		m.connectFailures,
		m.reconnectAttempts,
		m.retriesExhausted,
		m.events,
		m.connStatus,
	)

	return m
}

func (m *PromMetrics) IncConnections() {
	m.connections.Inc()
}

func (m *PromMetrics) IncDisconnects() {
	m.disconnects.Inc()
}

func (m *PromMetrics) IncConnectFailures() {
	m.connectFailures.Inc()
}

func (m *PromMetrics) IncReconnectAttempts() {
	m.reconnectAttempts.Inc()
}

func (m *PromMetrics) IncRetriesExhausted() {
	m.retriesExhausted.Inc()
}

func (m *PromMetrics) IncEvents(topic string) {
	m.events.WithLabelValues(topic).Inc()
}

func (m *PromMetrics) SetConnectionStatus(status float64) {
	m.connStatus.Set(status)
}
