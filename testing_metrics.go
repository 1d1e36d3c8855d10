package libsio

import (
	"github.com/stretchr/testify/mock"
)

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) IncConnections()       { m.Called() }
func (m *mockMetrics) IncDisconnects()       { m.Called() }
func (m *mockMetrics) IncConnectFailures()   { m.Called() }
func (m *mockMetrics) IncReconnectAttempts() { m.Called() }
func (m *mockMetrics) IncRetriesExhausted()  { m.Called() }
func (m *mockMetrics) IncEvents(topic string) {
	m.Called(topic)
}
func (m *mockMetrics) SetConnectionStatus(status float64) {
	m.Called(status)
}

func newPermissiveMockMetrics() *mockMetrics {
	m := &mockMetrics{}
	for _, name := range []string{
		"IncConnections", "IncDisconnects", "IncConnectFailures",
		"IncReconnectAttempts", "IncRetriesExhausted",
	} {
		m.On(name).Return()
	}
	m.On("IncEvents", mock.Anything).Return()
	m.On("SetConnectionStatus", mock.Anything).Return()
	return m
}
