package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorwire/metric"
)

// Metrics holds Prometheus metrics for the WebSocket adapter
type Metrics struct {
	messagesReceived  *prometheus.CounterVec // by type (text/binary)
	bytesReceived     prometheus.Counter
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	decodeErrors      prometheus.Counter
	rejectedRequests  prometheus.Counter
}

// newMetrics creates and registers adapter metrics. A nil registry disables
// metrics.
func newMetrics(registry *metric.Registry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "websocket",
			Name:      "messages_received_total",
			Help:      "Total WebSocket messages received",
		}, []string{"type"}),

		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "websocket",
			Name:      "bytes_received_total",
			Help:      "Total WebSocket payload bytes received",
		}),

		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensorwire",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of active WebSocket connections",
		}),

		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total WebSocket connections accepted",
		}),

		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "websocket",
			Name:      "decode_errors_total",
			Help:      "Total message units that failed to decode",
		}),

		rejectedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "websocket",
			Name:      "rejected_requests_total",
			Help:      "Total non-WebSocket HTTP requests rejected",
		}),
	}

	if err := registry.Register("websocket", "messages_received_total", m.messagesReceived); err != nil {
		return nil, err
	}
	if err := registry.Register("websocket", "bytes_received_total", m.bytesReceived); err != nil {
		return nil, err
	}
	if err := registry.Register("websocket", "connections_active", m.connectionsActive); err != nil {
		return nil, err
	}
	if err := registry.Register("websocket", "connections_total", m.connectionsTotal); err != nil {
		return nil, err
	}
	if err := registry.Register("websocket", "decode_errors_total", m.decodeErrors); err != nil {
		return nil, err
	}
	if err := registry.Register("websocket", "rejected_requests_total", m.rejectedRequests); err != nil {
		return nil, err
	}

	return m, nil
}
