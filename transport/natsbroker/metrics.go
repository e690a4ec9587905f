package natsbroker

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorwire/metric"
)

// Metrics holds Prometheus metrics for the NATS adapter
type Metrics struct {
	messagesReceived *prometheus.CounterVec // by subject
	bytesReceived    prometheus.Counter
	messagesDropped  prometheus.Counter
	decodeErrors     prometheus.Counter
	reconnects       prometheus.Counter
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
			Subsystem: "natsbroker",
			Name:      "messages_received_total",
			Help:      "Total broker messages received by subject",
		}, []string{"subject"}),

		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "natsbroker",
			Name:      "bytes_received_total",
			Help:      "Total broker payload bytes received",
		}),

		messagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "natsbroker",
			Name:      "messages_dropped_total",
			Help:      "Total messages dropped because the processing queue was full",
		}),

		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "natsbroker",
			Name:      "decode_errors_total",
			Help:      "Total messages that failed to decode",
		}),

		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "natsbroker",
			Name:      "reconnects_total",
			Help:      "Total broker reconnections",
		}),
	}

	if err := registry.Register("natsbroker", "messages_received_total", m.messagesReceived); err != nil {
		return nil, err
	}
	if err := registry.Register("natsbroker", "bytes_received_total", m.bytesReceived); err != nil {
		return nil, err
	}
	if err := registry.Register("natsbroker", "messages_dropped_total", m.messagesDropped); err != nil {
		return nil, err
	}
	if err := registry.Register("natsbroker", "decode_errors_total", m.decodeErrors); err != nil {
		return nil, err
	}
	if err := registry.Register("natsbroker", "reconnects_total", m.reconnects); err != nil {
		return nil, err
	}

	return m, nil
}
