package grpcstream

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorwire/metric"
)

// Metrics holds Prometheus metrics for the gRPC adapter
type Metrics struct {
	messagesReceived *prometheus.CounterVec // by type (text/binary)
	bytesReceived    prometheus.Counter
	streamsActive    prometheus.Gauge
	streamsTotal     prometheus.Counter
	decodeErrors     prometheus.Counter
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
			Subsystem: "grpcstream",
			Name:      "messages_received_total",
			Help:      "Total stream messages received",
		}, []string{"type"}),

		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "grpcstream",
			Name:      "bytes_received_total",
			Help:      "Total stream payload bytes received",
		}),

		streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensorwire",
			Subsystem: "grpcstream",
			Name:      "streams_active",
			Help:      "Number of active publish streams",
		}),

		streamsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "grpcstream",
			Name:      "streams_total",
			Help:      "Total publish streams accepted",
		}),

		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "grpcstream",
			Name:      "decode_errors_total",
			Help:      "Total stream messages that failed to decode",
		}),
	}

	if err := registry.Register("grpcstream", "messages_received_total", m.messagesReceived); err != nil {
		return nil, err
	}
	if err := registry.Register("grpcstream", "bytes_received_total", m.bytesReceived); err != nil {
		return nil, err
	}
	if err := registry.Register("grpcstream", "streams_active", m.streamsActive); err != nil {
		return nil, err
	}
	if err := registry.Register("grpcstream", "streams_total", m.streamsTotal); err != nil {
		return nil, err
	}
	if err := registry.Register("grpcstream", "decode_errors_total", m.decodeErrors); err != nil {
		return nil, err
	}

	return m, nil
}
