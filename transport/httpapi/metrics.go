package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorwire/metric"
)

// Metrics holds Prometheus metrics for the unary HTTP surface. The QUIC
// adapter registers its own instance under its own subsystem.
type Metrics struct {
	requests      *prometheus.CounterVec // by endpoint and status
	bytesReceived prometheus.Counter
	decodeErrors  prometheus.Counter
}

// NewMetrics creates and registers request-surface metrics under the given
// subsystem. A nil registry disables metrics.
func NewMetrics(registry *metric.Registry, subsystem string) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total HTTP requests by endpoint and status code",
		}, []string{"endpoint", "status"}),

		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: subsystem,
			Name:      "bytes_received_total",
			Help:      "Total request body bytes received",
		}),

		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: subsystem,
			Name:      "decode_errors_total",
			Help:      "Total request bodies that failed to decode",
		}),
	}

	if err := registry.Register(subsystem, "requests_total", m.requests); err != nil {
		return nil, err
	}
	if err := registry.Register(subsystem, "bytes_received_total", m.bytesReceived); err != nil {
		return nil, err
	}
	if err := registry.Register(subsystem, "decode_errors_total", m.decodeErrors); err != nil {
		return nil, err
	}

	return m, nil
}
