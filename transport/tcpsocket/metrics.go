package tcpsocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorwire/metric"
)

// Metrics holds Prometheus metrics for the TCP adapter
type Metrics struct {
	framesReceived    *prometheus.CounterVec // by type (text/binary)
	bytesReceived     prometheus.Counter
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	decodeErrors      prometheus.Counter
	oversizeFrames    prometheus.Counter
}

// newMetrics creates and registers adapter metrics. A nil registry disables
// metrics.
func newMetrics(registry *metric.Registry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "tcpsocket",
			Name:      "frames_received_total",
			Help:      "Total reassembled frames received",
		}, []string{"type"}),

		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "tcpsocket",
			Name:      "bytes_received_total",
			Help:      "Total frame payload bytes received",
		}),

		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensorwire",
			Subsystem: "tcpsocket",
			Name:      "connections_active",
			Help:      "Number of active TCP connections",
		}),

		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "tcpsocket",
			Name:      "connections_total",
			Help:      "Total TCP connections accepted",
		}),

		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "tcpsocket",
			Name:      "decode_errors_total",
			Help:      "Total frames that failed to decode",
		}),

		oversizeFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "tcpsocket",
			Name:      "oversize_frames_total",
			Help:      "Total connections closed for an oversize frame header",
		}),
	}

	if err := registry.Register("tcpsocket", "frames_received_total", m.framesReceived); err != nil {
		return nil, err
	}
	if err := registry.Register("tcpsocket", "bytes_received_total", m.bytesReceived); err != nil {
		return nil, err
	}
	if err := registry.Register("tcpsocket", "connections_active", m.connectionsActive); err != nil {
		return nil, err
	}
	if err := registry.Register("tcpsocket", "connections_total", m.connectionsTotal); err != nil {
		return nil, err
	}
	if err := registry.Register("tcpsocket", "decode_errors_total", m.decodeErrors); err != nil {
		return nil, err
	}
	if err := registry.Register("tcpsocket", "oversize_frames_total", m.oversizeFrames); err != nil {
		return nil, err
	}

	return m, nil
}
