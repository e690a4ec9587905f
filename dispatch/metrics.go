package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorwire/metric"
)

// routerMetrics holds Prometheus metrics for record dispatch
type routerMetrics struct {
	records     *prometheus.CounterVec   // by kind
	dropped     *prometheus.CounterVec   // by kind
	failures    *prometheus.CounterVec   // by kind
	duration    *prometheus.HistogramVec // by kind
	connections prometheus.Gauge
}

// newRouterMetrics creates and registers dispatch metrics with the provided
// registry. A nil registry disables metrics.
func newRouterMetrics(registry *metric.Registry) (*routerMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &routerMetrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "dispatch",
			Name:      "records_total",
			Help:      "Total records dispatched to a handler",
		}, []string{"kind"}),

		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Total records dropped because no handler was set",
		}, []string{"kind"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorwire",
			Subsystem: "dispatch",
			Name:      "handler_failures_total",
			Help:      "Total handler errors and panics",
		}, []string{"kind"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sensorwire",
			Subsystem: "dispatch",
			Name:      "handler_duration_seconds",
			Help:      "Handler execution duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"kind"}),

		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensorwire",
			Subsystem: "dispatch",
			Name:      "active_connections",
			Help:      "Connections currently in the active state",
		}),
	}

	if err := registry.Register("dispatch", "records_total", m.records); err != nil {
		return nil, err
	}
	if err := registry.Register("dispatch", "dropped_total", m.dropped); err != nil {
		return nil, err
	}
	if err := registry.Register("dispatch", "handler_failures_total", m.failures); err != nil {
		return nil, err
	}
	if err := registry.Register("dispatch", "handler_duration_seconds", m.duration); err != nil {
		return nil, err
	}
	if err := registry.Register("dispatch", "active_connections", m.connections); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *routerMetrics) recordDispatch(kind string, failed bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(kind).Inc()
	if failed {
		m.failures.WithLabelValues(kind).Inc()
	}
	m.duration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *routerMetrics) recordDrop(kind string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(kind).Inc()
}

func (m *routerMetrics) connectionDelta(delta float64) {
	if m == nil {
		return
	}
	m.connections.Add(delta)
}
