package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/sensorwire/metric"
	"github.com/c360/sensorwire/sensor"
)

// Router dispatches decoded records to the application's handler slots. One
// Router serves all transports of a process; Dispatch is safe for concurrent
// use. Dispatch never returns an error and never panics: handler failures are
// counted, surfaced on the error path, and contained.
type Router struct {
	handlers *Handlers
	logger   *slog.Logger
	metrics  *routerMetrics

	dispatched atomic.Int64
	dropped    atomic.Int64
	failed     atomic.Int64
}

// Stats is a point-in-time snapshot of router counters
type Stats struct {
	Dispatched int64 `json:"dispatched"`
	Dropped    int64 `json:"dropped"`
	Failed     int64 `json:"failed"`
}

// NewRouter creates a router over the given handler slots. A nil registry
// disables metrics; a nil logger falls back to slog.Default.
func NewRouter(handlers *Handlers, logger *slog.Logger, registry *metric.Registry) (*Router, error) {
	if handlers == nil {
		handlers = &Handlers{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newRouterMetrics(registry)
	if err != nil {
		return nil, err
	}

	return &Router{
		handlers: handlers,
		logger:   logger.With("component", "dispatch"),
		metrics:  metrics,
	}, nil
}

// Dispatch routes one record to its handler slot. Device-reported error
// envelopes take the error path directly.
func (r *Router) Dispatch(ctx context.Context, rec sensor.Record) {
	h := r.handlers

	switch rec := rec.(type) {
	case *sensor.Handshake:
		r.run(ctx, rec.Kind(), h.OnHandshake != nil, func(ctx context.Context) error { return h.OnHandshake(ctx, rec) })
	case *sensor.IMU:
		r.run(ctx, rec.Kind(), h.OnIMU != nil, func(ctx context.Context) error { return h.OnIMU(ctx, rec) })
	case *sensor.GPS:
		r.run(ctx, rec.Kind(), h.OnGPS != nil, func(ctx context.Context) error { return h.OnGPS(ctx, rec) })
	case *sensor.Pose:
		r.run(ctx, rec.Kind(), h.OnPose != nil, func(ctx context.Context) error { return h.OnPose(ctx, rec) })
	case *sensor.CameraFrame:
		r.run(ctx, rec.Kind(), h.OnCamera != nil, func(ctx context.Context) error { return h.OnCamera(ctx, rec) })
	case *sensor.DepthFrame:
		r.run(ctx, rec.Kind(), h.OnDepth != nil, func(ctx context.Context) error { return h.OnDepth(ctx, rec) })
	case *sensor.WatchIMU:
		r.run(ctx, rec.Kind(), h.OnWatchIMU != nil, func(ctx context.Context) error { return h.OnWatchIMU(ctx, rec) })
	case *sensor.WatchAttitude:
		r.run(ctx, rec.Kind(), h.OnWatchAttitude != nil, func(ctx context.Context) error { return h.OnWatchAttitude(ctx, rec) })
	case *sensor.WatchActivity:
		r.run(ctx, rec.Kind(), h.OnWatchActivity != nil, func(ctx context.Context) error { return h.OnWatchActivity(ctx, rec) })
	case *sensor.Status:
		r.run(ctx, rec.Kind(), h.OnStatus != nil, func(ctx context.Context) error { return h.OnStatus(ctx, rec) })
	case *sensor.ErrorRecord:
		r.ReportError(rec)
	default:
		r.drop(rec.Kind())
	}
}

// ReportError delivers an error record to the OnError slot. Adapters use it
// for decode failures; Dispatch uses it for handler failures. A missing slot
// logs instead of dropping silently.
func (r *Router) ReportError(rec *sensor.ErrorRecord) {
	if rec == nil {
		return
	}
	if r.handlers.OnError == nil {
		r.logger.Warn("unhandled error record",
			"connection_id", rec.ConnectionID,
			"error", rec.Error,
			"details", rec.Details)
		return
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("error handler panicked", "panic", p)
		}
	}()
	r.handlers.OnError(rec)
}

// Connected notifies the application of a new active connection
func (r *Router) Connected(connID string) {
	r.metrics.connectionDelta(1)
	r.notify(r.handlers.OnConnect, connID, "connect")
}

// Disconnected notifies the application of a closed connection
func (r *Router) Disconnected(connID string) {
	r.metrics.connectionDelta(-1)
	r.notify(r.handlers.OnDisconnect, connID, "disconnect")
}

// Stats returns a snapshot of the router counters
func (r *Router) Stats() Stats {
	return Stats{
		Dispatched: r.dispatched.Load(),
		Dropped:    r.dropped.Load(),
		Failed:     r.failed.Load(),
	}
}

func (r *Router) run(ctx context.Context, kind sensor.Kind, set bool, fn func(context.Context) error) {
	if !set {
		r.drop(kind)
		return
	}

	start := time.Now()
	err := r.invoke(ctx, fn)
	r.dispatched.Add(1)
	if err != nil {
		r.failed.Add(1)
	}
	r.metrics.recordDispatch(kind.String(), err != nil, time.Since(start))

	if err != nil {
		r.logger.Warn("handler failed", "kind", kind.String(), "error", err)
		r.ReportError(&sensor.ErrorRecord{
			Error:   fmt.Sprintf("handler failed: %v", err),
			Details: kind.String(),
		})
	}
}

// invoke runs a handler with panic containment
func (r *Router) invoke(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return fn(ctx)
}

func (r *Router) drop(kind sensor.Kind) {
	r.dropped.Add(1)
	r.metrics.recordDrop(kind.String())
}

func (r *Router) notify(fn func(string), connID, event string) {
	if fn == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("lifecycle callback panicked", "event", event, "panic", p)
		}
	}()
	fn(connID)
}
