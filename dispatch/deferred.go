package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360/sensorwire/errors"
)

// Deferred wraps a record handler with a bounded queue and a single worker
// goroutine, decoupling slow application processing from transport read
// loops. The single worker preserves per-kind record order. Handle has the
// same signature as a Handlers slot, so wiring is one assignment:
//
//	deferred := dispatch.NewDeferred(1024, slowIMUHandler, nil)
//	handlers.OnIMU = deferred.Handle
type Deferred[T any] struct {
	queue   chan *T
	handler func(context.Context, *T) error
	report  func(error)

	wg sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	statsMu sync.Mutex
	stats   DeferredStats
}

// DeferredStats is a snapshot of deferred handler counters
type DeferredStats struct {
	Enqueued  int64 `json:"enqueued"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// NewDeferred creates a deferred handler with the given queue size. The
// report callback receives handler errors asynchronously; nil discards them.
func NewDeferred[T any](queueSize int, handler func(context.Context, *T) error, report func(error)) *Deferred[T] {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if handler == nil {
		panic("dispatch: nil deferred handler")
	}
	return &Deferred[T]{
		queue:   make(chan *T, queueSize),
		handler: handler,
		report:  report,
	}
}

// Start launches the worker goroutine
func (d *Deferred[T]) Start(ctx context.Context) error {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	if d.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "dispatch", "Start", "start deferred handler")
	}
	d.started = true

	d.wg.Add(1)
	go d.worker(ctx)
	return nil
}

// Handle enqueues a record without blocking. A full queue drops the record
// and returns ErrQueueFull; the transport read loop stays unblocked.
func (d *Deferred[T]) Handle(_ context.Context, rec *T) error {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	if !d.started {
		return errors.WrapInvalid(errors.ErrNotStarted, "dispatch", "Handle", "enqueue record")
	}
	if d.stopped {
		return errors.WrapTransient(errors.ErrShuttingDown, "dispatch", "Handle", "enqueue record")
	}

	select {
	case d.queue <- rec:
		d.addStats(func(s *DeferredStats) { s.Enqueued++ })
		return nil
	default:
		d.addStats(func(s *DeferredStats) { s.Dropped++ })
		return errors.WrapTransient(errors.ErrQueueFull, "dispatch", "Handle", "enqueue record")
	}
}

// Stop drains the queue and waits for the worker up to the timeout
func (d *Deferred[T]) Stop(timeout time.Duration) error {
	d.lifecycleMu.Lock()
	if !d.started || d.stopped {
		d.lifecycleMu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return errors.WrapTransient(errors.ErrStopTimeout, "dispatch", "Stop", "wait for worker")
	}
}

// Stats returns a snapshot of the deferred handler counters
func (d *Deferred[T]) Stats() DeferredStats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.stats
}

// Depth returns the current queue depth
func (d *Deferred[T]) Depth() int {
	return len(d.queue)
}

func (d *Deferred[T]) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-d.queue:
			if !ok {
				return
			}
			err := d.process(ctx, rec)
			d.addStats(func(s *DeferredStats) {
				s.Processed++
				if err != nil {
					s.Failed++
				}
			})
			if err != nil && d.report != nil {
				d.report(err)
			}
		}
	}
}

// process runs the handler with panic containment
func (d *Deferred[T]) process(ctx context.Context, rec *T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("deferred handler panic: %v", p)
		}
	}()
	return d.handler(ctx, rec)
}

func (d *Deferred[T]) addStats(fn func(*DeferredStats)) {
	d.statsMu.Lock()
	fn(&d.stats)
	d.statsMu.Unlock()
}
