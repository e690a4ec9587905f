// Package natsbroker provides the NATS transport adapter. Capture devices
// publish JSON envelopes on the telemetry subject and binary payloads on the
// binary subject; a session is synthesized per subject, beginning on the
// first message and ending on broker disconnect or Stop.
//
// NATS invokes subscription and connection callbacks on its own goroutines,
// so the adapter marshals every message and every broker-loss event onto a
// home goroutine through a bounded channel before touching the tracker or the
// router.
package natsbroker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/sensorwire/codec"
	"github.com/c360/sensorwire/dispatch"
	"github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/metric"
	"github.com/c360/sensorwire/sensor"
	"github.com/c360/sensorwire/session"
	"github.com/c360/sensorwire/transport"
	"github.com/c360/sensorwire/wire"
)

// Server is the NATS transport adapter
type Server struct {
	config  Config
	router  *dispatch.Router
	tracker *session.Tracker
	decoder *codec.Decoder
	logger  *slog.Logger
	metrics *Metrics

	conn  *nats.Conn
	subs  []*nats.Subscription
	queue chan event

	// Lifecycle management
	shutdown     chan struct{}
	shutdownOnce sync.Once
	started      atomic.Bool
	lifecycleMu  sync.Mutex
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// event is one item on the home-goroutine queue: either a delivered unit or
// the broker-loss signal, kept on one channel so sessions close only after
// their last delivered record was dispatched.
type event struct {
	unit       wire.Unit
	brokerLost bool
}

var _ transport.Adapter = (*Server)(nil)

// NewServer creates a NATS adapter feeding the given router
func NewServer(config Config, router *dispatch.Router, registry *metric.Registry, logger *slog.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newMetrics(registry)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   config,
		router:   router,
		decoder:  codec.NewDecoder(),
		logger:   logger.With("component", "natsbroker"),
		metrics:  metrics,
		queue:    make(chan event, config.QueueSize),
		shutdown: make(chan struct{}),
	}
	s.tracker = session.NewTracker("nats", router.Connected, router.Disconnected, logger)
	return s, nil
}

// ProtocolName implements transport.Adapter
func (s *Server) ProtocolName() string { return "nats" }

// ConnectionURL implements transport.Adapter
func (s *Server) ConnectionURL() string { return s.config.URL }

// Start connects to the broker and subscribes. A connection failure is a
// bind failure and is returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "natsbroker", "Start", "check started state")
	}

	conn, err := nats.Connect(s.config.URL,
		nats.Name("sensorwire"),
		nats.Timeout(s.config.ConnectTimeout),
		nats.ReconnectWait(s.config.ReconnectWait),
		nats.MaxReconnects(s.config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.logger.Warn("broker disconnected", "error", err)
			// Broker loss ends the synthesized sessions, behind any
			// units the broker already delivered.
			s.enqueueDisconnect()
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Info("broker reconnected", "url", nc.ConnectedUrl())
			if s.metrics != nil {
				s.metrics.reconnects.Inc()
			}
		}),
	)
	if err != nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrBindFailed, err),
			"natsbroker", "Start", fmt.Sprintf("connect %s", s.config.URL))
	}
	s.conn = conn

	serverCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	subscriptions := []struct {
		subject string
		kind    wire.UnitKind
	}{
		{s.config.TelemetrySubject, wire.Text},
		{s.config.BinarySubject, wire.Binary},
	}
	for _, sub := range subscriptions {
		kind := sub.kind
		subject := sub.subject
		natsSub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
			s.enqueue(wire.Unit{
				ConnectionID: "nats-" + msg.Subject,
				Kind:         kind,
				Payload:      msg.Data,
			})
		})
		if err != nil {
			cancel()
			conn.Close()
			return errors.WrapFatal(err, "natsbroker", "Start",
				fmt.Sprintf("subscribe %s", subject))
		}
		s.subs = append(s.subs, natsSub)
	}

	s.wg.Add(1)
	go s.processLoop(serverCtx)

	s.started.Store(true)
	s.logger.Info("subscribed",
		"url", s.config.URL,
		"telemetry_subject", s.config.TelemetrySubject,
		"binary_subject", s.config.BinarySubject)
	return nil
}

// Stop unsubscribes, drains the queue and disconnects. Idempotent.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started.Load() {
		return nil
	}

	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil

	s.shutdownOnce.Do(func() { close(s.shutdown) })
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrStopTimeout, "natsbroker", "Stop", "wait for process loop")
	}

	if s.conn != nil {
		s.conn.Close()
	}
	s.tracker.CloseAll()
	s.started.Store(false)
	return nil
}

// Stats returns the adapter's session statistics
func (s *Server) Stats() session.Snapshot { return s.tracker.Stats() }

// enqueue hands a unit from a broker delivery goroutine to the home
// goroutine. Non-blocking: a full queue drops the unit rather than stalling
// the broker client.
func (s *Server) enqueue(u wire.Unit) {
	select {
	case s.queue <- event{unit: u}:
	default:
		if s.metrics != nil {
			s.metrics.messagesDropped.Inc()
		}
		s.logger.Warn("queue full, dropping message", "connection_id", u.ConnectionID)
	}
}

// enqueueDisconnect orders the broker-loss signal behind every unit already
// on the queue. Blocking: the signal must not be dropped, and the broker
// delivers nothing more on this connection until it reconnects.
func (s *Server) enqueueDisconnect() {
	select {
	case s.queue <- event{brokerLost: true}:
	case <-s.shutdown:
	}
}

func (s *Server) processLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			// Drain what the broker already delivered.
			for {
				select {
				case ev := <-s.queue:
					s.handleEvent(ctx, ev)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Server) handleEvent(ctx context.Context, ev event) {
	if ev.brokerLost {
		s.tracker.CloseAll()
		return
	}
	s.handleUnit(ctx, ev.unit)
}

func (s *Server) handleUnit(ctx context.Context, u wire.Unit) {
	s.tracker.Touch(u.ConnectionID, len(u.Payload))
	if s.metrics != nil {
		s.metrics.messagesReceived.WithLabelValues(strings.TrimPrefix(u.ConnectionID, "nats-")).Inc()
		s.metrics.bytesReceived.Add(float64(len(u.Payload)))
	}

	rec, err := s.decoder.Decode(u)
	if err != nil {
		if s.metrics != nil {
			s.metrics.decodeErrors.Inc()
		}
		s.router.ReportError(&sensor.ErrorRecord{
			Error:        fmt.Sprintf("decode failed: %v", err),
			ConnectionID: u.ConnectionID,
		})
		return
	}
	if rec != nil {
		s.router.Dispatch(ctx, rec)
	}
}
