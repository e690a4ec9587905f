// Package grpcstream provides the gRPC transport adapter. Each client opens
// one bidirectional Publish stream and sends opaque envelope bytes: JSON
// telemetry envelopes interleaved with binary sensor payloads, classified by
// their leading byte. The stream is a per-connection session.
package grpcstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"

	"github.com/c360/sensorwire/codec"
	"github.com/c360/sensorwire/dispatch"
	swerrors "github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/metric"
	"github.com/c360/sensorwire/sensor"
	"github.com/c360/sensorwire/session"
	"github.com/c360/sensorwire/transport"
	"github.com/c360/sensorwire/wire"
)

// Server is the gRPC transport adapter
type Server struct {
	config  Config
	router  *dispatch.Router
	tracker *session.Tracker
	decoder *codec.Decoder
	logger  *slog.Logger
	metrics *Metrics

	grpcServer *grpc.Server
	listener   net.Listener

	// Lifecycle management
	started     atomic.Bool
	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	serverCtx   context.Context
	wg          sync.WaitGroup
}

var _ transport.Adapter = (*Server)(nil)

// NewServer creates a gRPC adapter feeding the given router
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
		config:  config,
		router:  router,
		decoder: codec.NewDecoder(),
		logger:  logger.With("component", "grpcstream"),
		metrics: metrics,
	}
	s.tracker = session.NewTracker("grpc", router.Connected, router.Disconnected, logger)
	return s, nil
}

// ProtocolName implements transport.Adapter
func (s *Server) ProtocolName() string { return "grpc" }

// ConnectionURL implements transport.Adapter
func (s *Server) ConnectionURL() string {
	return fmt.Sprintf("grpc://%s:%d", transport.LocalIP(), s.config.Port)
}

// Start binds the listener and begins serving streams
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return swerrors.WrapFatal(
			fmt.Errorf("%w: %v", swerrors.ErrBindFailed, err),
			"grpcstream", "Start", fmt.Sprintf("bind %s", addr))
	}
	return s.startWithListener(ctx, listener)
}

// startWithListener runs the adapter over a pre-built listener. Split out so
// tests can serve over bufconn.
func (s *Server) startWithListener(ctx context.Context, listener net.Listener) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started.Load() {
		_ = listener.Close()
		return swerrors.WrapInvalid(swerrors.ErrAlreadyStarted, "grpcstream", "Start", "check started state")
	}
	s.listener = listener

	s.serverCtx, s.cancel = context.WithCancel(ctx)

	s.grpcServer = grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.MaxRecvMsgSize(s.config.MaxRecvMsgSize),
	)
	s.grpcServer.RegisterService(&serviceDesc, s)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.grpcServer.Serve(listener); err != nil {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	s.started.Store(true)
	s.logger.Info("listening", "addr", listener.Addr().String(), "service", serviceName)
	return nil
}

// Stop drains streams and shuts the server down. Idempotent.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started.Load() {
		return nil
	}
	s.cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(timeout):
		s.grpcServer.Stop()
		<-stopped
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return swerrors.WrapTransient(swerrors.ErrStopTimeout, "grpcstream", "Stop", "wait for streams")
	}

	s.tracker.CloseAll()
	s.started.Store(false)
	return nil
}

// Stats returns the adapter's session statistics
func (s *Server) Stats() session.Snapshot { return s.tracker.Stats() }

// Addr returns the bound listener address, for tests that bind port 0
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Publish implements the SensorStream service: one stream, one session
func (s *Server) Publish(stream grpc.ServerStream) error {
	connID := "grpc-" + uuid.NewString()
	remoteAddr := ""
	if p, ok := peer.FromContext(stream.Context()); ok && p.Addr != nil {
		remoteAddr = p.Addr.String()
	}

	if s.metrics != nil {
		s.metrics.streamsActive.Inc()
		s.metrics.streamsTotal.Inc()
	}
	s.tracker.Connect(connID, remoteAddr)
	defer func() {
		s.decoder.Forget(connID)
		s.tracker.Disconnect(connID)
		if s.metrics != nil {
			s.metrics.streamsActive.Dec()
		}
	}()

	for {
		var msg rawMessage
		if err := stream.RecvMsg(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			select {
			case <-s.serverCtx.Done():
				return nil
			default:
			}
			s.logger.Debug("stream closed", "connection_id", connID, "error", err)
			return err
		}

		kind := wire.Classify(msg.data)
		s.tracker.Touch(connID, len(msg.data))
		if s.metrics != nil {
			s.metrics.messagesReceived.WithLabelValues(kind.String()).Inc()
			s.metrics.bytesReceived.Add(float64(len(msg.data)))
		}

		rec, err := s.decoder.Decode(wire.Unit{ConnectionID: connID, Kind: kind, Payload: msg.data})
		if err != nil {
			if s.metrics != nil {
				s.metrics.decodeErrors.Inc()
			}
			s.router.ReportError(&sensor.ErrorRecord{
				Error:        fmt.Sprintf("decode failed: %v", err),
				ConnectionID: connID,
			})
			continue
		}
		if rec != nil {
			s.router.Dispatch(stream.Context(), rec)
		}
	}
}
