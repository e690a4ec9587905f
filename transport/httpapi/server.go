// Package httpapi provides the unary HTTP transport adapter: each POST
// carries one telemetry envelope or one binary payload, and every request is
// tracked as a synthetic single-message session.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/sensorwire/dispatch"
	"github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/metric"
	"github.com/c360/sensorwire/session"
	"github.com/c360/sensorwire/transport"
)

// Server is the unary HTTP transport adapter
type Server struct {
	config  Config
	tracker *session.Tracker
	handler *Handler
	logger  *slog.Logger

	httpServer *http.Server
	listener   net.Listener

	// Lifecycle management
	started     atomic.Bool
	lifecycleMu sync.Mutex
	wg          sync.WaitGroup
}

var _ transport.Adapter = (*Server)(nil)

// NewServer creates an HTTP adapter feeding the given router
func NewServer(config Config, router *dispatch.Router, registry *metric.Registry, logger *slog.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := NewMetrics(registry, "httpapi")
	if err != nil {
		return nil, err
	}

	tracker := session.NewTracker("http", router.Connected, router.Disconnected, logger)
	return &Server{
		config:  config,
		tracker: tracker,
		handler: NewHandler("http", config, router, tracker, logger, metrics),
		logger:  logger.With("component", "httpapi"),
	}, nil
}

// ProtocolName implements transport.Adapter
func (s *Server) ProtocolName() string { return "http" }

// ConnectionURL implements transport.Adapter
func (s *Server) ConnectionURL() string {
	return fmt.Sprintf("http://%s:%d%s", transport.LocalIP(), s.config.Port, s.config.TelemetryPath)
}

// Start binds the listener and begins serving
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "httpapi", "Start", "check started state")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrBindFailed, err),
			"httpapi", "Start", fmt.Sprintf("bind %s", addr))
	}
	s.listener = listener

	s.httpServer = &http.Server{Handler: s.handler}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	s.started.Store(true)
	s.logger.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Stop shuts the adapter down. Idempotent.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started.Load() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if s.httpServer != nil {
		_ = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrStopTimeout, "httpapi", "Stop", "wait for server")
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
