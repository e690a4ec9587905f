// Package quicapi provides the HTTP/3 transport adapter. It serves the same
// unary request surface as the HTTP adapter over QUIC, for capture devices on
// lossy links where TCP head-of-line blocking hurts frame delivery.
package quicapi

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go/http3"

	"github.com/c360/sensorwire/dispatch"
	swerrors "github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/metric"
	"github.com/c360/sensorwire/session"
	"github.com/c360/sensorwire/transport"
	"github.com/c360/sensorwire/transport/httpapi"
)

// Server is the HTTP/3 transport adapter
type Server struct {
	config  Config
	tracker *session.Tracker
	handler *httpapi.Handler
	logger  *slog.Logger

	h3Server *http3.Server
	udpConn  *net.UDPConn

	// Lifecycle management
	started     atomic.Bool
	lifecycleMu sync.Mutex
	wg          sync.WaitGroup
}

var _ transport.Adapter = (*Server)(nil)

// NewServer creates an HTTP/3 adapter feeding the given router
func NewServer(config Config, router *dispatch.Router, registry *metric.Registry, logger *slog.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := httpapi.NewMetrics(registry, "quicapi")
	if err != nil {
		return nil, err
	}

	tracker := session.NewTracker("http3", router.Connected, router.Disconnected, logger)
	return &Server{
		config:  config,
		tracker: tracker,
		handler: httpapi.NewHandler("http3", config.API, router, tracker, logger, metrics),
		logger:  logger.With("component", "quicapi"),
	}, nil
}

// ProtocolName implements transport.Adapter
func (s *Server) ProtocolName() string { return "http3" }

// ConnectionURL implements transport.Adapter
func (s *Server) ConnectionURL() string {
	return fmt.Sprintf("https://%s:%d%s", transport.LocalIP(), s.config.Port, s.config.API.TelemetryPath)
}

// Start binds the UDP socket and begins serving
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started.Load() {
		return swerrors.WrapInvalid(swerrors.ErrAlreadyStarted, "quicapi", "Start", "check started state")
	}

	var tlsConf *tls.Config
	var err error
	if s.config.CertFile != "" {
		tlsConf, err = loadTLSConfig(s.config.CertFile, s.config.KeyFile)
	} else {
		tlsConf, err = selfSignedTLSConfig()
	}
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return swerrors.WrapInvalid(err, "quicapi", "Start", fmt.Sprintf("resolve %s", addr))
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return swerrors.WrapFatal(
			fmt.Errorf("%w: %v", swerrors.ErrBindFailed, err),
			"quicapi", "Start", fmt.Sprintf("bind %s", addr))
	}
	s.udpConn = udpConn

	s.h3Server = &http3.Server{
		Handler:   s.handler,
		TLSConfig: tlsConf,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.h3Server.Serve(udpConn)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	s.started.Store(true)
	s.logger.Info("listening", "addr", udpConn.LocalAddr().String(),
		"self_signed", s.config.CertFile == "")
	return nil
}

// Stop shuts the adapter down. Idempotent.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started.Load() {
		return nil
	}

	if s.h3Server != nil {
		_ = s.h3Server.Close()
	}
	_ = s.udpConn.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return swerrors.WrapTransient(swerrors.ErrStopTimeout, "quicapi", "Stop", "wait for server")
	}

	s.tracker.CloseAll()
	s.started.Store(false)
	return nil
}

// Stats returns the adapter's session statistics
func (s *Server) Stats() session.Snapshot { return s.tracker.Stats() }

// Addr returns the bound UDP address, for tests that bind port 0
func (s *Server) Addr() string {
	if s.udpConn == nil {
		return ""
	}
	return s.udpConn.LocalAddr().String()
}
