// Package tcpsocket provides the raw TCP transport adapter. The stream has
// no native message boundary, so each connection runs a frame reassembler
// over the 4-byte little-endian length framing. Frame payloads beginning
// with '{' are telemetry envelopes; everything else is a binary sensor
// payload.
package tcpsocket

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/sensorwire/codec"
	"github.com/c360/sensorwire/dispatch"
	"github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/metric"
	"github.com/c360/sensorwire/sensor"
	"github.com/c360/sensorwire/session"
	"github.com/c360/sensorwire/transport"
	"github.com/c360/sensorwire/wire"
)

// readDeadline bounds each Read so loops notice shutdown promptly
const readDeadline = 1 * time.Second

// Server is the raw TCP transport adapter
type Server struct {
	config  Config
	router  *dispatch.Router
	tracker *session.Tracker
	decoder *codec.Decoder
	logger  *slog.Logger
	metrics *Metrics

	listener net.Listener

	conns   map[string]net.Conn
	connsMu sync.Mutex

	// Lifecycle management
	shutdown     chan struct{}
	shutdownOnce sync.Once
	started      atomic.Bool
	lifecycleMu  sync.Mutex
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

var _ transport.Adapter = (*Server)(nil)

// NewServer creates a TCP adapter feeding the given router
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
		logger:   logger.With("component", "tcpsocket"),
		metrics:  metrics,
		conns:    make(map[string]net.Conn),
		shutdown: make(chan struct{}),
	}
	s.tracker = session.NewTracker("tcp", router.Connected, router.Disconnected, logger)
	return s, nil
}

// ProtocolName implements transport.Adapter
func (s *Server) ProtocolName() string { return "tcp" }

// ConnectionURL implements transport.Adapter
func (s *Server) ConnectionURL() string {
	return fmt.Sprintf("tcp://%s:%d", transport.LocalIP(), s.config.Port)
}

// Start binds the listener and launches the accept loop
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "tcpsocket", "Start", "check started state")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrBindFailed, err),
			"tcpsocket", "Start", fmt.Sprintf("bind %s", addr))
	}
	s.listener = listener

	serverCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptLoop(serverCtx)

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

	s.shutdownOnce.Do(func() { close(s.shutdown) })
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.connsMu.Lock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.connsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrStopTimeout, "tcpsocket", "Stop", "wait for loops")
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

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
			case <-ctx.Done():
			default:
				s.logger.Warn("accept failed", "error", err)
			}
			return
		}

		connID := "tcp-" + uuid.NewString()
		s.connsMu.Lock()
		s.conns[connID] = conn
		s.connsMu.Unlock()

		if s.metrics != nil {
			s.metrics.connectionsActive.Inc()
			s.metrics.connectionsTotal.Inc()
		}

		s.tracker.Connect(connID, conn.RemoteAddr().String())

		s.wg.Add(1)
		go s.readLoop(ctx, connID, conn)
	}
}

func (s *Server) readLoop(ctx context.Context, connID string, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		_ = conn.Close()
		s.connsMu.Lock()
		delete(s.conns, connID)
		s.connsMu.Unlock()
		if s.metrics != nil {
			s.metrics.connectionsActive.Dec()
		}
		s.decoder.Forget(connID)
		s.tracker.Disconnect(connID)
	}()

	reassembler := wire.NewReassembler(s.config.MaxFrame)
	buf := make([]byte, s.config.ReadBufferSize)

	for {
		select {
		case <-s.shutdown:
			return
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, err := conn.Read(buf)
		if n > 0 {
			frames, ferr := reassembler.Feed(buf[:n])
			for _, frame := range frames {
				s.handleFrame(ctx, connID, frame)
			}
			if ferr != nil {
				// Oversize declared length: the stream position is lost,
				// the connection cannot recover.
				if s.metrics != nil {
					s.metrics.oversizeFrames.Inc()
				}
				s.logger.Warn("closing connection", "connection_id", connID, "error", ferr)
				s.router.ReportError(&sensor.ErrorRecord{
					Error:        fmt.Sprintf("frame error: %v", ferr),
					ConnectionID: connID,
				})
				return
			}
		}
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-s.shutdown:
			case <-ctx.Done():
			default:
				s.logger.Debug("connection closed", "connection_id", connID, "error", err)
			}
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, connID string, payload []byte) {
	kind := wire.Classify(payload)

	s.tracker.Touch(connID, len(payload))
	if s.metrics != nil {
		s.metrics.framesReceived.WithLabelValues(kind.String()).Inc()
		s.metrics.bytesReceived.Add(float64(len(payload)))
	}

	rec, err := s.decoder.Decode(wire.Unit{ConnectionID: connID, Kind: kind, Payload: payload})
	if err != nil {
		if s.metrics != nil {
			s.metrics.decodeErrors.Inc()
		}
		s.router.ReportError(&sensor.ErrorRecord{
			Error:        fmt.Sprintf("decode failed: %v", err),
			ConnectionID: connID,
		})
		return
	}
	if rec != nil {
		s.router.Dispatch(ctx, rec)
	}
}
