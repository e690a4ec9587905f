// Package websocket provides the WebSocket transport adapter. The capture
// device opens one persistent connection and interleaves JSON telemetry
// envelopes (text frames) with camera/depth payloads (binary frames).
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/sensorwire/codec"
	"github.com/c360/sensorwire/dispatch"
	"github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/metric"
	"github.com/c360/sensorwire/sensor"
	"github.com/c360/sensorwire/session"
	"github.com/c360/sensorwire/transport"
	"github.com/c360/sensorwire/wire"
)

// Server is the WebSocket transport adapter
type Server struct {
	config  Config
	router  *dispatch.Router
	tracker *session.Tracker
	decoder *codec.Decoder
	logger  *slog.Logger
	metrics *Metrics

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader

	conns   map[string]*websocket.Conn
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

// NewServer creates a WebSocket adapter feeding the given router
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
		logger:  logger.With("component", "websocket"),
		metrics: metrics,
		conns:   make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			EnableCompression: config.EnableCompression,
			CheckOrigin:       func(*http.Request) bool { return true },
		},
		shutdown: make(chan struct{}),
	}
	s.tracker = session.NewTracker("websocket", router.Connected, router.Disconnected, logger)
	return s, nil
}

// ProtocolName implements transport.Adapter
func (s *Server) ProtocolName() string { return "websocket" }

// ConnectionURL implements transport.Adapter
func (s *Server) ConnectionURL() string {
	return fmt.Sprintf("ws://%s:%d%s", transport.LocalIP(), s.config.Port, s.config.Path)
}

// Start binds the listener and begins accepting upgrade requests
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "websocket", "Start", "check started state")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrBindFailed, err),
			"websocket", "Start", fmt.Sprintf("bind %s", addr))
	}
	s.listener = listener

	serverCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, func(w http.ResponseWriter, r *http.Request) {
		s.handleUpgrade(serverCtx, w, r)
	})
	s.httpServer = &http.Server{Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	s.started.Store(true)
	s.logger.Info("listening", "addr", listener.Addr().String(), "path", s.config.Path)
	return nil
}

// Stop shuts the adapter down. Idempotent; a never-started adapter stops
// without error.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started.Load() {
		return nil
	}

	s.shutdownOnce.Do(func() { close(s.shutdown) })
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if s.httpServer != nil {
		_ = s.httpServer.Shutdown(ctx)
	}

	// Closing the connections unblocks the read loops.
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
		return errors.WrapTransient(errors.ErrStopTimeout, "websocket", "Stop", "wait for read loops")
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

func (s *Server) handleUpgrade(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		// Browsers, health checkers and scanners all hit this port; answer
		// quietly unless the operator asked to see them.
		if s.metrics != nil {
			s.metrics.rejectedRequests.Inc()
		}
		if s.config.LogRejects {
			s.logger.Debug("rejected non-websocket request",
				"method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		}
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	connID := "ws-" + uuid.NewString()
	conn.SetReadLimit(s.config.MaxMessageSize)

	s.connsMu.Lock()
	s.conns[connID] = conn
	s.connsMu.Unlock()

	if s.metrics != nil {
		s.metrics.connectionsActive.Inc()
		s.metrics.connectionsTotal.Inc()
	}

	s.tracker.Connect(connID, r.RemoteAddr)

	s.wg.Add(1)
	go s.readLoop(ctx, connID, conn)
}

func (s *Server) readLoop(ctx context.Context, connID string, conn *websocket.Conn) {
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

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.shutdown:
			case <-ctx.Done():
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Warn("connection lost", "connection_id", connID, "error", err)
				}
			}
			return
		}

		var kind wire.UnitKind
		switch msgType {
		case websocket.TextMessage:
			kind = wire.Text
		case websocket.BinaryMessage:
			kind = wire.Binary
		default:
			continue
		}

		s.tracker.Touch(connID, len(payload))
		if s.metrics != nil {
			s.metrics.messagesReceived.WithLabelValues(kind.String()).Inc()
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
			continue
		}
		if rec != nil {
			s.router.Dispatch(ctx, rec)
		}
	}
}
