package httpapi

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/c360/sensorwire/codec"
	"github.com/c360/sensorwire/dispatch"
	"github.com/c360/sensorwire/sensor"
	"github.com/c360/sensorwire/session"
	"github.com/c360/sensorwire/wire"
)

// Handler is the unary request surface shared by the HTTP and HTTP/3
// adapters. Each request is a synthetic one-message connection: connect,
// count, decode, dispatch, disconnect.
type Handler struct {
	protocol string
	config   Config
	router   *dispatch.Router
	tracker  *session.Tracker
	decoder  *codec.Decoder
	logger   *slog.Logger
	metrics  *Metrics
}

// NewHandler creates the request surface. protocol appears in the health
// response and in synthesized connection ids.
func NewHandler(
	protocol string,
	config Config,
	router *dispatch.Router,
	tracker *session.Tracker,
	logger *slog.Logger,
	metrics *Metrics,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		protocol: protocol,
		config:   config,
		router:   router,
		tracker:  tracker,
		decoder:  codec.NewDecoder(),
		logger:   logger.With("component", protocol),
		metrics:  metrics,
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case h.config.TelemetryPath:
		if r.Method != http.MethodPost {
			h.respond(w, "telemetry", http.StatusMethodNotAllowed, `{"error":"method not allowed"}`)
			return
		}
		h.handleUnit(w, r, "telemetry", wire.Text)
	case h.config.BinaryPath:
		if r.Method != http.MethodPost {
			h.respond(w, "binary", http.StatusMethodNotAllowed, `{"error":"method not allowed"}`)
			return
		}
		h.handleUnit(w, r, "binary", wire.Binary)
	case h.config.HealthPath:
		if r.Method != http.MethodGet {
			h.respond(w, "health", http.StatusMethodNotAllowed, `{"error":"method not allowed"}`)
			return
		}
		h.respond(w, "health", http.StatusOK,
			fmt.Sprintf(`{"status":"ok","protocol":%q}`, h.protocol))
	default:
		h.respond(w, "other", http.StatusNotFound, `{"error":"not found"}`)
	}
}

// handleUnit brackets one request as a one-message session
func (h *Handler) handleUnit(w http.ResponseWriter, r *http.Request, endpoint string, kind wire.UnitKind) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.config.MaxBodySize+1))
	if err != nil {
		h.respond(w, endpoint, http.StatusBadRequest, `{"error":"read body"}`)
		return
	}
	if int64(len(body)) > h.config.MaxBodySize {
		h.respond(w, endpoint, http.StatusRequestEntityTooLarge, `{"error":"body too large"}`)
		return
	}

	connID := h.protocol + "-" + uuid.NewString()
	h.tracker.Connect(connID, r.RemoteAddr)
	defer h.tracker.Disconnect(connID)

	// Counted before decoding: a malformed body is still a received message.
	h.tracker.Touch(connID, len(body))
	if h.metrics != nil {
		h.metrics.bytesReceived.Add(float64(len(body)))
	}

	rec, err := h.decoder.Decode(wire.Unit{ConnectionID: connID, Kind: kind, Payload: body})
	if err != nil {
		if h.metrics != nil {
			h.metrics.decodeErrors.Inc()
		}
		h.router.ReportError(&sensor.ErrorRecord{
			Error:        fmt.Sprintf("decode failed: %v", err),
			ConnectionID: connID,
		})
		h.respond(w, endpoint, http.StatusBadRequest, `{"error":"malformed payload"}`)
		return
	}
	if rec != nil {
		h.router.Dispatch(r.Context(), rec)
	}
	h.respond(w, endpoint, http.StatusOK, `{"ok":true}`)
}

func (h *Handler) respond(w http.ResponseWriter, endpoint string, status int, body string) {
	if h.metrics != nil {
		h.metrics.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
