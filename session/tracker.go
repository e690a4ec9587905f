// Package session tracks per-connection lifecycle and statistics uniformly
// across transports with different connection models. Persistent transports
// call Connect/Disconnect around their connection lifetime; broker and unary
// transports rely on Touch to synthesize a session from the first observed
// message.
package session

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a tracked connection
type State int

// Connection lifecycle states. Connecting and Closing are transitional and
// only observable from concurrent Session lookups.
const (
	Connecting State = iota
	Active
	Closing
	Closed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Info is a point-in-time snapshot of one connection's session
type Info struct {
	ID          string    `json:"id"`
	Transport   string    `json:"transport"`
	RemoteAddr  string    `json:"remoteAddr,omitempty"`
	State       State     `json:"-"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
	Messages    int64     `json:"messages"`
	Bytes       int64     `json:"bytes"`
}

// Snapshot aggregates tracker-wide statistics
type Snapshot struct {
	ActiveConnections int   `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	MessagesReceived  int64 `json:"messages_received"`
	BytesReceived     int64 `json:"bytes_received"`
}

type session struct {
	info     Info
	messages atomic.Int64
	bytes    atomic.Int64
}

// Tracker owns the session state machine for one transport adapter. The
// connect callback fires exactly once per connection, before any record from
// that connection is dispatched; the disconnect callback fires exactly once,
// after the last one. Callbacks run outside the tracker lock. All methods
// are safe for concurrent use.
type Tracker struct {
	transport    string
	onConnect    func(connID string)
	onDisconnect func(connID string)
	logger       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session

	// Monotonic tracker-wide counters
	totalConnections atomic.Int64
	messagesReceived atomic.Int64
	bytesReceived    atomic.Int64
}

// NewTracker creates a tracker for one transport. Either callback may be nil.
func NewTracker(transport string, onConnect, onDisconnect func(connID string), logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		transport:    transport,
		onConnect:    onConnect,
		onDisconnect: onDisconnect,
		logger:       logger.With("component", "session", "transport", transport),
		sessions:     make(map[string]*session),
	}
}

// Connect registers a connection and fires the connect callback. Calling
// Connect for an id that is already tracked is a no-op; the callback never
// fires twice for one session.
func (t *Tracker) Connect(connID, remoteAddr string) {
	now := time.Now()

	t.mu.Lock()
	if _, exists := t.sessions[connID]; exists {
		t.mu.Unlock()
		return
	}
	s := &session{info: Info{
		ID:          connID,
		Transport:   t.transport,
		RemoteAddr:  remoteAddr,
		State:       Connecting,
		ConnectedAt: now,
		LastSeenAt:  now,
	}}
	t.sessions[connID] = s
	s.info.State = Active
	t.mu.Unlock()

	t.totalConnections.Add(1)
	t.logger.Debug("connection opened", "connection_id", connID, "remote_addr", remoteAddr)
	if t.onConnect != nil {
		t.onConnect(connID)
	}
}

// Touch records one received message unit. Counters advance regardless of
// whether the unit later decodes. An untracked id is synthesized into a new
// session first, which fires the connect callback; broker and unary
// transports get their session lifecycle this way.
func (t *Tracker) Touch(connID string, bytes int) {
	t.mu.Lock()
	s, exists := t.sessions[connID]
	t.mu.Unlock()

	if !exists {
		t.Connect(connID, "")
		t.mu.Lock()
		s = t.sessions[connID]
		t.mu.Unlock()
	}

	// Tracker-wide counters advance once per unit even if the session was
	// torn down concurrently.
	t.messagesReceived.Add(1)
	t.bytesReceived.Add(int64(bytes))
	if s == nil {
		return
	}

	s.messages.Add(1)
	s.bytes.Add(int64(bytes))

	t.mu.Lock()
	s.info.LastSeenAt = time.Now()
	t.mu.Unlock()
}

// Disconnect closes a tracked connection and fires the disconnect callback.
// Idempotent: a second Disconnect, or one for an unknown id, is a no-op.
func (t *Tracker) Disconnect(connID string) {
	t.mu.Lock()
	s, exists := t.sessions[connID]
	if !exists {
		t.mu.Unlock()
		return
	}
	s.info.State = Closing
	delete(t.sessions, connID)
	s.info.State = Closed
	t.mu.Unlock()

	t.logger.Debug("connection closed",
		"connection_id", connID,
		"messages", s.messages.Load(),
		"bytes", s.bytes.Load())
	if t.onDisconnect != nil {
		t.onDisconnect(connID)
	}
}

// CloseAll disconnects every tracked connection. Used on adapter shutdown.
func (t *Tracker) CloseAll() {
	t.mu.Lock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		t.Disconnect(id)
	}
}

// Session returns a snapshot of one tracked connection
func (t *Tracker) Session(connID string) (Info, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, exists := t.sessions[connID]
	if !exists {
		return Info{}, false
	}
	info := s.info
	info.Messages = s.messages.Load()
	info.Bytes = s.bytes.Load()
	return info, true
}

// Sessions returns snapshots of all tracked connections
func (t *Tracker) Sessions() []Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Info, 0, len(t.sessions))
	for _, s := range t.sessions {
		info := s.info
		info.Messages = s.messages.Load()
		info.Bytes = s.bytes.Load()
		out = append(out, info)
	}
	return out
}

// Active returns the number of currently tracked connections
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Stats returns tracker-wide aggregate statistics
func (t *Tracker) Stats() Snapshot {
	return Snapshot{
		ActiveConnections: t.Active(),
		TotalConnections:  t.totalConnections.Load(),
		MessagesReceived:  t.messagesReceived.Load(),
		BytesReceived:     t.bytesReceived.Load(),
	}
}
