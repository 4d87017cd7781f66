package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mcoot/playerrelay/internal/dependencies/clock"
)

var (
	ErrDuplicateConnection = errors.New("connection id already registered")
	ErrNotConnecting       = errors.New("connection is not in the connecting state")
)

// Registry tracks live connections keyed by id
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	clock  clock.Clock
	logger *slog.Logger
}

// New creates an empty Registry
func New(clk clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		clock:  clk,
		logger: logger.With(slog.String("component", "registry")),
	}
}

// NewConnection creates a Connecting connection with a fresh id, stamped by
// the registry's clock. It is not tracked until Add.
func (r *Registry) NewConnection(opts ConnectionOptions) *Connection {
	return NewConnection(uuid.NewString(), r.clock.Now(), opts)
}

// Add opens the connection and makes it eligible for broadcasts
func (r *Registry) Add(conn *Connection) error {
	r.mu.Lock()
	if _, exists := r.conns[conn.ID()]; exists {
		r.mu.Unlock()
		return ErrDuplicateConnection
	}
	if !conn.open() {
		r.mu.Unlock()
		return ErrNotConnecting
	}
	r.conns[conn.ID()] = conn
	total := len(r.conns)
	r.mu.Unlock()

	r.logger.Info("connection added",
		slog.String("connection_id", conn.ID()),
		slog.String("kind", string(conn.Kind())),
		slog.String("remote_addr", conn.RemoteAddr()),
		slog.Int("total_connections", total))
	return nil
}

// Remove drops the connection and closes its transport. Removing an unknown
// or already removed id is a no-op; the result reports whether anything was
// removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	total := len(r.conns)
	r.mu.Unlock()

	if !ok {
		return false
	}

	// Transport teardown happens outside the lock
	if err := conn.close(); err != nil {
		r.logger.Debug("transport close error",
			slog.String("connection_id", id),
			slog.Any("error", err))
	}

	r.logger.Info("connection removed",
		slog.String("connection_id", id),
		slog.String("kind", string(conn.Kind())),
		slog.Duration("connection_duration", r.clock.Since(conn.ConnectedAt())),
		slog.Int("total_connections", total))
	return true
}

// Get returns a tracked connection
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Live returns a snapshot of the connections currently open
func (r *Registry) Live() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	live := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		if conn.IsOpen() {
			live = append(live, conn)
		}
	}
	return live
}

// ForEachLive calls fn for every connection open at the time of the call.
// The set is snapshotted first, so fn may call Remove.
func (r *Registry) ForEachLive(fn func(*Connection)) {
	for _, conn := range r.Live() {
		fn(conn)
	}
}

// Count returns the number of tracked connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll removes every connection, returning how many were closed
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	closed := 0
	for _, id := range ids {
		if r.Remove(id) {
			closed++
		}
	}
	r.logger.Info("all connections closed", slog.Int("closed", closed))
	return closed
}
