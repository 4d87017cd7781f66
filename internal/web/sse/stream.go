package sse

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/playerrelay/internal/services/registry"
)

const (
	// EventPlayers carries each broadcast player list
	EventPlayers = "players"

	// Time allowed to write a message to the peer
	DefaultWriteWait = 10 * time.Second

	// Time between keepalive comments
	DefaultKeepalive = 30 * time.Second
)

// Config holds SSE stream settings
type Config struct {
	BufferSize int
	WriteWait  time.Duration
	Keepalive  time.Duration
}

// DefaultConfig returns the default stream configuration
func DefaultConfig() Config {
	return Config{
		BufferSize: registry.DefaultBufferSize,
		WriteWait:  DefaultWriteWait,
		Keepalive:  DefaultKeepalive,
	}
}

// Handler streams every broadcast to read-only SSE subscribers. Each
// subscriber is a registry connection, so it receives exactly what
// WebSocket clients receive.
type Handler struct {
	registry *registry.Registry
	config   Config
	logger   *slog.Logger
}

// NewHandler creates an SSE handler
func NewHandler(reg *registry.Registry, cfg Config, logger *slog.Logger) *Handler {
	defaults := DefaultConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.Keepalive <= 0 {
		cfg.Keepalive = defaults.Keepalive
	}
	return &Handler{
		registry: reg,
		config:   cfg,
		logger:   logger.With(slog.String("component", "sse")),
	}
}

type connectedEvent struct {
	Status       string `json:"status"`
	ConnectionID string `json:"connection_id"`
}

// ServeHTTP holds the stream open until the client goes away or the
// registry removes the connection
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	rc := http.NewResponseController(w)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := h.registry.NewConnection(registry.ConnectionOptions{
		Kind:       registry.KindSSE,
		RemoteAddr: r.RemoteAddr,
		BufferSize: h.config.BufferSize,
		Closer: func() error {
			cancel()
			return nil
		},
	})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	if err := h.registry.Add(conn); err != nil {
		h.logger.Error("failed to register connection", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer h.registry.Remove(conn.ID())

	logger := h.logger.With(slog.String("connection_id", conn.ID()))

	write := func(msg []byte) bool {
		_ = rc.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
		if _, err := w.Write(msg); err != nil {
			logger.Debug("stream write failed", slog.Any("error", err))
			return false
		}
		flusher.Flush()
		return true
	}

	hello, _ := json.Marshal(connectedEvent{Status: "connected", ConnectionID: conn.ID()})
	if !write(formatSSEMessage("connected", string(hello))) {
		return
	}

	ticker := time.NewTicker(h.config.Keepalive)
	defer ticker.Stop()

	for {
		select {
		case message := <-conn.Outbound():
			if !write(formatSSEMessage(EventPlayers, string(message))) {
				return
			}

		case <-ticker.C:
			if !write([]byte(": keepalive\n\n")) {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
