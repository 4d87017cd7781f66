package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mcoot/playerrelay/internal/services/registry"
)

const (
	// Time allowed to write a message to the peer
	DefaultWriteWait = 10 * time.Second

	// Time allowed to read the next pong from the peer
	DefaultPongWait = 60 * time.Second

	// Pings are sent at this period; must be less than the pong wait
	DefaultPingPeriod = (DefaultPongWait * 9) / 10

	DefaultMaxMessageSize = 64 * 1024
)

// Dispatcher handles inbound frames
type Dispatcher interface {
	Dispatch(ctx context.Context, sender *registry.Connection, raw []byte) error
}

// Config holds WebSocket transport settings
type Config struct {
	MaxMessageSize int64
	AllowedOrigins []string
	// BufferSize bounds each connection's outbound queue
	BufferSize int
	// RatePerSecond and RateBurst limit inbound frames per connection.
	// A zero rate disables limiting.
	RatePerSecond float64
	RateBurst     int

	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
}

// DefaultConfig returns the default transport configuration
func DefaultConfig() Config {
	return Config{
		MaxMessageSize: DefaultMaxMessageSize,
		BufferSize:     registry.DefaultBufferSize,
		WriteWait:      DefaultWriteWait,
		PongWait:       DefaultPongWait,
		PingPeriod:     DefaultPingPeriod,
	}
}

// Handler upgrades requests to WebSocket relay connections
type Handler struct {
	registry   *registry.Registry
	dispatcher Dispatcher
	config     Config
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a WebSocket handler
func NewHandler(reg *registry.Registry, d Dispatcher, cfg Config, logger *slog.Logger) *Handler {
	defaults := DefaultConfig()
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = (cfg.PongWait * 9) / 10
	}

	logger = logger.With(slog.String("component", "websocket"))
	origins := NewOriginPolicy(cfg.AllowedOrigins, logger)

	return &Handler{
		registry:   reg,
		dispatcher: d,
		config:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes.
// The read pump runs on the request goroutine, the write pump on its own.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Debug("upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		return
	}

	conn := h.registry.NewConnection(registry.ConnectionOptions{
		Kind:       registry.KindWebSocket,
		RemoteAddr: r.RemoteAddr,
		BufferSize: h.config.BufferSize,
		Closer: func() error {
			deadline := time.Now().Add(h.config.WriteWait)
			_ = wsConn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return wsConn.Close()
		},
	})
	if err := h.registry.Add(conn); err != nil {
		h.logger.Error("failed to register connection", slog.Any("error", err))
		_ = wsConn.Close()
		return
	}

	c := &client{
		handler: h,
		ws:      wsConn,
		conn:    conn,
		logger:  h.logger.With(slog.String("connection_id", conn.ID())),
	}
	if h.config.RatePerSecond > 0 {
		burst := h.config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(h.config.RatePerSecond), burst)
	}

	go c.writePump()
	c.readPump(r.Context())
}
