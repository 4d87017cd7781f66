package web

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/playerrelay/internal/web/middleware"
)

// RouterConfig holds configuration for the relay router
type RouterConfig struct {
	Logger *slog.Logger
	// WebSocket serves the bidirectional relay
	WebSocket http.Handler
	// Events serves the read-only SSE stream
	Events http.Handler
}

// NewRouter creates the router for the relay endpoints
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))

	// Older clients dial the bare host, so the root path is the relay too
	r.Handle("/", cfg.WebSocket).Methods(http.MethodGet)
	r.Handle("/ws", cfg.WebSocket).Methods(http.MethodGet)
	r.Handle("/events", cfg.Events).Methods(http.MethodGet)

	return r
}
