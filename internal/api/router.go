package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/playerrelay/internal/api/handler"
	"github.com/mcoot/playerrelay/internal/api/middleware"
	"github.com/mcoot/playerrelay/internal/api/response"
	"github.com/mcoot/playerrelay/internal/services/players"
	"github.com/mcoot/playerrelay/internal/services/registry"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger     *slog.Logger
	Players    *players.Service
	Registry   *registry.Registry
	Dispatcher handler.Dispatcher
	// MaxCommandBytes bounds POST /commands bodies
	MaxCommandBytes int64
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.Players)
	commandHandler := handler.NewCommandHandler(cfg.Dispatcher, cfg.MaxCommandBytes)
	statsHandler := handler.NewStatsHandler(cfg.Players, cfg.Registry)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Logging(cfg.Logger))
	api.Use(middleware.Recovery(cfg.Logger))

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/stats", statsHandler.Get).Methods(http.MethodGet)

	api.HandleFunc("/players", playerHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}", playerHandler.Get).Methods(http.MethodGet)

	api.HandleFunc("/commands", commandHandler.Submit).Methods(http.MethodPost)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Status{Status: "ok"})
}
