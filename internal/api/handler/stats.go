package handler

import (
	"context"
	"net/http"

	"github.com/mcoot/playerrelay/internal/api/apierr"
	"github.com/mcoot/playerrelay/internal/api/response"
)

// PlayerCounter counts stored players
type PlayerCounter interface {
	Count(ctx context.Context) (int, error)
}

// ConnectionCounter counts live connections
type ConnectionCounter interface {
	Count() int
}

// StatsHandler reports relay counters
type StatsHandler struct {
	players     PlayerCounter
	connections ConnectionCounter
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(players PlayerCounter, connections ConnectionCounter) *StatsHandler {
	return &StatsHandler{players: players, connections: connections}
}

// Get handles GET /api/v1/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	count, err := h.players.Count(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Stats{
		Players:     count,
		Connections: h.connections.Count(),
	})
}
