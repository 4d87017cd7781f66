package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/playerrelay/internal/api/apierr"
	"github.com/mcoot/playerrelay/internal/api/response"
	"github.com/mcoot/playerrelay/internal/model"
	"github.com/mcoot/playerrelay/internal/services/players"
)

// PlayerHandler serves the player list
type PlayerHandler struct {
	players *players.Service
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(svc *players.Service) *PlayerHandler {
	return &PlayerHandler{players: svc}
}

// List handles GET /api/v1/players. The body is the same array clients
// receive on every broadcast.
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.players.Snapshot(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	if snapshot == nil {
		snapshot = []model.Player{}
	}
	response.JSON(w, http.StatusOK, snapshot)
}

// Get handles GET /api/v1/players/{id}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("player id is required"))
		return
	}

	player, err := h.players.Get(r.Context(), model.PlayerID(id))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, player)
}
