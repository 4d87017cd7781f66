package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/mcoot/playerrelay/internal/api/apierr"
	"github.com/mcoot/playerrelay/internal/api/request"
	"github.com/mcoot/playerrelay/internal/api/response"
	"github.com/mcoot/playerrelay/internal/services/registry"
)

// Dispatcher handles inbound command frames
type Dispatcher interface {
	Dispatch(ctx context.Context, sender *registry.Connection, raw []byte) error
}

// CommandHandler accepts wire commands over HTTP
type CommandHandler struct {
	dispatcher   Dispatcher
	maxBodyBytes int64
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(d Dispatcher, maxBodyBytes int64) *CommandHandler {
	return &CommandHandler{dispatcher: d, maxBodyBytes: maxBodyBytes}
}

// Submit handles POST /api/v1/commands. The body is a frame exactly as a
// WebSocket client would send it; it has no sender connection.
func (h *CommandHandler) Submit(w http.ResponseWriter, r *http.Request) {
	body, err := request.ReadBody(w, r, h.maxBodyBytes)
	if err != nil {
		if errors.Is(err, request.ErrBodyTooLarge) {
			apierr.WriteError(w, apierr.NewInvalidRequestError(err.Error()))
			return
		}
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), nil, body); err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.Accepted(w)
}
