package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mcoot/playerrelay/internal/api/apierr"
	"github.com/mcoot/playerrelay/internal/model"
	"github.com/mcoot/playerrelay/internal/services/registry"
)

// ErrorFrame is sent to a client whose command was malformed or rejected
type ErrorFrame struct {
	Name  string          `json:"name"`
	Error apierr.APIError `json:"error"`
}

const errorFrameName = "ERROR"

type client struct {
	handler *Handler
	ws      *websocket.Conn
	conn    *registry.Connection
	limiter *rate.Limiter
	logger  *slog.Logger
}

func (c *client) readPump(ctx context.Context) {
	defer c.handler.registry.Remove(c.conn.ID())

	cfg := c.handler.config
	c.ws.SetReadLimit(cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.logger.Warn("rate limit exceeded, dropping frame")
			continue
		}

		c.handle(ctx, raw)
	}
}

func (c *client) handle(ctx context.Context, raw []byte) {
	err := c.handler.dispatcher.Dispatch(ctx, c.conn, raw)
	switch {
	case err == nil:
		return
	case errors.Is(err, model.ErrUnknownCommand):
		// Unknown commands are ignored; the dispatcher has logged them
		return
	case errors.Is(err, model.ErrMalformedCommand), errors.Is(err, model.ErrDuplicatePlayer):
		c.logger.Debug("command rejected", slog.Any("error", err))
	default:
		c.logger.Error("command failed", slog.Any("error", err))
	}
	c.reply(ctx, err)
}

// reply queues an error frame for this connection only
func (c *client) reply(ctx context.Context, cause error) {
	frame, err := json.Marshal(ErrorFrame{Name: errorFrameName, Error: apierr.FromError(cause)})
	if err != nil {
		c.logger.Error("failed to encode error frame", slog.Any("error", err))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.handler.config.WriteWait)
	defer cancel()
	if err := c.conn.Send(sendCtx, frame); err != nil {
		c.logger.Debug("error frame not delivered", slog.Any("error", err))
	}
}

func (c *client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeded maximum size",
			slog.Int64("max_message_size", c.handler.config.MaxMessageSize))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.logger.Debug("client closed connection")
	case errors.Is(err, net.ErrClosed):
		// Closed by the registry
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.logger.Warn("unexpected close", slog.Any("error", err))
	default:
		c.logger.Debug("read ended", slog.Any("error", err))
	}
}

// writePump is the only writer of data frames on the socket. Each queued
// payload is written as its own frame.
func (c *client) writePump() {
	cfg := c.handler.config
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.handler.registry.Remove(c.conn.ID())
	}()

	for {
		select {
		case message := <-c.conn.Outbound():
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("write failed", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", slog.Any("error", err))
				return
			}

		case <-c.conn.Done():
			return
		}
	}
}
