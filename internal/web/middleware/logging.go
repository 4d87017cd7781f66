package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/playerrelay/internal/middleware"
)

// Logging creates logging middleware for the relay endpoints
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger.With(slog.String("component", "web")))
}
