package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/playerrelay/internal/middleware"
)

// Recovery creates panic recovery middleware for the relay endpoints.
// The relay speaks plain text before an upgrade, so the fallback is text too.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, middleware.DefaultPanicHandler)
}
