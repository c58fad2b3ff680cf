// Package logging configures log/slog and ties log lines to chi request ids.
//
// Handlers and the core service pull their logger from the request context,
// so every line written while serving a request carries the request_id set
// by chi's RequestID middleware. Upload and query lines can then be joined
// back to the access log entry for the same request.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// New builds a logger writing to w. Format "json" selects the JSON handler;
// anything else yields text. Unknown levels fall back to info.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs a stdout logger as the slog default.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" when logs are shipped to a collector and "text" when reading
// them in a terminal.
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// ParseLevel maps debug, info, warn (or warning) and error to slog levels.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns the default logger, tagged with request_id when ctx
// came through chi's RequestID middleware.
//
// Outside a request (startup, the history pruner) it returns slog.Default
// unchanged.
//
// Usage:
//
//	func (s *Server) handleColumn(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Debug("column requested", "column", chi.URLParam(r, "col"))
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

// WithFields is FromContext plus extra key/value pairs.
//
// Upload uses it so the rejection and install lines both carry the
// filename.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
