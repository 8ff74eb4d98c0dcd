package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/barometer-digital/skyscraper/internal/config"
)

// NewLogger builds the process logger from config: JSON output unless
// LOG_FORMAT is "text", at the level named by LOG_LEVEL.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(newHandler(cfg, os.Stderr))
}

func newHandler(cfg *config.Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLevel(level string) slog.Level {
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
