// Package logging wires the process-wide structured logger. Grounded on the
// teacher's cmd/root.go setupLogger, using log/slog with a tint handler
// instead of the older custom file-rotating logger.
package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/valentinerf/valentine-rf/internal/config"
)

// New builds the process-wide slog.Logger for the configured level.
func New(cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelInfo:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	default:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}
	return logger
}

// Named returns a child logger tagged with a "component" attribute, used by
// each subsystem (arbiter, supervisor, decoder runtime, bus) so log lines are
// attributable without string-formatting prefixes.
func Named(base *slog.Logger, component string) *slog.Logger {
	return base.With("component", component)
}
