// Package log wraps log/slog with a component field so every line
// says which part of the program emitted it.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Standard component names.
const (
	ComponentCLI      = "cli"
	ComponentStore    = "store"
	ComponentImporter = "importer"
	ComponentExport   = "export"
	ComponentReport   = "report"
)

// Logger is a component-scoped structured logger.
type Logger struct {
	*slog.Logger
	base      *slog.Logger
	component string
}

// ParseLevel maps a level name to a slog level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New returns a text logger writing to stderr at the given level.
func New(level slog.Level, component string) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	base := slog.New(handler)
	return &Logger{
		Logger:    base.With("component", component),
		base:      base,
		component: component,
	}
}

// WithComponent returns a logger scoped to another component,
// sharing the same handler.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.base.With("component", component),
		base:      l.base,
		component: component,
	}
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	return l.component
}
