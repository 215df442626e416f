// Package logging adapts log/slog to the Logger seam pkg/recovery and
// pkg/orchestrator depend on, following longregen-alicia's use of
// structured log/slog logging throughout its agent and voice packages.
package logging

import (
	"log/slog"
	"os"
)

// Slog wraps a *slog.Logger to satisfy pkg/recovery.Logger and
// pkg/orchestrator.Logger's identical Debug/Info/Warn/Error(msg, args...)
// shape.
type Slog struct {
	l *slog.Logger
}

// New builds a Slog writing structured JSON lines to stderr, the shape
// a process supervised over the line-delimited stdio control protocol
// needs (stdout is reserved for protocol replies).
func New() *Slog {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Slog{l: slog.New(h)}
}

func (s *Slog) Debug(msg string, args ...interface{}) { s.l.Debug(msg, args...) }
func (s *Slog) Info(msg string, args ...interface{})  { s.l.Info(msg, args...) }
func (s *Slog) Warn(msg string, args ...interface{})  { s.l.Warn(msg, args...) }
func (s *Slog) Error(msg string, args ...interface{}) { s.l.Error(msg, args...) }
