// Package edrlog provides structured logging for EDR. It wraps
// log/slog with per-subsystem child loggers, matching the teacher's
// own log package shape (Module/With, leveled methods writing
// key=value-structured output) without its package-level default-logger
// singleton: §9 disallows global mutable state, so every component that
// wants to log takes a *Logger explicitly rather than reaching for one.
package edrlog

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with EDR's module-scoping convenience.
type Logger struct {
	inner *slog.Logger
}

// New creates a Logger that writes JSON to w at the given level.
func New(level slog.Level, w io.Writer) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{inner: slog.New(h)}
}

// NewText creates a Logger that writes human-readable key=value lines to
// stderr, the shape a local `edr node` console session wants.
func NewText(level slog.Level) *Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{inner: slog.New(h)}
}

// NewWithHandler wraps an arbitrary slog.Handler, letting callers plug in a
// test-capturing handler or a remote log sink.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// Module returns a child logger tagged with the given subsystem name (evm,
// executor, mempool, provider, fork, ...).
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With("module", name)}
}

// With returns a child logger carrying additional key-value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }
