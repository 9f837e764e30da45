// Package logger is the process-wide structured logger for questkeeper.
//
// The quest manager, the reward path and questd all log through the package
// functions below. Records go to stdout, to a rotating file, or to both,
// depending on logging.yaml.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelAlways is above Error so audit records (reward delivery) survive any level filter.
const LevelAlways = slog.Level(12)

var current atomic.Pointer[slog.Logger]

// Initialize builds the console and file handlers described by config and installs them.
func Initialize(config Config) error {
	level := parseLogLevel(config.Level)

	var handlers []slog.Handler
	if config.ConsoleEnabled {
		handlers = append(handlers, newHandler(os.Stdout, config.ConsoleFormat, level))
	}
	if config.FileEnabled {
		rotating := &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.FileMaxSizeMB,
			MaxBackups: config.FileMaxBackups,
			MaxAge:     config.FileMaxAgeDays,
			Compress:   config.FileCompress,
		}
		handlers = append(handlers, newHandler(rotating, config.FileFormat, level))
	}

	switch len(handlers) {
	case 0:
		current.Store(slog.New(newHandler(os.Stdout, "text", level)))
	case 1:
		current.Store(slog.New(handlers[0]))
	default:
		current.Store(slog.New(newSinkHandler(handlers...)))
	}
	return nil
}

// SetOutput replaces the logger with a single text handler writing to w.
// Tests use it to capture warnings.
func SetOutput(w io.Writer, level slog.Level) {
	current.Store(slog.New(newHandler(w, "text", level)))
}

// Disable drops all log output.
func Disable() {
	current.Store(nil)
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameAlways,
	}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func renameAlways(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelAlways {
			a.Value = slog.StringValue("ALWAYS")
		}
	}
	return a
}

// parseLogLevel maps a logging.yaml level name to a slog level. Names are
// case-insensitive and anything unknown falls back to INFO.
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func log(level slog.Level, msg string, args ...any) {
	if l := current.Load(); l != nil {
		l.Log(context.Background(), level, msg, args...)
	}
}

// Debug logs per-event routing detail, e.g. which objective an event advanced.
func Debug(msg string, args ...any) { log(slog.LevelDebug, msg, args...) }

// Info logs lifecycle transitions and questd startup.
func Info(msg string, args ...any) { log(slog.LevelInfo, msg, args...) }

// Warning logs an expected failure, e.g. a rejected quest transition.
func Warning(msg string, args ...any) { log(slog.LevelWarn, msg, args...) }

// Error logs an invariant violation that was handled as a no-op.
func Error(msg string, args ...any) { log(slog.LevelError, msg, args...) }

// Always logs an audit record regardless of the configured level.
func Always(msg string, args ...any) { log(LevelAlways, msg, args...) }

// sinkHandler fans one record out to every configured sink (console, rotating
// file). Each sink applies its own level filter.
type sinkHandler struct {
	sinks []slog.Handler
}

func newSinkHandler(sinks ...slog.Handler) *sinkHandler {
	return &sinkHandler{sinks: sinks}
}

func (h *sinkHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *sinkHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, r.Level) {
			errs = append(errs, sink.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

func (h *sinkHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (h *sinkHandler) derive(fn func(slog.Handler) slog.Handler) *sinkHandler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		sinks[i] = fn(sink)
	}
	return newSinkHandler(sinks...)
}
