// Package logging provides the logger abstraction shared by the client, its
// pipeline stages and the transports.
package logging

import (
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields are structured key/value pairs attached to a log line.
type LogFields map[string]any

// ServiceLogger is the logging contract of the client. It mirrors Watermill's
// LoggerAdapter so transports and the client share one logger.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a config string onto a slog level. Unknown values yield
// Info.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewSlogServiceLogger wraps a slog.Logger through Watermill's slog adapter,
// which logs Trace lines below slog.LevelDebug.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("faultline: slog logger cannot be nil")
	}
	return NewWatermillServiceLogger(watermill.NewSlogLogger(log))
}

// NopLogger discards everything.
func NopLogger() ServiceLogger {
	return NewWatermillServiceLogger(watermill.NopLogger{})
}

// WithMinLevel drops lines below min before they reach log. Errors always
// pass. Info, Debug and Trace are filtered by rank.
func WithMinLevel(log ServiceLogger, min slog.Level) ServiceLogger {
	if log == nil {
		panic("faultline: ServiceLogger cannot be nil")
	}
	if min <= LevelTrace {
		return log
	}
	if f, ok := log.(*filteredLogger); ok {
		log = f.base
	}
	return &filteredLogger{base: log, min: min}
}

type filteredLogger struct {
	base ServiceLogger
	min  slog.Level
}

func (f *filteredLogger) With(fields LogFields) ServiceLogger {
	return &filteredLogger{base: f.base.With(fields), min: f.min}
}

func (f *filteredLogger) Trace(msg string, fields LogFields) {
	if f.min <= LevelTrace {
		f.base.Trace(msg, fields)
	}
}

func (f *filteredLogger) Debug(msg string, fields LogFields) {
	if f.min <= slog.LevelDebug {
		f.base.Debug(msg, fields)
	}
}

func (f *filteredLogger) Info(msg string, fields LogFields) {
	if f.min <= slog.LevelInfo {
		f.base.Info(msg, fields)
	}
}

func (f *filteredLogger) Error(msg string, err error, fields LogFields) {
	f.base.Error(msg, err, fields)
}
