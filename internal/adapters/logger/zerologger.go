package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ZeroLogger implements the ports.Logger interface on top of zerolog.
type ZeroLogger struct {
	logger zerolog.Logger
}

// ParseLevel converts a string level to a zerolog level, defaulting to Info.
func ParseLevel(levelStr string) zerolog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a logger writing structured output to stderr.
func New(level zerolog.Level) *ZeroLogger {
	return NewWithWriter(level, os.Stderr)
}

// NewWithWriter creates a logger with a custom destination (tests use this).
func NewWithWriter(level zerolog.Level, w io.Writer) *ZeroLogger {
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &ZeroLogger{logger: zl}
}

func (l *ZeroLogger) emit(ev *zerolog.Event, msg string, fields ...map[string]interface{}) {
	if len(fields) > 0 && fields[0] != nil {
		ev = ev.Fields(fields[0])
	}
	ev.Msg(msg)
}

// Debug logs a message at Debug level.
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.emit(l.logger.Debug(), msg, fields...)
}

// Info logs a message at Info level.
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.emit(l.logger.Info(), msg, fields...)
}

// Warn logs a message at Warning level.
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.emit(l.logger.Warn(), msg, fields...)
}

// Error logs an error message at Error level.
func (l *ZeroLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.emit(l.logger.Error().Err(err), msg, fields...)
}
