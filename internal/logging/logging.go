// Package logging provides structured logging for the gateway.
// It wraps zerolog with request-scoped context propagation so every
// component logs through the same pipeline.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Context keys for request-scoped log fields.
type contextKey string

const (
	// TraceIDKey is the context key for the request trace ID.
	TraceIDKey contextKey = "trace_id"

	// SourceKey is the context key for the caller source name.
	SourceKey contextKey = "source"

	// TargetKey is the context key for the routed target name.
	TargetKey contextKey = "target"
)

// Logger wraps a zerolog.Logger with gateway conventions.
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger for the named service.
// level is one of debug, info, warn, error. format is "json" or "console".
func New(service, level, format string) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var zl zerolog.Logger
	if format == "console" {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zl = zerolog.New(os.Stderr)
	}

	zl = zl.Level(lvl).With().
		Timestamp().
		Str("service", service).
		Logger()

	return &Logger{zl: zl}
}

// NewNop returns a logger that discards everything. Intended for tests.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// WithContext returns a logger enriched with request-scoped fields
// (trace ID, source, target) found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	zc := l.zl.With()
	if v := GetTraceID(ctx); v != "" {
		zc = zc.Str("trace_id", v)
	}
	if v := GetSource(ctx); v != "" {
		zc = zc.Str("source", v)
	}
	if v, ok := ctx.Value(TargetKey).(string); ok && v != "" {
		zc = zc.Str("target", v)
	}
	return &Logger{zl: zc.Logger()}
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// WithFields returns a logger with the given fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }

// Info logs an info-level message.
func (l *Logger) Info(msg string) { l.zl.Info().Msg(msg) }

// Warn logs a warn-level message.
func (l *Logger) Warn(msg string) { l.zl.Warn().Msg(msg) }

// Error logs an error-level message.
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

// LogSecurityEvent records a security-relevant event (auth bypass, rate
// limit rejection, blocked operation) at warn level with a fixed shape so
// downstream alerting can key on the event name.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, details map[string]interface{}) {
	l.WithContext(ctx).zl.Warn().
		Str("security_event", event).
		Fields(details).
		Msg("security event")
}

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID from context.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSource returns a context carrying the caller source name.
func WithSource(ctx context.Context, source string) context.Context {
	if source == "" {
		return ctx
	}
	return context.WithValue(ctx, SourceKey, source)
}

// GetSource extracts the caller source name from context.
func GetSource(ctx context.Context) string {
	if v, ok := ctx.Value(SourceKey).(string); ok {
		return v
	}
	return ""
}
