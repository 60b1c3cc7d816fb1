package types

import (
	"context"
	"log/slog"
	"time"
)

type contextKey string

const (
	requestIDKey    contextKey = "request_id"
	requestStartKey contextKey = "request_start"
	loggerKey       contextKey = "logger"
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithRequestStart records when request processing began. Used to report
// processingTimeMs on success and error envelopes alike.
func WithRequestStart(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestStartKey, t)
}

// GetRequestStart returns the recorded start time, or the zero time.
func GetRequestStart(ctx context.Context) time.Time {
	t, _ := ctx.Value(requestStartKey).(time.Time)
	return t
}

// ElapsedMs returns milliseconds since the recorded request start, or 0 when
// no start was recorded.
func ElapsedMs(ctx context.Context) int64 {
	start := GetRequestStart(ctx)
	if start.IsZero() {
		return 0
	}
	return time.Since(start).Milliseconds()
}

// WithLogger stores a request-scoped logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the request-scoped logger. It falls back to
// fallback (or slog.Default when fallback is nil) so callers never get nil.
func LoggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
