// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// UserIDKey is the context key for user ID
	UserIDKey contextKey = "user_id"
	// TenantIDKey is the context key for the tenant (organization) ID
	TenantIDKey contextKey = "tenant_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment. Records carry the active
// OpenTelemetry trace and span IDs when a span is present in the context.
func New(env string) *Logger {
	return newWithWriter(env, os.Stdout)
}

// NewWithOTel creates a logger that also exports records through the global
// OpenTelemetry logger provider. Call after telemetry.Setup.
func NewWithOTel(env, serviceName string) *Logger {
	local := baseHandler(env, os.Stdout)
	exported := otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(global.GetLoggerProvider()))
	return &Logger{Logger: slog.New(NewTraceHandler(fanout{local, exported}))}
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func newWithWriter(env string, w io.Writer) *Logger {
	return &Logger{Logger: slog.New(NewTraceHandler(baseHandler(env, w)))}
}

func baseHandler(env string, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// WithContext returns a logger with context values extracted.
// Supports request_id, user_id and tenant_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
		newLogger = newLogger.WithUserID(userID)
	}

	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok && tenantID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("tenant_id", tenantID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithUserID returns a logger with user ID
func (l *Logger) WithUserID(userID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("user_id", userID)),
	}
}

// WithComponent returns a logger tagged with the emitting component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("component", component)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(ctx context.Context, method, path string, status int, latencyMs float64, clientIP string) {
	l.InfoContext(ctx, "http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// DeliveryAttempt logs the outcome of an outbound channel send. The target
// phone number or email address is masked.
func (l *Logger) DeliveryAttempt(ctx context.Context, channel, scope, target string, success bool, detail string) {
	target = MaskTarget(target)
	if success {
		l.InfoContext(ctx, "delivery_attempt",
			slog.String("channel", channel),
			slog.String("scope", scope),
			slog.String("target", target),
			slog.Bool("success", true),
		)
		return
	}
	l.WarnContext(ctx, "delivery_attempt",
		slog.String("channel", channel),
		slog.String("scope", scope),
		slog.String("target", target),
		slog.Bool("success", false),
		slog.String("reason", detail),
	)
}

// MaskTarget hides a recipient for logs: phone numbers keep their last four
// digits, email addresses their first letter and domain.
func MaskTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if at := strings.LastIndex(target, "@"); at > 0 {
		return target[:1] + "***" + target[at:]
	}
	var digits []rune
	for _, r := range target {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
