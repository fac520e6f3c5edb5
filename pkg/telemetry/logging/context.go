package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// TenantKey is the context key for the tenant identifier.
	TenantKey contextKey = "tenant"

	// CorrelationIDKey is the context key for the correlation ID that ties
	// a governed operation's log lines and audit record together.
	CorrelationIDKey contextKey = "correlation_id"

	// OperationKey is the context key for the governed operation name.
	OperationKey contextKey = "operation"

	// RequestIDKey is the context key for inbound HTTP request IDs.
	RequestIDKey contextKey = "request_id"

	// TraceIDKey is the context key for the OpenTelemetry trace ID.
	TraceIDKey contextKey = "trace_id"
)

// WithTenant adds a tenant identifier to the context.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}

// Tenant retrieves the tenant identifier from the context.
func Tenant(ctx context.Context) string {
	return stringValue(ctx, TenantKey)
}

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// CorrelationID retrieves the correlation ID from the context.
func CorrelationID(ctx context.Context) string {
	return stringValue(ctx, CorrelationIDKey)
}

// WithOperation adds an operation name to the context.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}

// Operation retrieves the operation name from the context.
func Operation(ctx context.Context) string {
	return stringValue(ctx, OperationKey)
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// TraceID retrieves the trace ID from the context.
func TraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// Fields returns the context's log fields as key-value pairs suitable for
// slog.Logger.With.
func Fields(ctx context.Context) []any {
	var fields []any
	for _, key := range []contextKey{RequestIDKey, TraceIDKey, CorrelationIDKey, TenantKey, OperationKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}

// FromContext returns base (or slog.Default when nil) annotated with the
// context's fields.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	fields := Fields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
