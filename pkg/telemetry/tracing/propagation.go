package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/tollgate/pkg/telemetry/logging"
)

// TraceIDHeader echoes the trace ID on responses.
const TraceIDHeader = "X-Trace-ID"

// Extract returns ctx carrying the trace context found in headers
// (traceparent, tracestate, baggage). Without one, ctx is returned as is.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject writes the trace context of ctx into headers.
func Inject(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// Middleware starts a server span for each request as a child of the
// extracted trace context. The trace ID is put on the logging context and
// echoed in X-Trace-ID. 5xx responses mark the span as failed.
func Middleware(t *Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := Extract(r.Context(), r.Header)

			attrs := []attribute.KeyValue{
				attribute.String(AttrHTTPMethod, r.Method),
				attribute.String(AttrURLPath, r.URL.Path),
			}
			if id := logging.RequestID(ctx); id != "" {
				attrs = append(attrs, attribute.String(AttrRequestID, id))
			}

			ctx, span := t.Start(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			if traceID := TraceID(ctx); traceID != "" {
				ctx = logging.WithTraceID(ctx, traceID)
				w.Header().Set(TraceIDHeader, traceID)
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int(AttrHTTPStatusCode, sw.status))
			if sw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
