// Package tracing provides OpenTelemetry tracing for Tollgate.
//
// # Spans
//
// Two kinds of spans are produced:
//
//   - a server span per inbound HTTP request, started by Middleware after
//     extracting W3C trace context from the request headers
//   - an internal span per governed operation, started by the limits
//     Manager, carrying the tenant, action, outcome and attempt count
//
// Outbound calls to the collaboration API carry the active trace context
// through Inject.
//
// # Configuration
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    exporter: otlp
//	    endpoint: "localhost:4317"
//	    otlp:
//	      insecure: true
//
// When tracing is disabled the Tracer is backed by a noop provider. Trace
// context is still extracted and forwarded so upstream traces are not broken.
//
// # Shutdown
//
// The Tracer batches spans; call Shutdown before exit to flush them:
//
//	defer tracer.Shutdown(context.Background())
package tracing
