package tracing

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys. Governance attributes use the "tollgate." namespace;
// HTTP attributes follow the OpenTelemetry semantic conventions.
const (
	AttrTenantID      = "tollgate.tenant_id"
	AttrAction        = "tollgate.action"
	AttrFeature       = "tollgate.feature"
	AttrQuota         = "tollgate.quota"
	AttrCorrelationID = "tollgate.correlation_id"
	AttrOutcome       = "tollgate.outcome"
	AttrReason        = "tollgate.reason"
	AttrPlan          = "tollgate.plan"
	AttrAttempt       = "tollgate.attempt"
	AttrAttempts      = "tollgate.attempts"
	AttrErrorClass    = "tollgate.error_class"

	AttrErrorMessage   = "error.message"
	AttrHTTPMethod     = "http.request.method"
	AttrHTTPStatusCode = "http.response.status_code"
	AttrURLPath        = "url.path"
	AttrRequestID      = "http.request.id"
)

// RequestAttributes describes a governed request. Empty values are omitted.
func RequestAttributes(tenantID, action, feature, quota, correlationID string) []attribute.KeyValue {
	return nonEmpty(
		attribute.String(AttrTenantID, tenantID),
		attribute.String(AttrAction, action),
		attribute.String(AttrFeature, feature),
		attribute.String(AttrQuota, quota),
		attribute.String(AttrCorrelationID, correlationID),
	)
}

// OutcomeAttributes describes how a governed request ended. Empty values
// are omitted; attempts is always set.
func OutcomeAttributes(outcome, reason, plan, errorClass string, attempts int) []attribute.KeyValue {
	attrs := nonEmpty(
		attribute.String(AttrOutcome, outcome),
		attribute.String(AttrReason, reason),
		attribute.String(AttrPlan, plan),
		attribute.String(AttrErrorClass, errorClass),
	)
	return append(attrs, attribute.Int(AttrAttempts, attempts))
}

func nonEmpty(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0]
	for _, kv := range attrs {
		if kv.Value.AsString() != "" {
			out = append(out, kv)
		}
	}
	return out
}
