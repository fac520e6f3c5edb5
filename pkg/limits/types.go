package limits

import (
	"errors"
	"fmt"
	"time"

	"mercator-hq/tollgate/pkg/audit"
)

// Request describes one governed operation.
type Request struct {
	// TenantID keys the rate limit window and the plan lookup.
	TenantID string

	// Action names the operation in logs, metrics and audit records,
	// e.g. "collab.CreateSite".
	Action string

	// Feature is the plan feature the operation requires. Empty skips the
	// feature gate.
	Feature string

	// Quota is the plan quota the operation consumes one unit of. Empty
	// skips the quota check.
	Quota string

	// QuotaScope names the sub-resource a scoped quota is counted in, such
	// as the client space for externalUsersPerClient.
	QuotaScope string

	// CorrelationID ties the audit record to the caller's request. When
	// empty, the id on the context is used, or a new one is generated.
	CorrelationID string

	// RateLimit overrides the limiter's default per-window limit when
	// positive.
	RateLimit int
}

// ErrRateLimitExceeded matches every *RateLimitedError.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimitedError is returned when the rate limiter rejects a request.
// It carries everything needed for X-RateLimit-* and Retry-After headers.
type RateLimitedError struct {
	TenantID   string
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
	Reason     string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.TenantID == "" {
		return fmt.Sprintf("rate limit exceeded: %s", e.Reason)
	}
	return fmt.Sprintf("rate limit exceeded for tenant %s: limit %d, retry after %s",
		e.TenantID, e.Limit, e.RetryAfter.Round(time.Second))
}

// Is matches ErrRateLimitExceeded.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// Auditor receives the audit record of every governed operation. Record
// must not block; *recorder.Recorder satisfies it.
type Auditor interface {
	Record(record *audit.Record) error
}

// Observer receives the outcome and duration of every governed operation,
// typically to export metrics.
type Observer interface {
	ObserveOperation(action string, outcome audit.Outcome, duration time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveOperation(string, audit.Outcome, time.Duration) {}
