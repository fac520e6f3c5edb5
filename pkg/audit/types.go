package audit

import (
	"context"
	"io"
	"time"
)

// Outcome is the final result of a governed operation.
type Outcome string

const (
	// OutcomeSuccess means the operation completed.
	OutcomeSuccess Outcome = "success"

	// OutcomeRateLimited means the rate limiter rejected the request.
	OutcomeRateLimited Outcome = "rate_limited"

	// OutcomePlanDenied means the plan enforcer rejected the request.
	OutcomePlanDenied Outcome = "plan_denied"

	// OutcomeFailed means the external call failed permanently or exhausted
	// its retries.
	OutcomeFailed Outcome = "failed"
)

// Outcomes lists every outcome.
var Outcomes = []Outcome{OutcomeSuccess, OutcomeRateLimited, OutcomePlanDenied, OutcomeFailed}

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeRateLimited, OutcomePlanDenied, OutcomeFailed:
		return true
	}
	return false
}

// Record is the audit trail entry for one governed operation.
type Record struct {
	// Identity
	ID            string `json:"id"`             // UUID v4
	CorrelationID string `json:"correlation_id"` // Caller-supplied or generated

	// Who and what
	TenantID string `json:"tenant_id"`
	Action   string `json:"action"`            // Operation name, e.g. "collab.CreateSite"
	Plan     string `json:"plan,omitempty"`    // Resolved plan tier
	Feature  string `json:"feature,omitempty"` // Feature gate checked, if any
	Quota    string `json:"quota,omitempty"`   // Quota checked, if any

	// Result
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`      // Denial reason
	Attempts   int     `json:"attempts"`              // External call invocations
	ErrorClass string  `json:"error_class,omitempty"` // Retry classification of the failure
	Error      string  `json:"error,omitempty"`       // Failure message

	// Timing
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Query defines filter parameters for reading audit records.
type Query struct {
	// Time range
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive start time
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive end time

	// Filters
	TenantID      string  `json:"tenant_id,omitempty"`
	Action        string  `json:"action,omitempty"`
	Outcome       Outcome `json:"outcome,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`  // Max records to return (0 = no limit)
	Offset int `json:"offset,omitempty"` // Skip N records

	// Sorting by timestamp
	SortOrder string `json:"sort_order,omitempty"` // "asc" or "desc" (default)
}

// Matches reports whether r passes the query's filters. Pagination is not
// considered.
func (q *Query) Matches(r *Record) bool {
	if q == nil {
		return true
	}
	if q.StartTime != nil && r.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.Timestamp.After(*q.EndTime) {
		return false
	}
	if q.TenantID != "" && r.TenantID != q.TenantID {
		return false
	}
	if q.Action != "" && r.Action != q.Action {
		return false
	}
	if q.Outcome != "" && r.Outcome != q.Outcome {
		return false
	}
	if q.CorrelationID != "" && r.CorrelationID != q.CorrelationID {
		return false
	}
	return true
}

// Sink receives audit records. Implementations must be safe for concurrent use.
type Sink interface {
	// Write persists or forwards a record.
	Write(ctx context.Context, record *Record) error

	// Close releases any resources held by the sink.
	Close() error
}

// Store is a Sink that can also be read back and pruned.
type Store interface {
	Sink

	// Query returns records matching the query, ordered by timestamp.
	// Returns an empty slice if no records match.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the query filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the query filters and returns the
	// number removed. Used for retention enforcement.
	Delete(ctx context.Context, query *Query) (int64, error)
}

// Exporter writes audit records in a specific format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
	ContentType() string
}
