package ratelimit

import "time"

const (
	// DefaultWindow is the fixed window length.
	DefaultWindow = time.Minute

	// DefaultGrace is how long an idle window outlives its end before expiry.
	DefaultGrace = time.Minute

	// DefaultLimit is the per-window limit used when a caller passes none.
	DefaultLimit = 100
)

// Reasons reported on rejected or degraded checks.
const (
	ReasonExceeded       = "rate limit exceeded"
	ReasonMissingTenant  = "missing tenant key"
	ReasonBackendFailure = "backend failure"
	ReasonNoLimit        = "no limit configured"
)

// Config configures a Limiter.
type Config struct {
	// Window is the fixed window length.
	// Default: 1 minute
	Window time.Duration

	// Grace is added to Window to derive the idle expiry of a window entry.
	// Default: 1 minute
	Grace time.Duration

	// DefaultLimit applies when CheckRateLimit is called with a non-positive
	// limit. A non-positive default disables limiting.
	DefaultLimit int

	// StrictTenantKey rejects checks with an empty tenant key instead of
	// letting them through.
	StrictTenantKey bool
}

// Result is the outcome of a single rate limit check.
// It carries everything needed for X-RateLimit-* response headers.
type Result struct {
	// Allowed indicates if the request is permitted.
	Allowed bool

	// Reason explains a rejection or a fail-open decision.
	Reason string

	// Limit is the limit that was applied.
	Limit int64

	// Remaining is how many requests remain in the current window.
	Remaining int64

	// ResetAt is when the current window ends.
	ResetAt time.Time

	// RetryAfter is how long a rejected caller should wait.
	RetryAfter time.Duration

	// FailedOpen is set when the request was let through without a
	// decision from the backend.
	FailedOpen bool
}

// Status is a read-only view of a tenant's window.
type Status struct {
	TenantKey   string    `json:"tenant"`
	Count       int64     `json:"count"`
	Limit       int64     `json:"limit"`
	Remaining   int64     `json:"remaining"`
	WindowStart time.Time `json:"window_start"`
	ResetAt     time.Time `json:"reset_at"`
}

// Observer receives limiter decisions, typically to export metrics.
type Observer interface {
	ObserveDecision(allowed bool)
	ObserveFailOpen(reason string)
}

type noopObserver struct{}

func (noopObserver) ObserveDecision(bool)   {}
func (noopObserver) ObserveFailOpen(string) {}
