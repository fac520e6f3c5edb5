package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/tollgate/pkg/limits/plans"
	"mercator-hq/tollgate/pkg/limits/storage"
)

// ErrInvalidAmount is returned when Record is called with a non-positive amount.
var ErrInvalidAmount = errors.New("usage amount must be positive")

// Meter counts metered usage per tenant and quota over calendar months (UTC).
//
// Counters live in a storage.Backend under a key that embeds the month, so a
// new month always starts from zero. Each counter also expires at the start
// of the following month so stale months do not accumulate.
type Meter struct {
	backend storage.Backend
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes a Meter.
type Option func(*Meter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Meter) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Meter) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMeter creates a usage meter on top of backend.
//
// Example:
//
//	meter := usage.NewMeter(backend)
//	enforcer.RegisterCounter(plans.QuotaAIRequestsPerMonth, meter.Counter(plans.QuotaAIRequestsPerMonth))
//	// after a successful AI request:
//	meter.Record(ctx, tenantID, plans.QuotaAIRequestsPerMonth, 1)
func NewMeter(backend storage.Backend, opts ...Option) *Meter {
	if backend == nil {
		backend = storage.NewMemoryBackend()
	}
	m := &Meter{
		backend: backend,
		now:     time.Now,
		logger:  slog.Default().With("component", "limits.usage"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record adds n units to the tenant's current-month counter for quota and
// returns the new total.
func (m *Meter) Record(ctx context.Context, tenantID string, quota plans.Quota, n int64) (int64, error) {
	if tenantID == "" {
		return 0, storage.ErrEmptyKey
	}
	if n <= 0 {
		return 0, ErrInvalidAmount
	}

	now := m.now()
	total, err := m.backend.IncrementCounter(ctx, counterKey(tenantID, quota, now), n, NextPeriodStart(now))
	if err != nil {
		return 0, fmt.Errorf("record %s usage: %w", quota, err)
	}
	m.logger.Debug("usage recorded",
		"tenant", tenantID,
		"quota", quota,
		"amount", n,
		"total", total,
	)
	return total, nil
}

// Current returns the tenant's current-month total for quota.
func (m *Meter) Current(ctx context.Context, tenantID string, quota plans.Quota) (int64, error) {
	if tenantID == "" {
		return 0, storage.ErrEmptyKey
	}
	total, err := m.backend.Counter(ctx, counterKey(tenantID, quota, m.now()))
	if err != nil {
		return 0, fmt.Errorf("read %s usage: %w", quota, err)
	}
	return total, nil
}

// Reset clears the tenant's current-month counter for quota.
func (m *Meter) Reset(ctx context.Context, tenantID string, quota plans.Quota) error {
	if tenantID == "" {
		return storage.ErrEmptyKey
	}
	return m.backend.Delete(ctx, counterKey(tenantID, quota, m.now()))
}

// Counter returns a live-count function for quota, suitable for
// enforcement.Enforcer.RegisterCounter.
func (m *Meter) Counter(quota plans.Quota) func(context.Context, string) (int64, error) {
	return func(ctx context.Context, tenantID string) (int64, error) {
		return m.Current(ctx, tenantID, quota)
	}
}

// PeriodStart returns the start of the calendar month (UTC) containing t.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextPeriodStart returns the start of the calendar month (UTC) after t.
func NextPeriodStart(t time.Time) time.Time {
	return PeriodStart(t).AddDate(0, 1, 0)
}

func counterKey(tenantID string, quota plans.Quota, now time.Time) string {
	return fmt.Sprintf("usage:%s:%s:%s", tenantID, quota, PeriodStart(now).Format("2006-01"))
}
