package subscriptions

import (
	"context"
	"errors"
	"sort"
	"sync"

	"mercator-hq/tollgate/pkg/limits/plans"
)

// ErrEmptyTenant is returned when a tenant ID is required but empty.
var ErrEmptyTenant = errors.New("tenant id cannot be empty")

// Source returns a tenant's subscription history. Rows are read-only from the
// governance layer's point of view.
type Source interface {
	Subscriptions(ctx context.Context, tenantID string) ([]plans.Subscription, error)
}

// ResourceCounter returns live resource counts per tenant and quota.
type ResourceCounter interface {
	CountResource(ctx context.Context, tenantID string, quota plans.Quota) (int64, error)
}

// CounterFor adapts a ResourceCounter to the per-quota counter signature
// used by the plan enforcer.
func CounterFor(rc ResourceCounter, quota plans.Quota) func(context.Context, string) (int64, error) {
	return func(ctx context.Context, tenantID string) (int64, error) {
		return rc.CountResource(ctx, tenantID, quota)
	}
}

// MemorySource is an in-memory Source and ResourceCounter for tests and
// single-process demos.
type MemorySource struct {
	mu     sync.RWMutex
	rows   map[string][]plans.Subscription
	counts map[string]map[plans.Quota]int64
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		rows:   make(map[string][]plans.Subscription),
		counts: make(map[string]map[plans.Quota]int64),
	}
}

// Subscriptions implements Source. Rows are returned newest first.
func (m *MemorySource) Subscriptions(ctx context.Context, tenantID string) ([]plans.Subscription, error) {
	if tenantID == "" {
		return nil, ErrEmptyTenant
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]plans.Subscription, len(m.rows[tenantID]))
	copy(rows, m.rows[tenantID])
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].StartedAt.After(rows[j].StartedAt)
	})
	return rows, nil
}

// Upsert inserts sub, replacing an existing row with the same start time.
func (m *MemorySource) Upsert(ctx context.Context, sub plans.Subscription) error {
	if sub.TenantID == "" {
		return ErrEmptyTenant
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.rows[sub.TenantID]
	for i := range rows {
		if rows[i].StartedAt.Equal(sub.StartedAt) {
			rows[i] = sub
			return nil
		}
	}
	m.rows[sub.TenantID] = append(rows, sub)
	return nil
}

// CountResource implements ResourceCounter.
func (m *MemorySource) CountResource(ctx context.Context, tenantID string, quota plans.Quota) (int64, error) {
	if tenantID == "" {
		return 0, ErrEmptyTenant
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[tenantID][quota], nil
}

// SetResourceCount sets the count for a tenant and quota.
func (m *MemorySource) SetResourceCount(ctx context.Context, tenantID string, quota plans.Quota, n int64) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.countsFor(tenantID)[quota] = n
	return nil
}

// AdjustResourceCount adds delta to the count, never going below zero.
func (m *MemorySource) AdjustResourceCount(ctx context.Context, tenantID string, quota plans.Quota, delta int64) (int64, error) {
	if tenantID == "" {
		return 0, ErrEmptyTenant
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	counts := m.countsFor(tenantID)
	counts[quota] += delta
	if counts[quota] < 0 {
		counts[quota] = 0
	}
	return counts[quota], nil
}

// Close implements io.Closer.
func (m *MemorySource) Close() error {
	return nil
}

func (m *MemorySource) countsFor(tenantID string) map[plans.Quota]int64 {
	counts, ok := m.counts[tenantID]
	if !ok {
		counts = make(map[plans.Quota]int64)
		m.counts[tenantID] = counts
	}
	return counts
}
