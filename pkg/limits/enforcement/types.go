package enforcement

import (
	"context"
	"time"

	"mercator-hq/tollgate/pkg/limits/plans"
)

// ExpiredTrialPolicy decides what happens to a tenant whose only current
// subscription is a trial past its expiry.
type ExpiredTrialPolicy string

const (
	// PolicyDowngrade treats the tenant as having no active plan, so the
	// lowest tier applies.
	PolicyDowngrade ExpiredTrialPolicy = "downgrade"

	// PolicyBlock denies every governed operation until the tenant upgrades.
	PolicyBlock ExpiredTrialPolicy = "block"
)

// Valid reports whether p is a known policy.
func (p ExpiredTrialPolicy) Valid() bool {
	return p == PolicyDowngrade || p == PolicyBlock
}

// Config contains configuration for the enforcer.
type Config struct {
	// ExpiredTrialPolicy applies to expired trials.
	// Default: downgrade
	ExpiredTrialPolicy ExpiredTrialPolicy

	// FallbackTier is used when a tenant has no authoritative subscription.
	// Default: starter
	FallbackTier plans.Tier
}

// SubscriptionSource returns a tenant's subscription history rows.
type SubscriptionSource interface {
	Subscriptions(ctx context.Context, tenantID string) ([]plans.Subscription, error)
}

// CounterFunc returns the live count of a resource for a tenant.
type CounterFunc func(ctx context.Context, tenantID string) (int64, error)

// ScopedCounterFunc returns the live count of a resource within one scope of
// a tenant, such as the external users of a single client space.
type ScopedCounterFunc func(ctx context.Context, tenantID, scope string) (int64, error)

// Resolution describes how a tenant's plan was determined.
type Resolution struct {
	// TenantID is the tenant that was resolved.
	TenantID string `json:"tenant_id"`

	// Tier is the tier the tenant is treated as.
	Tier plans.Tier `json:"tier"`

	// Plan is the catalog definition for Tier. Nil when the tier is missing
	// from the catalog.
	Plan *plans.Definition `json:"plan,omitempty"`

	// Subscription is the authoritative row, if any.
	Subscription *plans.Subscription `json:"subscription,omitempty"`

	// Fallback is set when no authoritative row was found and the fallback
	// tier applies.
	Fallback bool `json:"fallback"`

	// TrialExpired is set when the authoritative row is an expired trial.
	TrialExpired bool `json:"trial_expired"`

	// Blocked is set when the expired trial policy denies all operations.
	Blocked bool `json:"blocked"`

	// ResolvedAt is when the resolution was made.
	ResolvedAt time.Time `json:"resolved_at"`
}

// PlanName returns the display name of the resolved plan.
func (r *Resolution) PlanName() string {
	if r.Plan != nil {
		return r.Plan.Name()
	}
	return string(r.Tier)
}

// QuotaResult is the outcome of a quota check.
type QuotaResult struct {
	// Allowed indicates one more unit may be consumed.
	Allowed bool `json:"allowed"`

	// Quota is the checked quota.
	Quota plans.Quota `json:"quota"`

	// Scope is the sub-resource a scoped quota was counted in.
	Scope string `json:"scope,omitempty"`

	// Current is the live count at check time.
	Current int64 `json:"current"`

	// Limit is the plan ceiling. Meaningless when Unlimited is set.
	Limit int64 `json:"limit"`

	// Unlimited is set when the plan has no ceiling for the quota.
	Unlimited bool `json:"unlimited"`

	// Reason is set when Allowed is false.
	Reason Reason `json:"reason,omitempty"`
}

// Observer receives enforcement outcomes, typically to export metrics.
type Observer interface {
	ObserveDenial(reason string)
	ObserveFallback(cause string)
}

type noopObserver struct{}

func (noopObserver) ObserveDenial(string)   {}
func (noopObserver) ObserveFallback(string) {}
