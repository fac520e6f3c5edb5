package enforcement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/limits/plans"
)

// Enforcer resolves a tenant's plan and checks features and quotas against it.
//
// Resolution never fails a request on missing data: a tenant with no current
// subscription, or whose subscription source errors, is treated as the
// fallback tier. Configuration problems (unknown names, missing counters,
// tiers absent from the catalog) are logged and denied.
//
// Lookups hold no lock across I/O; the only lock guards the counter registry.
type Enforcer struct {
	catalog *plans.Catalog
	source  SubscriptionSource
	config  Config

	mu       sync.RWMutex
	counters map[plans.Quota]CounterFunc
	scoped   map[plans.Quota]ScopedCounterFunc

	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// Option customizes an Enforcer.
type Option func(*Enforcer)

// WithClock overrides the time source used for trial expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Enforcer) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enforcer) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers an observer for denials and fallbacks.
func WithObserver(o Observer) Option {
	return func(e *Enforcer) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEnforcer creates a plan enforcer.
//
// Example:
//
//	enforcer := NewEnforcer(plans.DefaultCatalog(), source, Config{
//	    ExpiredTrialPolicy: PolicyDowngrade,
//	})
//	enforcer.RegisterCounter(plans.QuotaClientSpaces, countSpaces)
//	if err := enforcer.EnforceQuota(ctx, tenantID, "clientSpaces"); err != nil {
//	    // err is an *UpgradeRequiredError
//	}
func NewEnforcer(catalog *plans.Catalog, source SubscriptionSource, config Config, opts ...Option) *Enforcer {
	if catalog == nil {
		catalog = plans.DefaultCatalog()
	}
	if !config.ExpiredTrialPolicy.Valid() {
		config.ExpiredTrialPolicy = PolicyDowngrade
	}
	if !config.FallbackTier.Valid() {
		config.FallbackTier = plans.LowestTier
	}

	e := &Enforcer{
		catalog:  catalog,
		source:   source,
		config:   config,
		counters: make(map[plans.Quota]CounterFunc),
		scoped:   make(map[plans.Quota]ScopedCounterFunc),
		now:      time.Now,
		logger:   slog.Default().With("component", "limits.enforcement"),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterCounter installs the live-count function for a tenant-wide quota.
// Scoped quotas ignore it; see RegisterScopedCounter.
func (e *Enforcer) RegisterCounter(quota plans.Quota, fn CounterFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn == nil {
		delete(e.counters, quota)
		return
	}
	e.counters[quota] = fn
}

// RegisterScopedCounter installs the live-count function for a scoped quota
// such as plans.QuotaExternalUsersPerClient. Until one is registered the
// quota denies as misconfigured.
func (e *Enforcer) RegisterScopedCounter(quota plans.Quota, fn ScopedCounterFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn == nil {
		delete(e.scoped, quota)
		return
	}
	e.scoped[quota] = fn
}

// Catalog returns the plan catalog in use.
func (e *Enforcer) Catalog() *plans.Catalog {
	return e.catalog
}

// GetConfig returns the enforcer configuration.
func (e *Enforcer) GetConfig() Config {
	return e.config
}

// Resolve determines the tenant's effective plan.
func (e *Enforcer) Resolve(ctx context.Context, tenantID string) *Resolution {
	now := e.now()
	res := &Resolution{TenantID: tenantID, ResolvedAt: now}

	sub, err := e.authoritative(ctx, tenantID)
	switch {
	case err != nil:
		e.logger.Warn("subscription lookup failed, using fallback plan",
			"tenant", tenantID,
			"fallback", e.config.FallbackTier,
			"error", err,
		)
		e.observer.ObserveFallback("source_error")
		return e.fallback(res)

	case sub == nil:
		e.logger.Warn("no current subscription, using fallback plan",
			"tenant", tenantID,
			"fallback", e.config.FallbackTier,
		)
		e.observer.ObserveFallback("no_subscription")
		return e.fallback(res)

	case sub.TrialExpired(now):
		res.TrialExpired = true
		res.Subscription = sub
		if e.config.ExpiredTrialPolicy == PolicyBlock {
			res.Blocked = true
			res.Tier = sub.Tier
			res.Plan, _ = e.catalog.Lookup(sub.Tier)
			return res
		}
		e.logger.Info("trial expired, using fallback plan",
			"tenant", tenantID,
			"trial_tier", sub.Tier,
			"fallback", e.config.FallbackTier,
		)
		e.observer.ObserveFallback("trial_expired")
		return e.fallback(res)
	}

	res.Subscription = sub
	res.Tier = sub.Tier
	def, ok := e.catalog.Lookup(sub.Tier)
	if !ok {
		e.logger.Warn("subscription tier missing from plan catalog",
			"tenant", tenantID,
			"tier", sub.Tier,
		)
		return res
	}
	res.Plan = def
	return res
}

// ResolvePlan returns the tenant's effective plan definition. The error is
// non-nil only when the tenant's tier is missing from the catalog.
func (e *Enforcer) ResolvePlan(ctx context.Context, tenantID string) (*plans.Definition, error) {
	res := e.Resolve(ctx, tenantID)
	if res.Plan == nil {
		return nil, e.deny(&UpgradeRequiredError{
			TenantID: tenantID,
			Tier:     res.Tier,
			PlanName: res.PlanName(),
			Reason:   ReasonMisconfigured,
		})
	}
	return res.Plan, nil
}

// CheckAccess denies every operation for tenants blocked by the expired
// trial policy. Other tenants pass.
func (e *Enforcer) CheckAccess(ctx context.Context, tenantID string) error {
	return e.CheckAccessFor(e.Resolve(ctx, tenantID))
}

// CheckAccessFor is CheckAccess against an existing resolution.
func (e *Enforcer) CheckAccessFor(res *Resolution) error {
	if res.Blocked {
		return e.deny(&UpgradeRequiredError{
			TenantID: res.TenantID,
			Tier:     res.Tier,
			PlanName: res.PlanName(),
			Reason:   ReasonTrialExpired,
		})
	}
	return nil
}

// HasFeature reports whether the tenant's plan includes featureName.
// Unknown feature names are never granted. A false result is not counted
// as a denial.
func (e *Enforcer) HasFeature(ctx context.Context, tenantID, featureName string) bool {
	return e.featureDenial(e.Resolve(ctx, tenantID), featureName) == nil
}

// EnforceFeature returns an *UpgradeRequiredError if the tenant's plan does
// not include featureName.
func (e *Enforcer) EnforceFeature(ctx context.Context, tenantID, featureName string) error {
	return e.EnforceFeatureFor(e.Resolve(ctx, tenantID), featureName)
}

// EnforceFeatureFor is EnforceFeature against an existing resolution.
func (e *Enforcer) EnforceFeatureFor(res *Resolution, featureName string) error {
	if denial := e.featureDenial(res, featureName); denial != nil {
		return e.deny(denial)
	}
	return nil
}

func (e *Enforcer) featureDenial(res *Resolution, featureName string) *UpgradeRequiredError {
	denial := &UpgradeRequiredError{
		TenantID: res.TenantID,
		Tier:     res.Tier,
		PlanName: res.PlanName(),
		Feature:  featureName,
	}

	feature, err := plans.ParseFeature(featureName)
	if err != nil {
		e.logger.Warn("unknown feature requested, denying",
			"tenant", res.TenantID,
			"feature", featureName,
		)
		denial.Reason = ReasonMisconfigured
		return denial
	}

	switch {
	case res.Blocked:
		denial.Reason = ReasonTrialExpired
	case res.Plan == nil:
		denial.Reason = ReasonMisconfigured
	case !res.Plan.HasFeature(feature):
		denial.Reason = ReasonFeatureDenied
		denial.RequiredTier, _ = e.catalog.MinimumTierFor(feature)
	default:
		return nil
	}
	return denial
}

// CanConsumeQuota compares the live count for quotaName against the tenant's
// plan ceiling. Configuration problems produce a denied result, not an error;
// the error is reserved for counter failures.
func (e *Enforcer) CanConsumeQuota(ctx context.Context, tenantID, quotaName string) (*QuotaResult, error) {
	return e.CanConsumeScopedQuota(ctx, tenantID, quotaName, "")
}

// CanConsumeScopedQuota is CanConsumeQuota for a quota counted within scope.
// The scope is ignored for tenant-wide quotas and required for scoped ones.
func (e *Enforcer) CanConsumeScopedQuota(ctx context.Context, tenantID, quotaName, scope string) (*QuotaResult, error) {
	return e.checkQuota(ctx, e.Resolve(ctx, tenantID), quotaName, scope)
}

func (e *Enforcer) checkQuota(ctx context.Context, res *Resolution, quotaName, scope string) (*QuotaResult, error) {
	tenantID := res.TenantID
	quota, err := plans.ParseQuota(quotaName)
	if err != nil {
		e.logger.Warn("unknown quota requested, denying",
			"tenant", tenantID,
			"quota", quotaName,
		)
		return &QuotaResult{Quota: plans.Quota(quotaName), Reason: ReasonMisconfigured}, nil
	}

	result := &QuotaResult{Quota: quota}
	if quota.Scoped() {
		result.Scope = scope
	}

	if res.Blocked {
		result.Reason = ReasonTrialExpired
		return result, nil
	}
	if res.Plan == nil {
		result.Reason = ReasonMisconfigured
		return result, nil
	}

	limit, ok := res.Plan.Limit(quota)
	if !ok {
		e.logger.Warn("plan defines no limit for quota, denying",
			"tenant", tenantID,
			"tier", res.Tier,
			"quota", quota,
		)
		result.Reason = ReasonMisconfigured
		return result, nil
	}
	result.Limit = limit.Value
	result.Unlimited = limit.Unlimited

	if quota.Scoped() && scope == "" && !limit.Unlimited {
		e.logger.Warn("scoped quota checked without a scope, denying",
			"tenant", tenantID,
			"quota", quota,
		)
		result.Reason = ReasonMisconfigured
		return result, nil
	}

	counter := e.counter(quota, scope)
	if counter == nil {
		if limit.Unlimited {
			result.Allowed = true
			return result, nil
		}
		e.logger.Warn("no counter registered for quota, denying",
			"tenant", tenantID,
			"quota", quota,
		)
		result.Reason = ReasonMisconfigured
		return result, nil
	}

	current, err := counter(ctx, tenantID)
	if err != nil {
		if limit.Unlimited {
			e.logger.Debug("quota counter failed for unlimited quota",
				"tenant", tenantID,
				"quota", quota,
				"error", err,
			)
			result.Allowed = true
			return result, nil
		}
		return nil, fmt.Errorf("count %s for tenant %s: %w", quota, tenantID, err)
	}

	result.Current = current
	result.Allowed = limit.Allows(current)
	if !result.Allowed {
		result.Reason = ReasonQuotaExceeded
	}
	return result, nil
}

// EnforceQuota returns an *UpgradeRequiredError if the tenant cannot consume
// one more unit of quotaName.
func (e *Enforcer) EnforceQuota(ctx context.Context, tenantID, quotaName string) error {
	return e.EnforceQuotaFor(ctx, e.Resolve(ctx, tenantID), quotaName, "")
}

// EnforceScopedQuota is EnforceQuota for a quota counted within scope, e.g.
// the external users of one client space.
func (e *Enforcer) EnforceScopedQuota(ctx context.Context, tenantID, quotaName, scope string) error {
	return e.EnforceQuotaFor(ctx, e.Resolve(ctx, tenantID), quotaName, scope)
}

// EnforceQuotaFor is EnforceScopedQuota against an existing resolution.
func (e *Enforcer) EnforceQuotaFor(ctx context.Context, res *Resolution, quotaName, scope string) error {
	result, err := e.checkQuota(ctx, res, quotaName, scope)
	if err != nil {
		return err
	}
	if result.Allowed {
		return nil
	}

	denial := &UpgradeRequiredError{
		TenantID: res.TenantID,
		Tier:     res.Tier,
		PlanName: res.PlanName(),
		Quota:    quotaName,
		Scope:    result.Scope,
		Current:  result.Current,
		Limit:    plans.Finite(result.Limit),
		Reason:   result.Reason,
	}
	if result.Unlimited {
		denial.Limit = plans.Unlimited
	}
	return e.deny(denial)
}

// counter returns a tenant-level count function for quota, binding scope for
// scoped quotas.
func (e *Enforcer) counter(quota plans.Quota, scope string) CounterFunc {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !quota.Scoped() {
		return e.counters[quota]
	}
	fn := e.scoped[quota]
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, tenantID string) (int64, error) {
		return fn(ctx, tenantID, scope)
	}
}
// authoritative returns the most recently started active or trial row.
func (e *Enforcer) authoritative(ctx context.Context, tenantID string) (*plans.Subscription, error) {
	if e.source == nil {
		return nil, nil
	}
	rows, err := e.source.Subscriptions(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var best *plans.Subscription
	for i := range rows {
		row := rows[i]
		if !row.Current() {
			continue
		}
		if best == nil || row.StartedAt.After(best.StartedAt) {
			best = &row
		}
	}
	return best, nil
}

func (e *Enforcer) fallback(res *Resolution) *Resolution {
	res.Fallback = true
	res.Tier = e.config.FallbackTier
	res.Plan, _ = e.catalog.Lookup(e.config.FallbackTier)
	return res
}

func (e *Enforcer) deny(err *UpgradeRequiredError) error {
	e.observer.ObserveDenial(string(err.Reason))
	e.logger.Debug("plan denial",
		"tenant", err.TenantID,
		"tier", err.Tier,
		"reason", err.Reason,
		"feature", err.Feature,
		"quota", err.Quota,
		"scope", err.Scope,
	)
	return err
}
