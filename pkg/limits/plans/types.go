package plans

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Tier identifies a subscription plan level.
type Tier string

const (
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierBusiness     Tier = "business"
	TierEnterprise   Tier = "enterprise"
)

// Tiers lists every tier from lowest to highest.
var Tiers = []Tier{TierStarter, TierProfessional, TierBusiness, TierEnterprise}

// LowestTier is the fallback for tenants without an authoritative subscription.
const LowestTier = TierStarter

// Rank orders tiers; higher is more capable. Unknown tiers rank -1.
func (t Tier) Rank() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// ParseTier converts a case-insensitive name to a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown plan tier %q", s)
	}
	return t, nil
}

// Feature is a boolean capability a plan may include.
type Feature string

const (
	FeatureBulkOperations  Feature = "bulkOperations"
	FeatureCustomBranding  Feature = "customBranding"
	FeatureExternalSharing Feature = "externalSharing"
	FeatureAPIAccess       Feature = "apiAccess"
	FeatureAuditExport     Feature = "auditExport"
	FeatureSingleSignOn    Feature = "singleSignOn"
	FeatureAIAssist        Feature = "aiAssist"
)

// Features lists every known feature.
var Features = []Feature{
	FeatureBulkOperations,
	FeatureCustomBranding,
	FeatureExternalSharing,
	FeatureAPIAccess,
	FeatureAuditExport,
	FeatureSingleSignOn,
	FeatureAIAssist,
}

// ParseFeature converts a feature name to a Feature. Names are case-sensitive.
func ParseFeature(s string) (Feature, error) {
	for _, f := range Features {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feature %q", s)
}

// Quota is a named numeric ceiling on a countable resource.
type Quota string

const (
	QuotaClientSpaces           Quota = "clientSpaces"
	QuotaExternalUsersPerClient Quota = "externalUsersPerClient"
	QuotaTeamMembers            Quota = "teamMembers"
	QuotaAIRequestsPerMonth     Quota = "aiRequestsPerMonth"
	QuotaStorageGB              Quota = "storageGB"
)

// Quotas lists every known quota.
var Quotas = []Quota{
	QuotaClientSpaces,
	QuotaExternalUsersPerClient,
	QuotaTeamMembers,
	QuotaAIRequestsPerMonth,
	QuotaStorageGB,
}

// Scoped reports whether the quota is counted per sub-resource of a tenant
// (a client space) rather than tenant-wide.
func (q Quota) Scoped() bool {
	return q == QuotaExternalUsersPerClient
}

// ParseQuota converts a quota name to a Quota. Names are case-sensitive.
func ParseQuota(s string) (Quota, error) {
	for _, q := range Quotas {
		if string(q) == s {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown quota %q", s)
}

// Limit is either a finite ceiling or unlimited.
type Limit struct {
	Value     int64
	Unlimited bool
}

// Unlimited is the sentinel for quotas without a ceiling.
var Unlimited = Limit{Unlimited: true}

// Finite returns a finite limit of n.
func Finite(n int64) Limit {
	return Limit{Value: n}
}

// Allows reports whether one more unit may be consumed when current units
// are already in use. Reaching the limit exactly blocks the next unit.
func (l Limit) Allows(current int64) bool {
	if l.Unlimited {
		return true
	}
	return current < l.Value
}

// String renders the limit as a number or "unlimited".
func (l Limit) String() string {
	if l.Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", l.Value)
}

// MarshalJSON renders unlimited as the string "unlimited".
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.Unlimited {
		return []byte(`"unlimited"`), nil
	}
	return json.Marshal(l.Value)
}

// UnmarshalJSON accepts a number or the string "unlimited".
func (l *Limit) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "unlimited" {
			return fmt.Errorf("invalid limit %q", s)
		}
		*l = Unlimited
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid limit %s: %w", data, err)
	}
	if n < 0 {
		return fmt.Errorf("limit must be >= 0, got %d", n)
	}
	*l = Finite(n)
	return nil
}

// Definition is the immutable description of a single tier.
type Definition struct {
	Tier        Tier             `json:"tier"`
	DisplayName string           `json:"display_name"`
	Features    map[Feature]bool `json:"features"`
	Limits      map[Quota]Limit  `json:"limits"`
}

// HasFeature reports whether the plan includes f.
func (d *Definition) HasFeature(f Feature) bool {
	return d.Features[f]
}

// Limit returns the ceiling for q and whether the plan defines one.
func (d *Definition) Limit(q Quota) (Limit, bool) {
	l, ok := d.Limits[q]
	return l, ok
}

// Name returns the display name, falling back to the tier.
func (d *Definition) Name() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return string(d.Tier)
}

// Status is the lifecycle state of a subscription row.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Subscription is one row of a tenant's subscription history.
type Subscription struct {
	TenantID    string     `json:"tenant_id"`
	Tier        Tier       `json:"tier"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	TrialExpiry *time.Time `json:"trial_expiry,omitempty"`
}

// Current reports whether the row is a candidate for plan resolution.
func (s Subscription) Current() bool {
	return s.Status == StatusActive || s.Status == StatusTrial
}

// TrialExpired reports whether the row is a trial whose expiry has passed.
func (s Subscription) TrialExpired(now time.Time) bool {
	return s.Status == StatusTrial && s.TrialExpiry != nil && !now.Before(*s.TrialExpiry)
}
