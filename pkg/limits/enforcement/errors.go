package enforcement

import (
	"errors"
	"fmt"

	"mercator-hq/tollgate/pkg/limits/plans"
)

var (
	// ErrUpgradeRequired matches every plan denial.
	ErrUpgradeRequired = errors.New("upgrade required")

	// ErrFeatureDenied is returned when the plan does not include a feature.
	ErrFeatureDenied = errors.New("feature not included in plan")

	// ErrQuotaExceeded is returned when a quota ceiling has been reached.
	ErrQuotaExceeded = errors.New("plan quota exceeded")

	// ErrTrialExpired is returned under the block policy for expired trials.
	ErrTrialExpired = errors.New("trial expired")

	// ErrPlanMisconfigured is returned for unknown features or quotas, quotas
	// without a counter, and tiers missing from the catalog.
	ErrPlanMisconfigured = errors.New("plan misconfigured")
)

// Reason classifies a plan denial.
type Reason string

const (
	ReasonFeatureDenied Reason = "feature_not_included"
	ReasonQuotaExceeded Reason = "quota_exceeded"
	ReasonTrialExpired  Reason = "trial_expired"
	ReasonMisconfigured Reason = "plan_misconfigured"
)

// UpgradeRequiredError is the denial returned by the Enforce* methods.
// It names the tenant's plan and the attribute that blocked the request so
// callers can render an actionable message.
type UpgradeRequiredError struct {
	TenantID string
	Tier     plans.Tier
	PlanName string

	// Feature or Quota names the blocking attribute.
	Feature string
	Quota   string

	// Scope is set for denials of a scoped quota.
	Scope string

	// Current and Limit are set for quota denials.
	Current int64
	Limit   plans.Limit

	// RequiredTier is the lowest tier that would lift a feature denial.
	RequiredTier plans.Tier

	Reason Reason
}

// Error implements the error interface.
func (e *UpgradeRequiredError) Error() string {
	switch e.Reason {
	case ReasonFeatureDenied:
		return fmt.Sprintf("upgrade required: plan %s does not include %s", e.PlanName, e.Feature)
	case ReasonQuotaExceeded:
		return fmt.Sprintf("upgrade required: plan %s allows %s %s (current %d)", e.PlanName, e.Limit, e.Quota, e.Current)
	case ReasonTrialExpired:
		return fmt.Sprintf("upgrade required: %s trial has expired", e.PlanName)
	default:
		attr := e.Feature
		if attr == "" {
			attr = e.Quota
		}
		return fmt.Sprintf("upgrade required: plan %s has no usable definition for %q", e.PlanName, attr)
	}
}

// Is matches ErrUpgradeRequired and the reason-specific sentinel.
func (e *UpgradeRequiredError) Is(target error) bool {
	if target == ErrUpgradeRequired {
		return true
	}
	return target == e.sentinel()
}

func (e *UpgradeRequiredError) sentinel() error {
	switch e.Reason {
	case ReasonFeatureDenied:
		return ErrFeatureDenied
	case ReasonQuotaExceeded:
		return ErrQuotaExceeded
	case ReasonTrialExpired:
		return ErrTrialExpired
	default:
		return ErrPlanMisconfigured
	}
}

// IsUpgradeRequired reports whether err is a plan denial.
func IsUpgradeRequired(err error) bool {
	return errors.Is(err, ErrUpgradeRequired)
}
