// Package enforcement gates operations on a tenant's subscription plan.
//
// The Enforcer resolves the tenant's effective plan from its subscription
// history: the most recently started row whose status is active or trial.
// Tenants without such a row fall back to the lowest tier. Expired trials
// either fall back as well or block every operation, depending on
// ExpiredTrialPolicy.
//
// Feature checks look the typed feature up in the resolved plan. Quota checks
// compare a live count from a registered CounterFunc against the plan ceiling:
// unlimited always allows, a finite ceiling allows only while current < limit.
// Scoped quotas (externalUsersPerClient) are counted within one client space
// by a ScopedCounterFunc and checked with EnforceScopedQuota.
//
// Callers running several checks for one request should Resolve once and use
// CheckAccessFor, EnforceFeatureFor and EnforceQuotaFor.
//
// The Enforce* variants return an *UpgradeRequiredError that names the plan
// and the blocking feature or quota:
//
//	if err := enforcer.EnforceFeature(ctx, tenantID, "bulkOperations"); err != nil {
//	    var denial *enforcement.UpgradeRequiredError
//	    if errors.As(err, &denial) {
//	        // render 403 upgrade_required naming denial.PlanName
//	    }
//	}
package enforcement
