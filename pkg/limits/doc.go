// Package limits governs tenant operations against a rate-limited external
// collaboration API.
//
// # Overview
//
// Every governed operation passes a fixed pipeline:
//
//  1. rate limit: a per-tenant fixed window (ratelimit)
//  2. plan: expired-trial gate, feature entitlement, quota ceiling (enforcement)
//  3. execution: bounded retries classified by failure type (retry)
//
// An audit record with the outcome and correlation id is handed to the
// Auditor once the outcome is known. The caller never waits on it.
//
// # Architecture
//
// The package is organized into sub-packages:
//
//   - ratelimit: fixed-window tenant rate limiter
//   - storage: window and counter backends (sharded memory, Redis)
//   - plans: tier catalog, features and quotas
//   - enforcement: plan resolution and entitlement checks
//   - subscriptions: subscription and resource count sources (memory, SQLite)
//   - usage: monthly metered counters
//
// # Usage
//
//	manager := limits.NewManager(limiter, enforcer, executor,
//		limits.WithAuditor(rec),
//		limits.WithMeter(meter, plans.QuotaAIRequestsPerMonth),
//		limits.WithObserver(collector),
//	)
//
//	site, err := limits.Govern(ctx, manager, limits.Request{
//		TenantID: tenantID,
//		Action:   "collab.CreateSite",
//		Quota:    "clientSpaces",
//	}, func(ctx context.Context) (*collab.Site, error) {
//		return client.CreateSite(ctx, req)
//	})
//	switch {
//	case errors.Is(err, limits.ErrRateLimitExceeded):
//		// 429 with Retry-After
//	case errors.Is(err, enforcement.ErrUpgradeRequired):
//		// 403 upgrade_required
//	}
//
// # Thread Safety
//
// The Manager is safe for concurrent use. Each stage synchronizes itself and
// no stage runs under another stage's lock.
package limits
