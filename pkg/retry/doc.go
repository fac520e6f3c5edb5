// Package retry executes calls to the external collaboration API with bounded,
// classified retries.
//
// Every failure is classified before deciding whether to retry:
//
//   - ClassThrottled: HTTP 429 or a throttling service code. A Retry-After
//     hint raises the next delay (still capped at MaxDelay).
//   - ClassUnavailable: 503/504, other 5xx, transient service codes, network
//     timeouts and connection failures.
//   - ClassAuthExpired: 401 or a token-expired code. The executor does not
//     refresh tokens; the next attempt picks up whatever the token source
//     hands out.
//   - ClassPermanent: every other 4xx, 501/505, cancellation, unknown errors.
//
// Permanent failures are returned unchanged on first occurrence so callers can
// branch on the original error. When retries are exhausted the last failure is
// returned unchanged. Each retry logs one "retrying operation" line.
//
// Basic usage:
//
//	exec := retry.NewExecutor(retry.DefaultPolicy())
//	site, err := retry.Execute(ctx, exec, "collab.CreateSite", func(ctx context.Context) (*collab.Site, error) {
//	    return client.CreateSite(ctx, req)
//	})
//
// Errors can force a classification with Retryable and Permanent.
package retry
