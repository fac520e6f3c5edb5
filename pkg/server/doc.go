// Package server exposes the governance pipeline over HTTP.
//
// Every mutating or gated endpoint runs through limits.Govern, so rate
// limits, plan enforcement, retries and auditing apply to HTTP callers the
// same way they apply to in-process callers.
//
// # Endpoints
//
//	GET  /v1/plans                              plan catalog
//	GET  /v1/tenants/{tenant}/plan              resolved plan for a tenant
//	GET  /v1/tenants/{tenant}/rate-limit        current window usage
//	POST /v1/tenants/{tenant}/spaces            create a client space (governed)
//	GET  /v1/tenants/{tenant}/audit/export      export audit records (governed, auditExport)
//
// Health, readiness, version and metrics endpoints are mounted with
// WithMount, typically from *telemetry.Telemetry.
//
// # Errors
//
// Rejections map to status codes:
//
//   - rate limited: 429 with Retry-After and X-RateLimit-* headers
//   - plan denial: 403 with error "upgrade_required" and the required tier
//   - collaboration API failure after retries: the upstream status, or 502
//   - deadline exceeded: 504
//
// # Middleware
//
// Requests pass through panic recovery, request ID assignment, access
// logging and a context timeout, outermost first. The X-Request-ID header
// is echoed on every response; X-Correlation-ID, when sent, becomes the
// audit correlation ID.
//
// # Usage
//
//	srv := server.NewServer(&cfg.Server, manager,
//	    server.WithSites(client),
//	    server.WithAuditReader(store),
//	    server.WithMount(tel),
//	)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
package server
