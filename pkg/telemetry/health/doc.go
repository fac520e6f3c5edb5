// Package health provides liveness, readiness and version endpoints for
// Tollgate.
//
// # Endpoints
//
//   - /health: Liveness check - the process is running
//   - /ready: Readiness check - dependencies are reachable
//   - /version: Build information
//
// # Critical and Non-Critical Checks
//
// The rate limit backend fails open and collaboration API failures are
// retried, so neither makes the service unready; a failing check of that
// kind reports "degraded" with HTTP 200. Critical checks report "unhealthy"
// with HTTP 503.
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("rate_limit_backend", func(ctx context.Context) error {
//	    _, err := backend.Window(ctx, "health")
//	    return err
//	})
//	checker.RegisterCriticalCheck("audit_store", func(ctx context.Context) error {
//	    _, err := store.Count(ctx, &audit.Query{})
//	    return err
//	})
//	health.Mount(mux, checker, health.Paths{}, health.NewVersionInfo(version, commit, date))
package health
