// Package metrics provides Prometheus metrics collection for Tollgate.
//
// # Overview
//
// The Collector implements the observer interfaces of each governance stage,
// so the stages stay free of Prometheus imports:
//
//   - ratelimit.Observer: decisions and fail-open checks
//   - enforcement.Observer: plan denials and fallback-tier resolutions
//   - retry.Observer: attempts by class and result, backoff delays
//   - recorder.Observer: audit records written, dropped, and failed
//   - limits.Observer: governed operations by outcome and duration
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	limiter := ratelimit.NewLimiter(backend, rlCfg, ratelimit.WithObserver(collector))
//	enforcer := enforcement.NewEnforcer(catalog, source, enfCfg, enforcement.WithObserver(collector))
//	executor := retry.NewExecutor(policy, retry.WithObserver(collector))
//
//	mux.Handle("/metrics", collector.Handler())
//
// # Cardinality
//
// Tenant IDs are never used as labels. Operation and action names come from
// callers and pass through a CardinalityLimiter; once MaxCardinality distinct
// values have been seen, new values are recorded as "other".
package metrics
