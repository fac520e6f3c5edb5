package metrics

import (
	"mercator-hq/tollgate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RateLimitMetrics tracks rate limiter decisions.
//
// Metrics:
//   - tollgate_governance_ratelimit_decisions_total: Checks by result (allowed, rejected)
//   - tollgate_governance_ratelimit_fail_open_total: Checks let through without a
//     decision, by reason
type RateLimitMetrics struct {
	decisionsTotal *prometheus.CounterVec
	failOpenTotal  *prometheus.CounterVec
}

// NewRateLimitMetrics creates and registers rate limiter metrics with the provided registry.
func NewRateLimitMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *RateLimitMetrics {
	rm := &RateLimitMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ratelimit_decisions_total",
				Help:      "Total number of rate limit checks by result",
			},
			[]string{"result"},
		),

		failOpenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ratelimit_fail_open_total",
				Help:      "Total number of rate limit checks allowed without a decision",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(rm.decisionsTotal, rm.failOpenTotal)

	return rm
}

// RecordDecision records an allow or reject decision.
func (rm *RateLimitMetrics) RecordDecision(allowed bool) {
	result := "rejected"
	if allowed {
		result = "allowed"
	}
	rm.decisionsTotal.WithLabelValues(result).Inc()
}

// RecordFailOpen records a check that was let through without a decision.
func (rm *RateLimitMetrics) RecordFailOpen(reason string) {
	rm.failOpenTotal.WithLabelValues(reason).Inc()
}
