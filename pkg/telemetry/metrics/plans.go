package metrics

import (
	"mercator-hq/tollgate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PlanMetrics tracks plan enforcement.
//
// Metrics:
//   - tollgate_governance_plan_denials_total: Denials by reason
//     (feature_not_included, quota_exceeded, trial_expired, plan_misconfigured)
//   - tollgate_governance_plan_fallbacks_total: Tenants resolved to the fallback
//     tier, by cause
type PlanMetrics struct {
	denialsTotal   *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
}

// NewPlanMetrics creates and registers plan enforcement metrics with the provided registry.
func NewPlanMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *PlanMetrics {
	pm := &PlanMetrics{
		denialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "plan_denials_total",
				Help:      "Total number of operations denied by plan enforcement",
			},
			[]string{"reason"},
		),

		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "plan_fallbacks_total",
				Help:      "Total number of plan resolutions that fell back to the lowest tier",
			},
			[]string{"cause"},
		),
	}

	registry.MustRegister(pm.denialsTotal, pm.fallbacksTotal)

	return pm
}

// RecordDenial records a plan denial.
func (pm *PlanMetrics) RecordDenial(reason string) {
	pm.denialsTotal.WithLabelValues(reason).Inc()
}

// RecordFallback records a fallback-tier resolution.
func (pm *PlanMetrics) RecordFallback(cause string) {
	pm.fallbacksTotal.WithLabelValues(cause).Inc()
}
