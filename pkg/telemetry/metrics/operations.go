package metrics

import (
	"time"

	"mercator-hq/tollgate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics tracks governed operations end to end.
//
// Metrics:
//   - tollgate_governance_operations_total: Governed operations by action and outcome
//   - tollgate_governance_operation_duration_seconds: Time from admission check to
//     final outcome, by action
type OperationMetrics struct {
	operationsTotal *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
}

// NewOperationMetrics creates and registers operation metrics with the provided registry.
func NewOperationMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *OperationMetrics {
	om := &OperationMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "operations_total",
				Help:      "Total number of governed operations by outcome",
			},
			[]string{"action", "outcome"},
		),

		durationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Governed operation duration in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"action"},
		),
	}

	registry.MustRegister(om.operationsTotal, om.durationSeconds)

	return om
}

// RecordOperation records a completed governed operation.
func (om *OperationMetrics) RecordOperation(action, outcome string, duration time.Duration) {
	om.operationsTotal.WithLabelValues(action, outcome).Inc()
	om.durationSeconds.WithLabelValues(action).Observe(duration.Seconds())
}
