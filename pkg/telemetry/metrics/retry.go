package metrics

import (
	"mercator-hq/tollgate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RetryMetrics tracks calls to the external collaboration API.
//
// Metrics:
//   - tollgate_governance_retry_attempts_total: Attempts by operation, error class and
//     result (success, retry, failure)
//   - tollgate_governance_retry_backoff_seconds: Backoff delays before retries
//   - tollgate_governance_upstream_healthy: Upstream health (1=healthy, 0=unhealthy)
type RetryMetrics struct {
	attemptsTotal   *prometheus.CounterVec
	backoffSeconds  *prometheus.HistogramVec
	upstreamHealthy prometheus.Gauge
}

// NewRetryMetrics creates and registers retry metrics with the provided registry.
func NewRetryMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *RetryMetrics {
	rm := &RetryMetrics{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retry_attempts_total",
				Help:      "Total number of external call attempts",
			},
			[]string{"operation", "class", "result"},
		),

		backoffSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retry_backoff_seconds",
				Help:      "Backoff delay before each retry in seconds",
				// 100ms .. ~51s
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"operation"},
		),

		upstreamHealthy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_healthy",
				Help:      "Collaboration API health (1=healthy, 0=unhealthy)",
			},
		),
	}

	registry.MustRegister(rm.attemptsTotal, rm.backoffSeconds, rm.upstreamHealthy)

	return rm
}

// RecordAttempt records one attempt and, when another follows, its backoff.
func (rm *RetryMetrics) RecordAttempt(operation, class, result string, backoffSeconds float64) {
	rm.attemptsTotal.WithLabelValues(operation, class, result).Inc()
	if result == "retry" {
		rm.backoffSeconds.WithLabelValues(operation).Observe(backoffSeconds)
	}
}

// UpdateHealth sets the upstream health gauge.
func (rm *RetryMetrics) UpdateHealth(healthy bool) {
	if healthy {
		rm.upstreamHealthy.Set(1)
		return
	}
	rm.upstreamHealthy.Set(0)
}
