package metrics

import (
	"time"

	"mercator-hq/tollgate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics tracks the audit recorder.
//
// Metrics:
//   - tollgate_governance_audit_records_total: Records written by outcome
//   - tollgate_governance_audit_dropped_total: Records dropped because the buffer was full
//   - tollgate_governance_audit_write_failures_total: Records the sink failed to write
//   - tollgate_governance_audit_prune_runs_total: Retention runs by trigger and status
//   - tollgate_governance_audit_pruned_total: Records deleted by retention
//   - tollgate_governance_audit_archived_total: Records archived before deletion
//   - tollgate_governance_audit_prune_duration_seconds: Retention run duration
type AuditMetrics struct {
	recordsTotal       *prometheus.CounterVec
	droppedTotal       prometheus.Counter
	writeFailuresTotal prometheus.Counter

	pruneRunsTotal *prometheus.CounterVec
	prunedTotal    prometheus.Counter
	archivedTotal  prometheus.Counter
	pruneDuration  prometheus.Histogram
}

// NewAuditMetrics creates and registers audit metrics with the provided registry.
func NewAuditMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *AuditMetrics {
	am := &AuditMetrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_records_total",
				Help:      "Total number of audit records written",
			},
			[]string{"outcome"},
		),

		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_dropped_total",
				Help:      "Total number of audit records dropped because the buffer was full",
			},
		),

		writeFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_write_failures_total",
				Help:      "Total number of audit records the sink failed to write",
			},
		),

		pruneRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_prune_runs_total",
				Help:      "Total number of audit retention runs",
			},
			[]string{"trigger", "status"},
		),

		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_pruned_total",
				Help:      "Total number of audit records deleted by retention",
			},
		),

		archivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_archived_total",
				Help:      "Total number of audit records archived before deletion",
			},
		),

		pruneDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_prune_duration_seconds",
				Help:      "Duration of audit retention runs",
				Buckets:   cfg.DurationBuckets,
			},
		),
	}

	registry.MustRegister(
		am.recordsTotal, am.droppedTotal, am.writeFailuresTotal,
		am.pruneRunsTotal, am.prunedTotal, am.archivedTotal, am.pruneDuration,
	)

	return am
}

// RecordWritten records a successful write.
func (am *AuditMetrics) RecordWritten(outcome string) {
	am.recordsTotal.WithLabelValues(outcome).Inc()
}

// RecordDropped records a dropped record.
func (am *AuditMetrics) RecordDropped() {
	am.droppedTotal.Inc()
}

// RecordWriteFailure records a failed write.
func (am *AuditMetrics) RecordWriteFailure() {
	am.writeFailuresTotal.Inc()
}

// RecordPrune records one retention run. Records removed before a failure
// still count.
func (am *AuditMetrics) RecordPrune(trigger string, deleted, archived int64, duration time.Duration, failed bool) {
	status := "success"
	if failed {
		status = "failure"
	}
	am.pruneRunsTotal.WithLabelValues(trigger, status).Inc()
	am.prunedTotal.Add(float64(deleted))
	am.archivedTotal.Add(float64(archived))
	am.pruneDuration.Observe(duration.Seconds())
}
