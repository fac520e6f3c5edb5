package metrics

import (
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/audit"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/retry"

	"github.com/prometheus/client_golang/prometheus"
)

// OtherLabel replaces label values once the cardinality limit is reached.
const OtherLabel = "other"

// Collector is the main orchestrator for all Prometheus metrics in Tollgate.
// It manages metric registration and implements the observer interfaces of
// the rate limiter, plan enforcer, retry executor, audit recorder, retention
// pruner and governance manager, so a single instance can be passed to each
// of them.
//
// Caller-supplied label values (operation and action names) pass through a
// cardinality limiter and collapse into "other" once the limit is reached.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	rateLimitMetrics *RateLimitMetrics
	planMetrics      *PlanMetrics
	retryMetrics     *RetryMetrics
	auditMetrics     *AuditMetrics
	operationMetrics *OperationMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "tollgate",
//		Subsystem: "governance",
//	}
//	collector := metrics.NewCollector(cfg, nil)
//	limiter := ratelimit.NewLimiter(backend, rlCfg, ratelimit.WithObserver(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}
	if cfg.MaxCardinality <= 0 {
		cfg.MaxCardinality = config.DefaultMaxCardinality
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(cfg.MaxCardinality),
	}

	c.rateLimitMetrics = NewRateLimitMetrics(cfg, registry)
	c.planMetrics = NewPlanMetrics(cfg, registry)
	c.retryMetrics = NewRetryMetrics(cfg, registry)
	c.auditMetrics = NewAuditMetrics(cfg, registry)
	c.operationMetrics = NewOperationMetrics(cfg, registry)

	return c
}

// ObserveDecision records a rate limit decision.
func (c *Collector) ObserveDecision(allowed bool) {
	if !c.config.Enabled {
		return
	}

	c.rateLimitMetrics.RecordDecision(allowed)
}

// ObserveFailOpen records a rate limit check that was let through without
// a decision (missing tenant key, backend failure, no limit configured).
func (c *Collector) ObserveFailOpen(reason string) {
	if !c.config.Enabled {
		return
	}

	c.rateLimitMetrics.RecordFailOpen(reason)
}

// ObserveDenial records a plan denial.
func (c *Collector) ObserveDenial(reason string) {
	if !c.config.Enabled {
		return
	}

	c.planMetrics.RecordDenial(reason)
}

// ObserveFallback records a tenant resolved to the fallback tier.
func (c *Collector) ObserveFallback(cause string) {
	if !c.config.Enabled {
		return
	}

	c.planMetrics.RecordFallback(cause)
}

// ObserveAttempt records one attempt of the retry executor.
//
// The result label is "success" for a successful attempt, "retry" when
// another attempt follows, and "failure" for the final failed attempt.
func (c *Collector) ObserveAttempt(a retry.Attempt) {
	if !c.config.Enabled {
		return
	}

	class := "none"
	result := "success"
	if a.Err != nil {
		class = a.Class.String()
		result = "failure"
		if a.Retrying {
			result = "retry"
		}
	}

	operation := c.limitLabel("operation", a.Operation)
	c.retryMetrics.RecordAttempt(operation, class, result, a.Delay.Seconds())
}

// ObserveAuditWritten records an audit record persisted by the sink.
func (c *Collector) ObserveAuditWritten(outcome audit.Outcome) {
	if !c.config.Enabled {
		return
	}

	c.auditMetrics.RecordWritten(string(outcome))
}

// ObserveAuditDropped records an audit record dropped on a full buffer.
func (c *Collector) ObserveAuditDropped() {
	if !c.config.Enabled {
		return
	}

	c.auditMetrics.RecordDropped()
}

// ObserveAuditWriteFailed records an audit record the sink failed to write.
func (c *Collector) ObserveAuditWriteFailed() {
	if !c.config.Enabled {
		return
	}

	c.auditMetrics.RecordWriteFailure()
}

// ObservePrune records an audit retention run.
func (c *Collector) ObservePrune(trigger string, deleted, archived int64, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}

	c.auditMetrics.RecordPrune(trigger, deleted, archived, duration, err != nil)
}

// ObserveOperation records a completed governed operation.
func (c *Collector) ObserveOperation(action string, outcome audit.Outcome, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	action = c.limitLabel("action", action)
	c.operationMetrics.RecordOperation(action, string(outcome), duration)
}

// UpdateUpstreamHealth sets the collaboration API health gauge.
func (c *Collector) UpdateUpstreamHealth(healthy bool) {
	if !c.config.Enabled {
		return
	}

	c.retryMetrics.UpdateHealth(healthy)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// limitLabel returns value, or OtherLabel once the cardinality limit has
// been reached for values not seen before.
func (c *Collector) limitLabel(kind, value string) string {
	if !c.cardinalityLimiter.Allow(kind + ":" + value) {
		return OtherLabel
	}
	return value
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values tracked.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether a label set may be used. Known label sets are always
// allowed; new ones only while the limit has not been reached.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	_, exists := cl.current[labelSet]
	cl.mu.RUnlock()
	if exists {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
