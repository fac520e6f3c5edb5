package limits

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/tollgate/pkg/audit"
	"mercator-hq/tollgate/pkg/limits/enforcement"
	"mercator-hq/tollgate/pkg/limits/plans"
	"mercator-hq/tollgate/pkg/limits/ratelimit"
	"mercator-hq/tollgate/pkg/limits/usage"
	"mercator-hq/tollgate/pkg/retry"
	"mercator-hq/tollgate/pkg/telemetry/logging"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

// Manager runs governed operations through the fixed pipeline:
// rate limiter, plan enforcer, retry executor.
//
// Each stage synchronizes itself; the Manager holds no lock while a stage
// runs. An audit record is handed to the Auditor after the outcome is known
// and never delays the caller.
//
// # Example
//
//	manager := limits.NewManager(limiter, enforcer, executor,
//		limits.WithAuditor(rec),
//		limits.WithObserver(collector),
//	)
//
//	site, err := limits.Govern(ctx, manager, limits.Request{
//		TenantID: "tenant-a",
//		Action:   "collab.CreateSite",
//		Quota:    "clientSpaces",
//	}, func(ctx context.Context) (*collab.Site, error) {
//		return client.CreateSite(ctx, req)
//	})
type Manager struct {
	limiter  *ratelimit.Limiter
	enforcer *enforcement.Enforcer
	executor *retry.Executor

	auditor  Auditor
	meter    *usage.Meter
	metered  map[plans.Quota]bool
	observer Observer
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithAuditor sets the audit record destination.
func WithAuditor(a Auditor) Option {
	return func(m *Manager) {
		m.auditor = a
	}
}

// WithMeter records one unit of usage for each listed quota after a
// successful operation, and registers the meter as the enforcer's counter
// for those quotas.
func WithMeter(meter *usage.Meter, quotas ...plans.Quota) Option {
	return func(m *Manager) {
		m.meter = meter
		for _, q := range quotas {
			m.metered[q] = true
		}
	}
}

// WithObserver sets the operation observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithTracer starts a span for every governed operation.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager. A nil limiter or enforcer skips that stage;
// a nil executor runs operations with the default retry policy.
func NewManager(limiter *ratelimit.Limiter, enforcer *enforcement.Enforcer, executor *retry.Executor, opts ...Option) *Manager {
	if executor == nil {
		executor = retry.NewExecutor(retry.DefaultPolicy())
	}

	m := &Manager{
		limiter:  limiter,
		enforcer: enforcer,
		executor: executor,
		metered:  make(map[plans.Quota]bool),
		observer: noopObserver{},
		tracer:   noop.NewTracerProvider().Tracer(tracing.InstrumentationName),
		logger:   slog.Default().With("component", "limits"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.meter != nil && m.enforcer != nil {
		for q := range m.metered {
			m.enforcer.RegisterCounter(q, m.meter.Counter(q))
		}
	}
	return m
}

// Limiter returns the rate limiter, or nil.
func (m *Manager) Limiter() *ratelimit.Limiter { return m.limiter }

// Enforcer returns the plan enforcer, or nil.
func (m *Manager) Enforcer() *enforcement.Enforcer { return m.enforcer }

// Executor returns the retry executor.
func (m *Manager) Executor() *retry.Executor { return m.executor }

// Govern admits req through the rate limiter and plan enforcer, then runs op
// under the retry executor.
//
// Rejections return a *RateLimitedError or an *enforcement.UpgradeRequiredError
// without invoking op. External failures are returned as the executor
// surfaces them: the original error for permanent or exhausted failures, an
// *retry.AbortedError when ctx ends between attempts.
func Govern[T any](ctx context.Context, m *Manager, req Request, op func(context.Context) (T, error)) (T, error) {
	var zero T
	start := m.now()

	req.CorrelationID = correlationID(ctx, req.CorrelationID)
	ctx = logging.WithCorrelationID(ctx, req.CorrelationID)
	ctx = logging.WithOperation(ctx, req.Action)
	if req.TenantID != "" {
		ctx = logging.WithTenant(ctx, req.TenantID)
	}

	ctx, span := m.tracer.Start(ctx, "governance."+req.Action,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(tracing.RequestAttributes(req.TenantID, req.Action, req.Feature, req.Quota, req.CorrelationID)...),
	)

	record := &audit.Record{
		CorrelationID: req.CorrelationID,
		TenantID:      req.TenantID,
		Action:        req.Action,
		Feature:       req.Feature,
		Quota:         req.Quota,
	}

	if err := m.admit(ctx, req, record); err != nil {
		m.finish(ctx, span, record, start, err)
		return zero, err
	}

	attempts := 0
	result, err := retry.Execute(ctx, m.executor, req.Action, func(ctx context.Context) (T, error) {
		attempts++
		span.AddEvent("attempt", trace.WithAttributes(attribute.Int(tracing.AttrAttempt, attempts)))
		return op(ctx)
	})
	record.Attempts = attempts

	if err != nil {
		record.Outcome = audit.OutcomeFailed
		record.ErrorClass = errorClass(err).String()
		m.finish(ctx, span, record, start, err)
		return zero, err
	}

	record.Outcome = audit.OutcomeSuccess
	m.consume(ctx, req)
	m.finish(ctx, span, record, start, nil)
	return result, nil
}

// GovernVoid is Govern for operations without a result.
func (m *Manager) GovernVoid(ctx context.Context, req Request, op func(context.Context) error) error {
	_, err := Govern(ctx, m, req, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// admit runs the rate limit and plan stages. It sets the record's outcome
// when a stage rejects the request.
func (m *Manager) admit(ctx context.Context, req Request, record *audit.Record) error {
	if m.limiter != nil {
		res, err := m.limiter.CheckRateLimit(ctx, req.TenantID, req.RateLimit)
		if err != nil {
			record.Outcome = audit.OutcomeFailed
			return err
		}
		if !res.Allowed {
			record.Outcome = audit.OutcomeRateLimited
			record.Reason = res.Reason
			return &RateLimitedError{
				TenantID:   req.TenantID,
				Limit:      res.Limit,
				Remaining:  res.Remaining,
				ResetAt:    res.ResetAt,
				RetryAfter: res.RetryAfter,
				Reason:     res.Reason,
			}
		}
	}

	if m.enforcer == nil {
		return nil
	}

	res := m.enforcer.Resolve(ctx, req.TenantID)
	checks := []func() error{
		func() error { return m.enforcer.CheckAccessFor(res) },
	}
	if req.Feature != "" {
		checks = append(checks, func() error { return m.enforcer.EnforceFeatureFor(res, req.Feature) })
	}
	if req.Quota != "" {
		checks = append(checks, func() error { return m.enforcer.EnforceQuotaFor(ctx, res, req.Quota, req.QuotaScope) })
	}

	for _, check := range checks {
		err := check()
		if err == nil {
			continue
		}

		var denial *enforcement.UpgradeRequiredError
		if errors.As(err, &denial) {
			record.Outcome = audit.OutcomePlanDenied
			record.Reason = string(denial.Reason)
			record.Plan = string(denial.Tier)
			return err
		}

		// Counter failures are infrastructure faults, not denials.
		record.Outcome = audit.OutcomeFailed
		return err
	}
	return nil
}

// consume records usage for metered quotas after a successful operation.
func (m *Manager) consume(ctx context.Context, req Request) {
	if m.meter == nil || req.Quota == "" || !m.metered[plans.Quota(req.Quota)] {
		return
	}
	if _, err := m.meter.Record(ctx, req.TenantID, plans.Quota(req.Quota), 1); err != nil {
		logging.FromContext(ctx, m.logger).Warn("failed to record usage",
			"quota", req.Quota,
			"error", err,
		)
	}
}

func (m *Manager) finish(ctx context.Context, span trace.Span, record *audit.Record, start time.Time, err error) {
	record.Duration = m.now().Sub(start)
	if err != nil {
		record.Error = err.Error()
	}

	span.SetAttributes(tracing.OutcomeAttributes(string(record.Outcome), record.Reason, record.Plan, record.ErrorClass, record.Attempts)...)
	tracing.EndWithError(span, err)

	m.observer.ObserveOperation(record.Action, record.Outcome, record.Duration)

	logger := logging.FromContext(ctx, m.logger)
	if record.Outcome == audit.OutcomeSuccess {
		logger.Debug("governed operation completed",
			"action", record.Action,
			"attempts", record.Attempts,
			"duration", record.Duration,
		)
	} else {
		logger.Info("governed operation rejected or failed",
			"action", record.Action,
			"outcome", record.Outcome,
			"reason", record.Reason,
			"attempts", record.Attempts,
			"error", err,
		)
	}

	if m.auditor == nil {
		return
	}
	if auditErr := m.auditor.Record(record); auditErr != nil {
		logger.Warn("audit record not accepted",
			"action", record.Action,
			"error", auditErr,
		)
	}
}

// errorClass classifies the failure that ended the operation. An abort is
// classified by the last attempt's failure.
func errorClass(err error) retry.Class {
	var aborted *retry.AbortedError
	if errors.As(err, &aborted) && aborted.Last != nil {
		return retry.Classify(aborted.Last)
	}
	return retry.Classify(err)
}

func correlationID(ctx context.Context, id string) string {
	if id != "" {
		return id
	}
	if id := logging.CorrelationID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
