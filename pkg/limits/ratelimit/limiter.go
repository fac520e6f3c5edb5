package ratelimit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"mercator-hq/tollgate/pkg/limits/storage"
)

// Limiter enforces a per-tenant request ceiling over fixed windows.
//
// The check-and-increment for a key is a single backend Admit call, so no
// two callers can both observe count == limit-1 and both be admitted. The
// limiter itself holds no lock; contention is confined to the backend's
// per-key critical section.
//
// Infrastructure faults never block traffic: backend errors are logged and
// the request is let through.
type Limiter struct {
	backend storage.Backend

	window time.Duration
	ttl    time.Duration
	strict bool

	defaultLimit atomic.Int64

	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObserver registers an observer for decisions.
func WithObserver(o Observer) Option {
	return func(l *Limiter) {
		if o != nil {
			l.observer = o
		}
	}
}

// NewLimiter creates a limiter on top of backend.
//
// Example:
//
//	limiter := ratelimit.NewLimiter(storage.NewMemoryBackend(), ratelimit.Config{
//	    Window:       time.Minute,
//	    DefaultLimit: 100,
//	})
//	result, _ := limiter.CheckRateLimit(ctx, "tenant-42", 0)
func NewLimiter(backend storage.Backend, cfg Config, opts ...Option) *Limiter {
	if backend == nil {
		backend = storage.NewMemoryBackend()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Grace < 0 {
		cfg.Grace = 0
	} else if cfg.Grace == 0 {
		cfg.Grace = DefaultGrace
	}

	l := &Limiter{
		backend:  backend,
		window:   cfg.Window,
		ttl:      cfg.Window + cfg.Grace,
		strict:   cfg.StrictTenantKey,
		now:      time.Now,
		logger:   slog.Default().With("component", "limits.ratelimit"),
		observer: noopObserver{},
	}
	l.defaultLimit.Store(int64(cfg.DefaultLimit))

	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckRateLimit admits or rejects one request for tenantKey.
//
// A non-positive limitPerWindow uses the configured default. The returned
// error is non-nil only when ctx is already done; every other failure
// produces an allowed Result with FailedOpen set.
func (l *Limiter) CheckRateLimit(ctx context.Context, tenantKey string, limitPerWindow int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := l.now()

	if tenantKey == "" {
		if l.strict {
			l.observer.ObserveDecision(false)
			return &Result{
				Allowed: false,
				Reason:  ReasonMissingTenant,
				ResetAt: now.Add(l.window),
			}, nil
		}
		l.logger.Warn("rate limit check without tenant key, allowing request")
		return l.failOpen(ReasonMissingTenant, 0, now), nil
	}

	limit := int64(limitPerWindow)
	if limit <= 0 {
		limit = l.defaultLimit.Load()
	}
	if limit <= 0 {
		return l.failOpen(ReasonNoLimit, 0, now), nil
	}

	state, admitted, err := l.backend.Admit(ctx, tenantKey, limit, l.window, l.ttl, now)
	if err != nil {
		l.logger.Warn("rate limit backend failed, allowing request",
			"tenant", tenantKey,
			"error", err,
		)
		return l.failOpen(ReasonBackendFailure, limit, now), nil
	}

	l.observer.ObserveDecision(admitted)

	resetAt := state.ResetAt(l.window)
	result := &Result{
		Allowed:   admitted,
		Limit:     limit,
		Remaining: state.Remaining(),
		ResetAt:   resetAt,
	}
	if !admitted {
		result.Reason = ReasonExceeded
		result.RetryAfter = resetAt.Sub(now)
		if result.RetryAfter < 0 {
			result.RetryAfter = 0
		}
		l.logger.Debug("rate limit exceeded",
			"tenant", tenantKey,
			"limit", limit,
			"reset_at", resetAt,
		)
	}
	return result, nil
}

// Status returns the tenant's current window without consuming from it.
// A tenant with no window, or whose window has elapsed, reports a count of 0.
func (l *Limiter) Status(ctx context.Context, tenantKey string) (*Status, error) {
	if tenantKey == "" {
		return nil, storage.ErrEmptyKey
	}

	now := l.now()
	status := &Status{
		TenantKey:   tenantKey,
		Limit:       l.defaultLimit.Load(),
		WindowStart: now,
		ResetAt:     now.Add(l.window),
	}

	state, err := l.backend.Window(ctx, tenantKey)
	if err != nil {
		return nil, err
	}
	if state != nil {
		if state.Limit > 0 {
			status.Limit = state.Limit
		}
		if now.Sub(state.WindowStart) < l.window {
			status.Count = state.Count
			status.WindowStart = state.WindowStart
			status.ResetAt = state.ResetAt(l.window)
		}
	}

	status.Remaining = status.Limit - status.Count
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	return status, nil
}

// Reset clears the tenant's window.
func (l *Limiter) Reset(ctx context.Context, tenantKey string) error {
	return l.backend.Delete(ctx, tenantKey)
}

// SetDefaultLimit changes the default limit used for subsequent checks.
func (l *Limiter) SetDefaultLimit(limit int) {
	l.defaultLimit.Store(int64(limit))
	l.logger.Info("default rate limit updated", "limit", limit)
}

// DefaultLimit returns the current default limit.
func (l *Limiter) DefaultLimit() int {
	return int(l.defaultLimit.Load())
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

func (l *Limiter) failOpen(reason string, limit int64, now time.Time) *Result {
	l.observer.ObserveFailOpen(reason)
	return &Result{
		Allowed:    true,
		Reason:     reason,
		Limit:      limit,
		Remaining:  limit,
		ResetAt:    now.Add(l.window),
		FailedOpen: true,
	}
}
