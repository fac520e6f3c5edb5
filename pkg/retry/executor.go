package retry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Attempt describes one invocation of a retried operation.
type Attempt struct {
	// Operation is the name passed to the executor
	Operation string

	// Number is the 1-based attempt number
	Number int

	// Err is the failure of this attempt, nil on success
	Err error

	// Class is the classification of Err
	Class Class

	// Delay is the wait before the next attempt, zero when none follows
	Delay time.Duration

	// Retrying is true when another attempt will be made
	Retrying bool
}

// Observer receives every attempt the executor makes.
type Observer interface {
	ObserveAttempt(Attempt)
}

type noopObserver struct{}

func (noopObserver) ObserveAttempt(Attempt) {}

// Executor runs operations with bounded, classified retries.
// It is safe for concurrent use; the policy may be swapped at runtime.
type Executor struct {
	mu       sync.RWMutex
	policy   Policy
	classify func(error) Class
	jitter   func() float64
	now      func() time.Time
	observer Observer
	logger   *slog.Logger
}

// Option customizes an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver sets the attempt observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithClassifier replaces Classify.
func WithClassifier(fn func(error) Class) Option {
	return func(e *Executor) {
		if fn != nil {
			e.classify = fn
		}
	}
}

// WithJitterSource sets the jitter sample source. fn must return values in
// [-1, 1].
func WithJitterSource(fn func() float64) Option {
	return func(e *Executor) {
		if fn != nil {
			e.jitter = fn
		}
	}
}

// WithClock overrides the time source used for MaxElapsed.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an executor with the given policy. Zero delay fields
// take their defaults.
func NewExecutor(policy Policy, opts ...Option) *Executor {
	e := &Executor{
		policy:   policy.WithDefaults(),
		classify: Classify,
		jitter:   func() float64 { return rand.Float64()*2 - 1 },
		now:      time.Now,
		observer: noopObserver{},
		logger:   slog.Default().With("component", "retry"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the current policy.
func (e *Executor) Policy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// SetPolicy replaces the policy for subsequent operations. In-flight
// operations keep the policy they started with.
func (e *Executor) SetPolicy(p Policy) {
	e.mu.Lock()
	e.policy = p.WithDefaults()
	e.mu.Unlock()
}

// Run executes fn with retries. See Execute.
func (e *Executor) Run(ctx context.Context, operation string, fn func(context.Context) error) error {
	_, err := Execute(ctx, e, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Execute invokes fn until it succeeds, fails permanently, or the retry
// budget is exhausted.
//
// Permanent failures return the original error immediately. After the last
// retry the last failure is returned as-is. If ctx ends while waiting between
// attempts, an *AbortedError is returned.
func Execute[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	policy := e.Policy()
	start := e.now()

	for n := 1; ; n++ {
		result, err := fn(ctx)
		if err == nil {
			e.observer.ObserveAttempt(Attempt{Operation: operation, Number: n})
			if n > 1 {
				e.logger.Info("operation succeeded after retry",
					"operation", operation,
					"attempts", n,
				)
			}
			return result, nil
		}

		class := e.classify(err)
		attempt := Attempt{Operation: operation, Number: n, Err: err, Class: class}

		if !class.Retryable() {
			e.observer.ObserveAttempt(attempt)
			e.logger.Debug("operation failed permanently",
				"operation", operation,
				"attempt", n,
				"error", err,
			)
			return zero, err
		}

		if n > policy.MaxRetries {
			e.observer.ObserveAttempt(attempt)
			e.logger.Warn("operation retries exhausted",
				"operation", operation,
				"attempts", n,
				"class", class.String(),
				"error", err,
			)
			return zero, err
		}

		delay := policy.delayFor(n, e.jitter(), retryAfterHint(err))
		if policy.MaxElapsed > 0 && e.now().Sub(start)+delay > policy.MaxElapsed {
			e.observer.ObserveAttempt(attempt)
			e.logger.Warn("operation retry deadline reached",
				"operation", operation,
				"attempts", n,
				"max_elapsed", policy.MaxElapsed,
				"error", err,
			)
			return zero, err
		}

		attempt.Delay = delay
		attempt.Retrying = true
		e.observer.ObserveAttempt(attempt)
		e.logger.Warn("retrying operation",
			"operation", operation,
			"attempt", n,
			"max_retries", policy.MaxRetries,
			"delay", delay,
			"class", class.String(),
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &AbortedError{
				Operation: operation,
				Attempts:  n,
				Cause:     ctx.Err(),
				Last:      err,
			}
		case <-timer.C:
		}
	}
}
