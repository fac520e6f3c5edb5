package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/limits/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingBackend struct {
	storage.Backend
}

func (failingBackend) Admit(context.Context, string, int64, time.Duration, time.Duration, time.Time) (*storage.WindowState, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingBackend) Window(context.Context, string) (*storage.WindowState, error) {
	return nil, errors.New("connection refused")
}

type countingObserver struct {
	allowed  atomic.Int64
	rejected atomic.Int64
	failOpen atomic.Int64
}

func (o *countingObserver) ObserveDecision(allowed bool) {
	if allowed {
		o.allowed.Add(1)
	} else {
		o.rejected.Add(1)
	}
}

func (o *countingObserver) ObserveFailOpen(string) {
	o.failOpen.Add(1)
}

func newTestLimiter(t *testing.T, cfg Config, opts ...Option) (*Limiter, *fakeClock) {
	t.Helper()
	backend := storage.NewMemoryBackend()
	t.Cleanup(func() { _ = backend.Close() })

	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewLimiter(backend, cfg, opts...), clock
}

func TestLimiter_LimitOfFive(t *testing.T) {
	limiter, clock := newTestLimiter(t, Config{Window: time.Minute})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		result, err := limiter.CheckRateLimit(ctx, "tenant-a", 5)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
		if result.Remaining != int64(5-i) {
			t.Errorf("request %d: expected remaining %d, got %d", i, 5-i, result.Remaining)
		}
	}

	result, err := limiter.CheckRateLimit(ctx, "tenant-a", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allowed {
		t.Fatal("6th request should be rejected")
	}
	if result.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", result.Remaining)
	}
	if result.RetryAfter <= 0 || result.RetryAfter > time.Minute {
		t.Errorf("expected retry-after within the window, got %v", result.RetryAfter)
	}
	if result.Reason != ReasonExceeded {
		t.Errorf("expected reason %q, got %q", ReasonExceeded, result.Reason)
	}

	clock.Advance(time.Minute)

	result, err = limiter.CheckRateLimit(ctx, "tenant-a", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Fatal("request after window elapsed should be allowed")
	}
	if result.Remaining != 4 {
		t.Errorf("expected remaining 4 in fresh window, got %d", result.Remaining)
	}
}

func TestLimiter_TenantsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{})
	ctx := context.Background()

	if r, _ := limiter.CheckRateLimit(ctx, "tenant-a", 1); !r.Allowed {
		t.Fatal("tenant-a first request should be allowed")
	}
	if r, _ := limiter.CheckRateLimit(ctx, "tenant-a", 1); r.Allowed {
		t.Fatal("tenant-a second request should be rejected")
	}
	if r, _ := limiter.CheckRateLimit(ctx, "tenant-b", 1); !r.Allowed {
		t.Error("tenant-b should not be affected by tenant-a")
	}
}

func TestLimiter_ConcurrentAdmissionNeverExceedsLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{})
	ctx := context.Background()

	const (
		limit   = 20
		callers = 200
	)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := limiter.CheckRateLimit(ctx, "tenant-a", limit)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if result.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != limit {
		t.Errorf("expected exactly %d admitted, got %d", limit, admitted.Load())
	}
}

func TestLimiter_BoundaryBurst(t *testing.T) {
	limiter, clock := newTestLimiter(t, Config{Window: time.Minute})
	ctx := context.Background()

	clock.Advance(59 * time.Second)
	for i := 0; i < 3; i++ {
		if r, _ := limiter.CheckRateLimit(ctx, "tenant-a", 3); !r.Allowed {
			t.Fatalf("request %d at end of window should be allowed", i)
		}
	}

	// The window started at the first request, so it resets one full window later.
	clock.Advance(time.Minute)
	for i := 0; i < 3; i++ {
		if r, _ := limiter.CheckRateLimit(ctx, "tenant-a", 3); !r.Allowed {
			t.Fatalf("request %d in next window should be allowed", i)
		}
	}
}

func TestLimiter_DefaultLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{DefaultLimit: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		r, _ := limiter.CheckRateLimit(ctx, "tenant-a", 0)
		if !r.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if r.Limit != 2 {
			t.Errorf("expected default limit 2, got %d", r.Limit)
		}
	}
	if r, _ := limiter.CheckRateLimit(ctx, "tenant-a", -1); r.Allowed {
		t.Error("third request should be rejected by default limit")
	}

	limiter.SetDefaultLimit(5)
	if limiter.DefaultLimit() != 5 {
		t.Errorf("expected default limit 5, got %d", limiter.DefaultLimit())
	}
	if r, _ := limiter.CheckRateLimit(ctx, "tenant-a", 0); !r.Allowed {
		t.Error("raised default limit should admit more requests")
	}
}

func TestLimiter_NoLimitFailsOpen(t *testing.T) {
	observer := &countingObserver{}
	limiter, _ := newTestLimiter(t, Config{DefaultLimit: 0}, WithObserver(observer))

	r, err := limiter.CheckRateLimit(context.Background(), "tenant-a", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Allowed || !r.FailedOpen {
		t.Errorf("expected fail-open allow, got %+v", r)
	}
	if observer.failOpen.Load() != 1 {
		t.Errorf("expected 1 fail-open observation, got %d", observer.failOpen.Load())
	}
}

func TestLimiter_EmptyTenantKey(t *testing.T) {
	t.Run("fails open by default", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, Config{DefaultLimit: 1})
		for i := 0; i < 3; i++ {
			r, err := limiter.CheckRateLimit(context.Background(), "", 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !r.Allowed {
				t.Fatal("empty tenant key should be allowed")
			}
			if r.Reason != ReasonMissingTenant {
				t.Errorf("expected reason %q, got %q", ReasonMissingTenant, r.Reason)
			}
		}
	})

	t.Run("rejected in strict mode", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, Config{DefaultLimit: 1, StrictTenantKey: true})
		r, err := limiter.CheckRateLimit(context.Background(), "", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Allowed {
			t.Fatal("strict mode should reject empty tenant key")
		}
		if r.Reason != ReasonMissingTenant {
			t.Errorf("expected reason %q, got %q", ReasonMissingTenant, r.Reason)
		}
	})
}

func TestLimiter_BackendFailureFailsOpen(t *testing.T) {
	observer := &countingObserver{}
	limiter := NewLimiter(failingBackend{}, Config{DefaultLimit: 1}, WithObserver(observer))

	for i := 0; i < 3; i++ {
		r, err := limiter.CheckRateLimit(context.Background(), "tenant-a", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !r.Allowed || !r.FailedOpen {
			t.Fatalf("expected fail-open allow, got %+v", r)
		}
		if r.Reason != ReasonBackendFailure {
			t.Errorf("expected reason %q, got %q", ReasonBackendFailure, r.Reason)
		}
	}
	if observer.failOpen.Load() != 3 {
		t.Errorf("expected 3 fail-open observations, got %d", observer.failOpen.Load())
	}
	if observer.allowed.Load() != 0 {
		t.Errorf("fail-open should not count as a decision, got %d", observer.allowed.Load())
	}

	if _, err := limiter.Status(context.Background(), "tenant-a"); err == nil {
		t.Error("Status should surface backend errors")
	}
}

func TestLimiter_CanceledContext(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := limiter.CheckRateLimit(ctx, "tenant-a", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLimiter_Status(t *testing.T) {
	limiter, clock := newTestLimiter(t, Config{Window: time.Minute, DefaultLimit: 10})
	ctx := context.Background()

	status, err := limiter.Status(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Count != 0 || status.Limit != 10 || status.Remaining != 10 {
		t.Errorf("unexpected empty status: %+v", status)
	}

	start := clock.Now()
	for i := 0; i < 3; i++ {
		_, _ = limiter.CheckRateLimit(ctx, "tenant-a", 5)
	}

	for i := 0; i < 3; i++ {
		status, err = limiter.Status(ctx, "tenant-a")
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
	}
	if status.Count != 3 {
		t.Errorf("Status must not consume, expected count 3, got %d", status.Count)
	}
	if status.Limit != 5 || status.Remaining != 2 {
		t.Errorf("expected limit 5 remaining 2, got %+v", status)
	}
	if !status.WindowStart.Equal(start) {
		t.Errorf("expected window start %v, got %v", start, status.WindowStart)
	}
	if !status.ResetAt.Equal(start.Add(time.Minute)) {
		t.Errorf("expected reset at %v, got %v", start.Add(time.Minute), status.ResetAt)
	}

	clock.Advance(2 * time.Minute)
	status, _ = limiter.Status(ctx, "tenant-a")
	if status.Count != 0 {
		t.Errorf("elapsed window should report count 0, got %d", status.Count)
	}

	if _, err := limiter.Status(ctx, ""); !errors.Is(err, storage.ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
}

func TestLimiter_Reset(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{})
	ctx := context.Background()

	_, _ = limiter.CheckRateLimit(ctx, "tenant-a", 1)
	if r, _ := limiter.CheckRateLimit(ctx, "tenant-a", 1); r.Allowed {
		t.Fatal("expected rejection before reset")
	}
	if err := limiter.Reset(ctx, "tenant-a"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if r, _ := limiter.CheckRateLimit(ctx, "tenant-a", 1); !r.Allowed {
		t.Error("expected admission after reset")
	}
}

func TestNewLimiter_Defaults(t *testing.T) {
	limiter := NewLimiter(nil, Config{})
	if limiter.Window() != DefaultWindow {
		t.Errorf("expected default window %v, got %v", DefaultWindow, limiter.Window())
	}
	if limiter.ttl != DefaultWindow+DefaultGrace {
		t.Errorf("expected ttl %v, got %v", DefaultWindow+DefaultGrace, limiter.ttl)
	}
}
