package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)

	backend, err := NewRedisBackend(RedisConfig{URL: "redis://" + srv.Addr(), KeyPrefix: "test"})
	if err != nil {
		t.Fatalf("NewRedisBackend failed: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return backend, srv
}

func TestRedisBackend_AdmitAndReset(t *testing.T) {
	backend, srv := newTestRedisBackend(t)
	ctx := context.Background()
	start := time.UnixMilli(time.Now().UnixMilli())

	for i := 1; i <= 2; i++ {
		state, ok, err := backend.Admit(ctx, "tenant-a", 2, time.Minute, 2*time.Minute, start)
		if err != nil {
			t.Fatalf("Admit %d failed: %v", i, err)
		}
		if !ok {
			t.Fatalf("Admit %d: expected admission", i)
		}
		if state.Count != int64(i) {
			t.Errorf("Admit %d: expected count %d, got %d", i, i, state.Count)
		}
		if !state.WindowStart.Equal(start) {
			t.Errorf("Expected window start %v, got %v", start, state.WindowStart)
		}
	}

	state, ok, err := backend.Admit(ctx, "tenant-a", 2, time.Minute, 2*time.Minute, start.Add(time.Second))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if ok {
		t.Error("Expected rejection at limit")
	}
	if state.Count != 2 {
		t.Errorf("Rejection must not increment, got %d", state.Count)
	}

	if !srv.Exists("test:window:tenant-a") {
		t.Error("Expected prefixed window key in redis")
	}
	if ttl := srv.TTL("test:window:tenant-a"); ttl <= time.Minute {
		t.Errorf("Expected ttl of window plus grace, got %v", ttl)
	}

	later := start.Add(time.Minute)
	state, ok, err = backend.Admit(ctx, "tenant-a", 2, time.Minute, 2*time.Minute, later)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if !ok || state.Count != 1 {
		t.Errorf("Expected fresh window with count 1, got ok=%v count=%d", ok, state.Count)
	}
}

func TestRedisBackend_Window(t *testing.T) {
	backend, _ := newTestRedisBackend(t)
	ctx := context.Background()

	state, err := backend.Window(ctx, "missing")
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if state != nil {
		t.Errorf("Expected nil for missing window, got %+v", state)
	}

	now := time.UnixMilli(time.Now().UnixMilli())
	if _, _, err := backend.Admit(ctx, "tenant-a", 7, time.Minute, 2*time.Minute, now); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	state, err = backend.Window(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if state == nil {
		t.Fatal("Expected window state")
	}
	if state.Count != 1 || state.Limit != 7 {
		t.Errorf("Expected count 1 limit 7, got count %d limit %d", state.Count, state.Limit)
	}
	if !state.WindowStart.Equal(now) {
		t.Errorf("Expected window start %v, got %v", now, state.WindowStart)
	}
}

func TestRedisBackend_ConcurrentAdmit(t *testing.T) {
	backend, _ := newTestRedisBackend(t)
	ctx := context.Background()
	now := time.Now()

	const (
		limit   = 10
		callers = 60
	)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := backend.Admit(ctx, "shared", limit, time.Minute, 2*time.Minute, now)
			if err != nil {
				t.Errorf("Admit failed: %v", err)
				return
			}
			if ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != limit {
		t.Errorf("Expected exactly %d admissions, got %d", limit, admitted.Load())
	}
}

func TestRedisBackend_Counters(t *testing.T) {
	backend, srv := newTestRedisBackend(t)
	ctx := context.Background()
	expireAt := time.Now().Add(time.Hour)

	if v, err := backend.Counter(ctx, "usage"); err != nil || v != 0 {
		t.Fatalf("Expected 0 for missing counter, got %d, %v", v, err)
	}

	if _, err := backend.IncrementCounter(ctx, "usage", 4, expireAt); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	v, err := backend.IncrementCounter(ctx, "usage", 1, expireAt)
	if err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if v != 5 {
		t.Errorf("Expected 5, got %d", v)
	}
	if got, _ := backend.Counter(ctx, "usage"); got != 5 {
		t.Errorf("Expected Counter 5, got %d", got)
	}
	if srv.TTL("test:counter:usage") <= 0 {
		t.Error("Expected counter to carry an expiry")
	}

	if err := backend.Delete(ctx, "usage"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := backend.Counter(ctx, "usage"); got != 0 {
		t.Errorf("Expected 0 after delete, got %d", got)
	}
}

func TestRedisBackend_FromClientNotClosed(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	defer srv.Close()

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	backend := NewRedisBackendFromClient(client, "")
	if err := backend.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Errorf("Expected caller-owned client to stay open, got %v", err)
	}
	if backend.windowKey("x") != "tollgate:window:x" {
		t.Errorf("Expected default prefix, got %s", backend.windowKey("x"))
	}
}

func TestNewRedisBackend_BadURL(t *testing.T) {
	if _, err := NewRedisBackend(RedisConfig{URL: "://bad"}); err == nil {
		t.Error("Expected error for invalid url")
	}
}
