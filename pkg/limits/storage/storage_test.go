package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryBackend_AdmitUpToLimit(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()
	now := time.Now()

	for i := 1; i <= 3; i++ {
		state, ok, err := backend.Admit(ctx, "tenant-a", 3, time.Minute, 2*time.Minute, now)
		if err != nil {
			t.Fatalf("Admit %d failed: %v", i, err)
		}
		if !ok {
			t.Fatalf("Admit %d: expected admission", i)
		}
		if state.Count != int64(i) {
			t.Errorf("Admit %d: expected count %d, got %d", i, i, state.Count)
		}
	}

	state, ok, err := backend.Admit(ctx, "tenant-a", 3, time.Minute, 2*time.Minute, now)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if ok {
		t.Error("Expected rejection at limit")
	}
	if state.Count != 3 {
		t.Errorf("Rejected admission must not increment, got count %d", state.Count)
	}
	if state.Remaining() != 0 {
		t.Errorf("Expected 0 remaining, got %d", state.Remaining())
	}
}

func TestMemoryBackend_WindowReset(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()
	start := time.Now()

	for i := 0; i < 2; i++ {
		if _, _, err := backend.Admit(ctx, "tenant-a", 2, time.Minute, 2*time.Minute, start); err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
	}
	if _, ok, _ := backend.Admit(ctx, "tenant-a", 2, time.Minute, 2*time.Minute, start.Add(30*time.Second)); ok {
		t.Fatal("Expected rejection inside the window")
	}

	later := start.Add(time.Minute)
	state, ok, err := backend.Admit(ctx, "tenant-a", 2, time.Minute, 2*time.Minute, later)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected admission after window elapsed")
	}
	if state.Count != 1 {
		t.Errorf("Expected count 1 after reset, got %d", state.Count)
	}
	if !state.WindowStart.Equal(later) {
		t.Errorf("Expected window start %v, got %v", later, state.WindowStart)
	}
	if got := state.ResetAt(time.Minute); !got.Equal(later.Add(time.Minute)) {
		t.Errorf("Expected reset at %v, got %v", later.Add(time.Minute), got)
	}
}

func TestMemoryBackend_ConcurrentAdmit(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()
	now := time.Now()

	const (
		limit   = 50
		callers = 500
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

	state, err := backend.Window(ctx, "shared")
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if state.Count != limit {
		t.Errorf("Expected stored count %d, got %d", limit, state.Count)
	}
}

func TestMemoryBackend_WindowIsReadOnly(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()

	state, err := backend.Window(ctx, "missing")
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if state != nil {
		t.Errorf("Expected nil for missing window, got %+v", state)
	}

	if _, _, err := backend.Admit(ctx, "tenant-a", 5, time.Minute, 2*time.Minute, time.Now()); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		state, err = backend.Window(ctx, "tenant-a")
		if err != nil {
			t.Fatalf("Window failed: %v", err)
		}
	}
	if state.Count != 1 {
		t.Errorf("Window must not change the count, got %d", state.Count)
	}
	if state.Limit != 5 {
		t.Errorf("Expected limit 5, got %d", state.Limit)
	}
}

func TestMemoryBackend_Counters(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()
	expireAt := time.Now().Add(time.Hour)

	if v, err := backend.Counter(ctx, "usage"); err != nil || v != 0 {
		t.Fatalf("Expected 0 for missing counter, got %d, %v", v, err)
	}

	if _, err := backend.IncrementCounter(ctx, "usage", 2, expireAt); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	v, err := backend.IncrementCounter(ctx, "usage", 3, expireAt)
	if err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if v != 5 {
		t.Errorf("Expected 5, got %d", v)
	}
	if v, _ := backend.Counter(ctx, "usage"); v != 5 {
		t.Errorf("Expected Counter 5, got %d", v)
	}

	// An already expired counter starts over.
	if _, err := backend.IncrementCounter(ctx, "stale", 7, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if v, _ := backend.Counter(ctx, "stale"); v != 0 {
		t.Errorf("Expected expired counter to read 0, got %d", v)
	}
	if v, _ := backend.IncrementCounter(ctx, "stale", 1, expireAt); v != 1 {
		t.Errorf("Expected expired counter to restart at 1, got %d", v)
	}
}

func TestMemoryBackend_Delete(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()
	now := time.Now()

	if _, _, err := backend.Admit(ctx, "tenant-a", 1, time.Minute, 2*time.Minute, now); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if err := backend.Delete(ctx, "tenant-a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := backend.Admit(ctx, "tenant-a", 1, time.Minute, 2*time.Minute, now); !ok {
		t.Error("Expected admission after delete")
	}
	if err := backend.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete of missing key should be a no-op, got %v", err)
	}
}

func TestMemoryBackend_EmptyKey(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()

	if _, _, err := backend.Admit(ctx, "", 1, time.Minute, time.Minute, time.Now()); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Admit: expected ErrEmptyKey, got %v", err)
	}
	if _, err := backend.Window(ctx, ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Window: expected ErrEmptyKey, got %v", err)
	}
	if _, err := backend.IncrementCounter(ctx, "", 1, time.Time{}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("IncrementCounter: expected ErrEmptyKey, got %v", err)
	}
	if err := backend.Delete(ctx, ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Delete: expected ErrEmptyKey, got %v", err)
	}
}

func TestMemoryBackend_Cleanup(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()
	now := time.Now()

	if _, _, err := backend.Admit(ctx, "short", 1, time.Second, time.Second, now); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if _, _, err := backend.Admit(ctx, "long", 1, time.Second, time.Hour, now); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	removed := backend.Cleanup(now.Add(time.Minute))
	if removed != 1 {
		t.Errorf("Expected 1 entry removed, got %d", removed)
	}
	if backend.Size() != 1 {
		t.Errorf("Expected 1 entry left, got %d", backend.Size())
	}
}

func TestMemoryBackend_MaxEntries(t *testing.T) {
	backend := NewMemoryBackendWithConfig(MemoryBackendConfig{
		Shards:     1,
		MaxEntries: 2,
	})
	defer backend.Close()

	ctx := context.Background()
	now := time.Now()

	if _, _, err := backend.Admit(ctx, "a", 1, time.Minute, time.Second, now); err != nil {
		t.Fatalf("Admit a failed: %v", err)
	}
	if _, _, err := backend.Admit(ctx, "b", 1, time.Minute, time.Hour, now); err != nil {
		t.Fatalf("Admit b failed: %v", err)
	}

	// Both windows are live: the new key is refused rather than evicting one.
	if _, _, err := backend.Admit(ctx, "c", 1, time.Minute, time.Hour, now); !errors.Is(err, ErrCapacity) {
		t.Fatalf("Expected ErrCapacity with a full shard, got %v", err)
	}

	// Once "a" has expired its slot is reclaimed.
	later := now.Add(2 * time.Second)
	if _, _, err := backend.Admit(ctx, "c", 1, time.Minute, time.Hour, later); err != nil {
		t.Fatalf("Admit c after expiry failed: %v", err)
	}
	if state, _ := backend.Window(ctx, "a"); state != nil {
		t.Error("Expected expired window to be purged")
	}
	if state, _ := backend.Window(ctx, "b"); state == nil {
		t.Error("Expected live window to be kept")
	}
}

func TestMemoryBackend_ExhaustedWindowSurvivesPressure(t *testing.T) {
	backend := NewMemoryBackendWithConfig(MemoryBackendConfig{
		Shards:     1,
		MaxEntries: 2,
	})
	defer backend.Close()

	ctx := context.Background()
	now := time.Now()

	if _, admitted, err := backend.Admit(ctx, "tenant-a", 1, time.Minute, time.Minute, now); err != nil || !admitted {
		t.Fatalf("first request: admitted=%v err=%v", admitted, err)
	}
	if _, admitted, _ := backend.Admit(ctx, "tenant-a", 1, time.Minute, time.Minute, now); admitted {
		t.Fatal("second request should be rejected at limit 1")
	}

	if _, err := backend.IncrementCounter(ctx, "usage:tenant-a", 1, now.Add(time.Hour)); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if _, _, err := backend.Admit(ctx, "tenant-b", 1, time.Minute, 2*time.Minute, now); err != nil {
		t.Fatalf("Admit tenant-b failed: %v", err)
	}
	if _, _, err := backend.Admit(ctx, "tenant-c", 1, time.Minute, 2*time.Minute, now); !errors.Is(err, ErrCapacity) {
		t.Fatalf("Expected ErrCapacity for tenant-c, got %v", err)
	}

	state, admitted, err := backend.Admit(ctx, "tenant-a", 1, time.Minute, time.Minute, now)
	if err != nil {
		t.Fatalf("Admit tenant-a failed: %v", err)
	}
	if admitted || state.Count != 1 {
		t.Errorf("Expected tenant-a still rejected with count 1, got admitted=%v count=%d", admitted, state.Count)
	}
	if n, _ := backend.Counter(ctx, "usage:tenant-a"); n != 1 {
		t.Errorf("Expected counter to survive window pressure, got %d", n)
	}
}

func TestMemoryBackend_MaxCounters(t *testing.T) {
	backend := NewMemoryBackendWithConfig(MemoryBackendConfig{
		Shards:      1,
		MaxCounters: 1,
	})
	defer backend.Close()

	ctx := context.Background()
	now := time.Now()

	if _, err := backend.IncrementCounter(ctx, "expired", 5, now.Add(-time.Second)); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if _, err := backend.IncrementCounter(ctx, "live", 1, now.Add(time.Hour)); err != nil {
		t.Fatalf("Expected expired counter to be reclaimed, got %v", err)
	}
	if _, err := backend.IncrementCounter(ctx, "other", 1, now.Add(time.Hour)); !errors.Is(err, ErrCapacity) {
		t.Errorf("Expected ErrCapacity, got %v", err)
	}
	if n, _ := backend.Counter(ctx, "live"); n != 1 {
		t.Errorf("Expected live counter kept, got %d", n)
	}
}

func TestMemoryBackend_CloseIdempotent(t *testing.T) {
	backend := NewMemoryBackend()
	if err := backend.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
