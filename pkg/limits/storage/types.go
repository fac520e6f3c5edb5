package storage

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyKey is returned when an operation is called with an empty key.
var ErrEmptyKey = errors.New("storage key cannot be empty")

// ErrCapacity is returned when a bounded backend cannot track a new key
// without dropping live state.
var ErrCapacity = errors.New("storage capacity exhausted")

// Backend is the key-value abstraction behind the rate limiter and the usage
// meter. Implementations must be safe for concurrent use.
type Backend interface {
	// Admit resets the window for key if now-WindowStart >= window, then
	// increments the count when it is below limit. The reset, comparison and
	// increment happen atomically. The returned state reflects the value
	// after the decision. The entry expires after ttl of inactivity.
	Admit(ctx context.Context, key string, limit int64, window, ttl time.Duration, now time.Time) (*WindowState, bool, error)

	// Window returns the current window for key without mutating it.
	// Returns nil if no window exists.
	Window(ctx context.Context, key string) (*WindowState, error)

	// IncrementCounter adds delta to a plain counter and sets it to expire
	// at expireAt. Returns the new value.
	IncrementCounter(ctx context.Context, key string, delta int64, expireAt time.Time) (int64, error)

	// Counter returns the value of a plain counter, 0 if missing.
	Counter(ctx context.Context, key string) (int64, error)

	// Delete removes a window or counter. No-op if the key does not exist.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// WindowState is the fixed-window counter for a single key.
type WindowState struct {
	// Key is the storage key (usually derived from the tenant).
	Key string

	// WindowStart is when the current window began.
	WindowStart time.Time

	// Count is the number of admitted requests in the current window.
	Count int64

	// Limit is the limit applied by the most recent admission check.
	Limit int64
}

// ResetAt returns when the window ends.
func (w *WindowState) ResetAt(window time.Duration) time.Time {
	return w.WindowStart.Add(window)
}

// Remaining returns how many admissions are left in the window.
func (w *WindowState) Remaining() int64 {
	if w.Count >= w.Limit {
		return 0
	}
	return w.Limit - w.Count
}
