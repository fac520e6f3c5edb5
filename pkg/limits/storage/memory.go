package storage

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// MemoryBackend implements Backend using sharded in-memory maps.
// This is the default backend. All data is lost when the process exits.
//
// Keys are spread across shards by FNV-1a hash; each shard has its own mutex,
// so requests for different tenants rarely contend.
type MemoryBackend struct {
	shards []*memoryShard

	// Windows and counters are bounded separately per shard. A full shard
	// first drops expired entries; live entries are never evicted, so a new
	// key is refused with ErrCapacity instead.
	maxWindowsPerShard  int
	maxCountersPerShard int

	cleanupInterval time.Duration
	done            chan struct{}
	closeOnce       sync.Once
}

type memoryShard struct {
	mu       sync.Mutex
	windows  map[string]*memoryWindow
	counters map[string]*memoryCounter
}

type memoryWindow struct {
	state    WindowState
	expireAt time.Time
}

type memoryCounter struct {
	value    int64
	expireAt time.Time
}

// MemoryBackendConfig configures the memory backend.
type MemoryBackendConfig struct {
	// Shards is the number of independently locked partitions.
	// Default: 64
	Shards int

	// MaxEntries is the maximum number of rate limit windows kept in total.
	// Default: 100,000
	MaxEntries int

	// MaxCounters is the maximum number of usage counters kept in total.
	// Default: 100,000
	MaxCounters int

	// CleanupInterval is how often expired entries are removed.
	// Default: 1 minute
	CleanupInterval time.Duration
}

// NewMemoryBackend creates a new in-memory backend with default settings.
func NewMemoryBackend() *MemoryBackend {
	return NewMemoryBackendWithConfig(MemoryBackendConfig{})
}

// NewMemoryBackendWithConfig creates a new in-memory backend with custom configuration.
func NewMemoryBackendWithConfig(cfg MemoryBackendConfig) *MemoryBackend {
	if cfg.Shards <= 0 {
		cfg.Shards = 64
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100000
	}
	if cfg.MaxCounters <= 0 {
		cfg.MaxCounters = 100000
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	backend := &MemoryBackend{
		shards:              make([]*memoryShard, cfg.Shards),
		maxWindowsPerShard:  perShard(cfg.MaxEntries, cfg.Shards),
		maxCountersPerShard: perShard(cfg.MaxCounters, cfg.Shards),
		cleanupInterval:     cfg.CleanupInterval,
		done:                make(chan struct{}),
	}
	for i := range backend.shards {
		backend.shards[i] = &memoryShard{
			windows:  make(map[string]*memoryWindow),
			counters: make(map[string]*memoryCounter),
		}
	}

	go backend.cleanupLoop()

	return backend
}

// Admit implements Backend.
func (m *MemoryBackend) Admit(ctx context.Context, key string, limit int64, window, ttl time.Duration, now time.Time) (*WindowState, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.windows[key]
	if !ok {
		if len(shard.windows) >= m.maxWindowsPerShard && shard.purgeWindowsLocked(now) == 0 {
			return nil, false, ErrCapacity
		}
		entry = &memoryWindow{state: WindowState{Key: key, WindowStart: now}}
		shard.windows[key] = entry
	}

	if now.Sub(entry.state.WindowStart) >= window {
		entry.state.WindowStart = now
		entry.state.Count = 0
	}
	entry.state.Limit = limit

	admitted := false
	if entry.state.Count < limit {
		entry.state.Count++
		admitted = true
	}
	entry.expireAt = now.Add(ttl)

	snapshot := entry.state
	return &snapshot, admitted, nil
}

// Window implements Backend.
func (m *MemoryBackend) Window(ctx context.Context, key string) (*WindowState, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.windows[key]
	if !ok {
		return nil, nil
	}
	snapshot := entry.state
	return &snapshot, nil
}

// IncrementCounter implements Backend.
func (m *MemoryBackend) IncrementCounter(ctx context.Context, key string, delta int64, expireAt time.Time) (int64, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}

	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := time.Now()
	c, ok := shard.counters[key]
	if !ok || c.expiredAt(now) {
		if !ok && len(shard.counters) >= m.maxCountersPerShard && shard.purgeCountersLocked(now) == 0 {
			return 0, ErrCapacity
		}
		c = &memoryCounter{}
		shard.counters[key] = c
	}
	c.value += delta
	c.expireAt = expireAt
	return c.value, nil
}

// Counter implements Backend.
func (m *MemoryBackend) Counter(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}

	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	c, ok := shard.counters[key]
	if !ok {
		return 0, nil
	}
	if c.expiredAt(time.Now()) {
		return 0, nil
	}
	return c.value, nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.windows, key)
	delete(shard.counters, key)
	return nil
}

// Cleanup removes entries whose expiry is before olderThan.
// Returns the number of entries removed.
func (m *MemoryBackend) Cleanup(olderThan time.Time) int {
	deleted := 0
	for _, shard := range m.shards {
		shard.mu.Lock()
		for key, w := range shard.windows {
			if w.expireAt.Before(olderThan) {
				delete(shard.windows, key)
				deleted++
			}
		}
		for key, c := range shard.counters {
			if !c.expireAt.IsZero() && c.expireAt.Before(olderThan) {
				delete(shard.counters, key)
				deleted++
			}
		}
		shard.mu.Unlock()
	}
	return deleted
}

// Size returns the number of stored windows and counters.
func (m *MemoryBackend) Size() int {
	total := 0
	for _, shard := range m.shards {
		shard.mu.Lock()
		total += shard.sizeLocked()
		shard.mu.Unlock()
	}
	return total
}

// Close stops the cleanup goroutine.
func (m *MemoryBackend) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	return nil
}

func (m *MemoryBackend) shardFor(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

func (s *memoryShard) sizeLocked() int {
	return len(s.windows) + len(s.counters)
}

func perShard(total, shards int) int {
	if n := total / shards; n > 0 {
		return n
	}
	return 1
}

func (c *memoryCounter) expiredAt(now time.Time) bool {
	return !c.expireAt.IsZero() && !now.Before(c.expireAt)
}

// purgeWindowsLocked drops windows that expired by now and returns how many
// were removed. Caller must hold the shard lock.
func (s *memoryShard) purgeWindowsLocked(now time.Time) int {
	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.expireAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// purgeCountersLocked drops counters that expired by now.
func (s *memoryShard) purgeCountersLocked(now time.Time) int {
	removed := 0
	for key, c := range s.counters {
		if c.expiredAt(now) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

// cleanupLoop runs periodic cleanup of expired entries.
func (m *MemoryBackend) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Cleanup(time.Now())
		case <-m.done:
			return
		}
	}
}
