package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/audit"
)

// MemoryStore implements audit.Store in memory. Intended for tests and
// single-process development setups.
type MemoryStore struct {
	records []*audit.Record
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Write stores a copy of the record.
func (s *MemoryStore) Write(ctx context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *record
	s.records = append(s.records, &recordCopy)
	return nil
}

// Query returns copies of the records matching the query.
func (s *MemoryStore) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	s.mu.RLock()
	results := []*audit.Record{}
	for _, record := range s.records {
		if query.Matches(record) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}
	s.mu.RUnlock()

	asc := query != nil && query.SortOrder == "asc"
	sort.SliceStable(results, func(i, j int) bool {
		if asc {
			return results[i].Timestamp.Before(results[j].Timestamp)
		}
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	if query == nil {
		return results, nil
	}
	if query.Offset >= len(results) {
		return []*audit.Record{}, nil
	}
	results = results[query.Offset:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}
	return results, nil
}

// Count returns the number of records matching the query filters.
func (s *MemoryStore) Count(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if query.Matches(record) {
			count++
		}
	}
	return count, nil
}

// Delete removes records matching the query filters.
func (s *MemoryStore) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, record := range s.records {
		if query.Matches(record) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept
	return deleted, nil
}

// Prune deletes records older than cutoff.
func (s *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	end := cutoff.Add(-time.Nanosecond)
	return s.Delete(ctx, &audit.Query{EndTime: &end})
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Records returns copies of all stored records in write order.
func (s *MemoryStore) Records() []*audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*audit.Record, len(s.records))
	for i, record := range s.records {
		recordCopy := *record
		out[i] = &recordCopy
	}
	return out
}

// Size returns the number of stored records.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
