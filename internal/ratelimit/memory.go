package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold bounds the memory store: once the map holds this many keys,
// inserting a new one first drops every expired window.
const sweepThreshold = 4096

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is the in-process fixed-window store. Suitable for a single
// proxy instance; counters are lost on restart, which for a short window is
// an acceptable failure mode.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Incr implements Store.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !now.Before(e.resetAt) {
		if !ok && len(s.entries) >= sweepThreshold {
			s.sweepLocked(now)
		}
		e = &memoryEntry{resetAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	return e.count, e.resetAt, nil
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, e := range s.entries {
		if !now.Before(e.resetAt) {
			delete(s.entries, key)
		}
	}
}
