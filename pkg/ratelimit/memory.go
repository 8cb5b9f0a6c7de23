package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps timestamps per key in process memory.
//
// Keys are only trimmed by the window filter on their next hit, so memory
// grows with the number of distinct keys ever seen. That is acceptable for
// short-lived instances; use RedisStore otherwise.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]time.Time),
	}
}

// Hit implements Store.
func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.entries[key]
	recent := make([]time.Time, 0, len(prev)+1)
	for _, ts := range prev {
		if now.Sub(ts) < window {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)
	s.entries[key] = recent

	return len(recent), nil
}

// Len returns the number of keys tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
