package kafka

import (
	"context"
	"sync"
	"time"
)

// IdempotencyStore remembers processed event IDs so redelivered messages are
// handled once. Implementations must be safe for concurrent use.
type IdempotencyStore interface {
	Contains(ctx context.Context, eventID string) (bool, error)
	Add(ctx context.Context, eventID string) error
}

// pruneEvery bounds how many Adds pass between sweeps of expired IDs.
const pruneEvery = 1024

// MemoryIdempotencyStore is the in-process fallback used when no shared store
// is reachable. IDs are forgotten after ttl.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	ttl     time.Duration
	adds    int
	now     func() time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		expires: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryIdempotencyStore) Contains(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expires[eventID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.expires, eventID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryIdempotencyStore) Add(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expires[eventID] = now.Add(s.ttl)
	if s.adds++; s.adds%pruneEvery == 0 {
		for id, exp := range s.expires {
			if !now.Before(exp) {
				delete(s.expires, id)
			}
		}
	}
	return nil
}

// Len counts stored IDs, including expired ones not yet swept.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}
