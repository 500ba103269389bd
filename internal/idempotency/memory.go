// Package idempotency provides in-memory idempotency record storage.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// record is a stored idempotency entry.
type record struct {
	state     string
	result    []byte
	expiresAt time.Time
}

// InMemoryStore implements Store with in-memory storage.
// Thread-safe for concurrent access.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
	ttl     time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// NewInMemoryStore creates a new in-memory idempotency store with the given
// record TTL. A non-positive ttl falls back to DefaultTTL.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{
		records: make(map[string]*record),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the store's time source. Intended for tests.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// TryBegin atomically claims execution for the key.
func (s *InMemoryStore) TryBegin(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.records[key]; ok && existing.expiresAt.After(now) {
		return false, nil
	}

	// Absent or expired: claim it.
	s.records[key] = &record{
		state:     StateInProgress,
		expiresAt: now.Add(s.ttl),
	}
	return true, nil
}

// GetIfReady returns the committed, unexpired result for the key.
func (s *InMemoryStore) GetIfReady(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}

	now := s.now()
	if !rec.expiresAt.After(now) {
		delete(s.records, key)
		return nil, false, nil
	}
	if rec.state != StateDone {
		return nil, false, nil
	}

	result := make([]byte, len(rec.result))
	copy(result, rec.result)
	return result, true, nil
}

// Commit transitions the record to done and refreshes its expiry.
func (s *InMemoryStore) Commit(_ context.Context, key string, result []byte) error {
	if key == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(result))
	copy(stored, result)

	s.records[key] = &record{
		state:     StateDone,
		result:    stored,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// DeleteExpired removes expired records and returns how many were deleted.
// Used by the periodic cleanup job to prevent unbounded growth; expired
// records are already treated as absent by TryBegin and GetIfReady.
func (s *InMemoryStore) DeleteExpired() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	deleted := int64(0)
	for key, rec := range s.records {
		if !rec.expiresAt.After(now) {
			delete(s.records, key)
			deleted++
		}
	}
	return deleted
}
