// Package session provides the checkout session model and its storage.
package session

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionNotFound is returned when a session is not found.
var ErrSessionNotFound = errors.New("checkout session not found")

// Store defines methods for checkout session persistence. The store owns the
// canonical session record; readers see a fully formed record or none.
type Store interface {
	// Get retrieves a session by id.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Get(ctx context.Context, id string) (*Session, error)

	// Put stores a session wholesale, replacing any existing record.
	Put(ctx context.Context, s *Session) error

	// FindByPaymentIntentID retrieves the session holding the given payment
	// reference. Returns ErrSessionNotFound if no session matches.
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Session, error)

	// Delete removes a session. Deleting an absent session is a no-op.
	Delete(ctx context.Context, id string) error
}

// InMemoryStore implements Store with in-memory storage.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryStore creates a new in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Get retrieves a session by id.
func (s *InMemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	// Deep copy to prevent external mutation
	return sess.Clone(), nil
}

// Put stores a session wholesale.
func (s *InMemoryStore) Put(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// FindByPaymentIntentID retrieves the session holding the given payment reference.
func (s *InMemoryStore) FindByPaymentIntentID(_ context.Context, paymentIntentID string) (*Session, error) {
	if paymentIntentID == "" {
		return nil, ErrSessionNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.PaymentIntentID == paymentIntentID {
			return sess.Clone(), nil
		}
	}

	return nil, ErrSessionNotFound
}

// Delete removes a session.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}
