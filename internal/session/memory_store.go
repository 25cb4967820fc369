package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory. It backs tests and
// one-shot invocations that should not touch disk.
type MemoryStore struct {
	session *Session
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored session.
func (s *MemoryStore) Load(_ context.Context) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Clone(), nil
}

// Save replaces the stored session with a copy of sess.
func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess.Clone()
	return nil
}

// Clear drops the stored session.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
