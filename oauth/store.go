package oauth

import (
	"context"
	"sync"
)

// TokenStore persists OAuth credentials keyed by an owner identifier (a
// user or shop ID, depending on the host). Implementations must be safe for
// concurrent use.
type TokenStore interface {
	// Put upserts the credential for owner.
	Put(ctx context.Context, owner string, tokens *Tokens) error

	// Get returns the stored credential, or ErrNotFound.
	Get(ctx context.Context, owner string) (*Tokens, error)

	// Delete removes the credential. Deleting a missing owner is not an
	// error.
	Delete(ctx context.Context, owner string) error
}

// MemoryStore keeps credentials in process memory. Suitable for tests and
// short-lived processes.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]Tokens
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]Tokens)}
}

func (s *MemoryStore) Put(_ context.Context, owner string, tokens *Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[owner] = *tokens
	return nil
}

func (s *MemoryStore) Get(_ context.Context, owner string) (*Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[owner]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryStore) Delete(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, owner)
	return nil
}
