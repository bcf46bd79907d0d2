package tokenstore

import (
	"errors"
	"sync"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.RWMutex
	tokens  map[string]*Tokens
	clients map[string]*ClientInfo
}

// NewInMemoryRepo creates a new in-memory token repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		tokens:  make(map[string]*Tokens),
		clients: make(map[string]*ClientInfo),
	}
}

// SetTokens stores or updates the tokens for a subject
func (r *InMemoryRepo) SetTokens(subject string, tokens *Tokens) error {
	if subject == "" {
		return errors.New("subject cannot be empty")
	}
	if tokens == nil {
		return errors.New("tokens cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modifications
	copied := *tokens
	r.tokens[subject] = &copied

	return nil
}

// GetTokens retrieves the tokens for a subject
func (r *InMemoryRepo) GetTokens(subject string) (*Tokens, error) {
	if subject == "" {
		return nil, errors.New("subject cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens, exists := r.tokens[subject]
	if !exists {
		return nil, ErrNotFound
	}

	copied := *tokens
	return &copied, nil
}

// SetClientInfo stores or updates the client registration for a subject
func (r *InMemoryRepo) SetClientInfo(subject string, info *ClientInfo) error {
	if subject == "" {
		return errors.New("subject cannot be empty")
	}
	if info == nil {
		return errors.New("info cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *info
	r.clients[subject] = &copied

	return nil
}

// GetClientInfo retrieves the client registration for a subject
func (r *InMemoryRepo) GetClientInfo(subject string) (*ClientInfo, error) {
	if subject == "" {
		return nil, errors.New("subject cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.clients[subject]
	if !exists {
		return nil, ErrNotFound
	}

	copied := *info
	return &copied, nil
}

// Delete removes all stored state for a subject
func (r *InMemoryRepo) Delete(subject string) error {
	if subject == "" {
		return errors.New("subject cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, subject)
	delete(r.clients, subject)
	return nil
}
