package authstate

import (
	"errors"
	"sync"
	"time"
)

var errStateNotFound = errors.New("state not found")

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewInMemoryRepo creates a new in-memory CSRF state repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		entries: make(map[string]*Entry),
	}
}

// Upsert stores or replaces a state entry
func (r *InMemoryRepo) Upsert(state string, entry *Entry) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if entry == nil {
		return errors.New("entry cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy to prevent external modifications
	r.entries[state] = &Entry{
		ReturnURL: entry.ReturnURL,
		CreatedAt: entry.CreatedAt,
	}
	return nil
}

// Consume retrieves and deletes an entry under a single lock, enforcing
// single use even for concurrent callers presenting the same token.
func (r *InMemoryRepo) Consume(state string) (*Entry, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[state]
	if !exists {
		return nil, errStateNotFound
	}
	delete(r.entries, state)

	return &Entry{
		ReturnURL: entry.ReturnURL,
		CreatedAt: entry.CreatedAt,
	}, nil
}

// DeleteOlderThan removes entries created before cutoff
func (r *InMemoryRepo) DeleteOlderThan(cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for state, entry := range r.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(r.entries, state)
			removed++
		}
	}
	return removed, nil
}
