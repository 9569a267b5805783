package allowlist

import (
	"errors"
	"sort"
	"sync"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.RWMutex
	entries map[string]*Entry // email -> entry
}

// NewInMemoryRepo creates a new in-memory allow-list repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		entries: make(map[string]*Entry),
	}
}

// GetByEmail retrieves the entry for an email
func (r *InMemoryRepo) GetByEmail(email string) (*Entry, error) {
	if email == "" {
		return nil, errors.New("email is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[email]
	if !ok {
		return nil, ErrEntryNotFound
	}
	copied := *entry
	return &copied, nil
}

// Upsert creates or replaces the entry for entry.Email
func (r *InMemoryRepo) Upsert(entry *Entry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if entry.Email == "" {
		return errors.New("entry email is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *entry
	r.entries[entry.Email] = &copied
	return nil
}

// List returns all entries sorted by email
func (r *InMemoryRepo) List() ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		copied := *entry
		entries = append(entries, &copied)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Email < entries[j].Email })
	return entries, nil
}
