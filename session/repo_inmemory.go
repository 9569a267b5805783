package session

import (
	"errors"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]*Session),
	}
}

// Upsert creates or replaces a session record
func (r *InMemoryRepo) Upsert(session *Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if session.ID == "" {
		return errors.New("session ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	copied.EncryptedTokens = append([]byte(nil), session.EncryptedTokens...)
	r.sessions[session.ID] = &copied
	return nil
}

// Get retrieves a session by ID
func (r *InMemoryRepo) Get(sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *session
	copied.EncryptedTokens = append([]byte(nil), session.EncryptedTokens...)
	return &copied, nil
}

// Delete removes a session; deleting an absent record is not an error
func (r *InMemoryRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

// DeleteExpired removes every record with expiry at or before cutoff
func (r *InMemoryRepo) DeleteExpired(cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if !session.ExpiresAt.After(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored records
func (r *InMemoryRepo) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), nil
}
