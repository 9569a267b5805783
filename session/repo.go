package session

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned by repos when no record exists for an ID.
var ErrSessionNotFound = errors.New("session not found")

// Repo defines the backing store for session records. Single-record writes
// are atomic in both shipped implementations, which is all the concurrency
// the store requires: deletions are idempotent and reads lazily delete.
type Repo interface {
	// Upsert creates or replaces a session record
	Upsert(session *Session) error

	// Get retrieves a session by ID
	Get(sessionID string) (*Session, error)

	// Delete removes a session; absent records are not an error
	Delete(sessionID string) error

	// DeleteExpired removes every record with expiry at or before cutoff,
	// returning the number removed
	DeleteExpired(cutoff time.Time) (int, error)

	// Count returns the number of stored records, expired or not
	Count() (int, error)
}
