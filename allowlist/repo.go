package allowlist

import "errors"

// ErrEntryNotFound is returned by repos when no entry exists for an email.
var ErrEntryNotFound = errors.New("allow-list entry not found")

// Repo defines the backing store for allow-list entries, keyed by email.
type Repo interface {
	// GetByEmail retrieves the entry for an email, soft-deleted or not
	GetByEmail(email string) (*Entry, error)

	// Upsert creates or replaces the entry for entry.Email
	Upsert(entry *Entry) error

	// List returns all entries
	List() ([]*Entry, error)
}
