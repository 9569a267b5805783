package authstate

import "time"

// Entry binds an issued CSRF state token to the login attempt that created it.
type Entry struct {
	ReturnURL string
	CreatedAt time.Time
}

// Repo defines the backing store for CSRF state entries. The in-memory
// implementation covers single-instance deployments; a shared cache can back
// multi-instance deployments without changing the Registry.
type Repo interface {
	// Upsert stores or replaces an entry
	Upsert(state string, entry *Entry) error

	// Consume atomically retrieves and deletes an entry, so a state token
	// can never validate twice
	Consume(state string) (*Entry, error)

	// DeleteOlderThan removes entries created before cutoff, returning the
	// number removed
	DeleteOlderThan(cutoff time.Time) (int, error)
}
