// Package allowlist is the persistent registry of individually authorized
// users outside the organizational domain. Removal is a soft delete so that
// re-adding an email reactivates its existing record instead of creating a
// duplicate.
package allowlist

import (
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
)

// Entry is one allow-list record. At most one entry exists per email.
type Entry struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Store wraps a Repo with the allow-list business rules.
type Store struct {
	repo    Repo
	nowTime func() time.Time
}

// StoreOption modifies a Store instance.
type StoreOption func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// NewStore creates a Store over the given backing repo.
func NewStore(repo Repo, options ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, pkgerrors.New("[allowlist.NewStore] repo is required")
	}
	s := &Store{
		repo:    repo,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// AddOrReactivate upserts by the natural key. An existing record for the
// email, whether soft-deleted, expired, or still active, is mutated in place;
// a new record is created only when none exists. This keeps the
// one-record-per-email invariant structural rather than incidental.
func (s *Store) AddOrReactivate(email string, expiresAt *time.Time, note string) (*Entry, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New("[Store.AddOrReactivate] email is required")
	}

	now := s.nowTime()

	entry, err := s.repo.GetByEmail(email)
	if err != nil {
		entry = &Entry{
			ID:        uuid.New().String(),
			Email:     email,
			CreatedAt: now,
		}
	}

	entry.Active = true
	entry.ExpiresAt = expiresAt
	if note != "" {
		entry.Note = note
	}
	entry.UpdatedAt = now

	if err := s.repo.Upsert(entry); err != nil {
		return nil, pkgerrors.Wrap(err, "[Store.AddOrReactivate] repo.Upsert")
	}
	return entry, nil
}

// Remove soft-deletes the entry for email. Returns false when no entry
// exists; calling it again on a removed entry is a no-op.
func (s *Store) Remove(email string) bool {
	entry, err := s.repo.GetByEmail(NormalizeEmail(email))
	if err != nil {
		return false
	}
	entry.Active = false
	entry.UpdatedAt = s.nowTime()
	return s.repo.Upsert(entry) == nil
}

// IsCurrentlyAllowed reports whether email has an active, unexpired entry.
func (s *Store) IsCurrentlyAllowed(email string) bool {
	entry, err := s.repo.GetByEmail(NormalizeEmail(email))
	if err != nil {
		return false
	}
	if !entry.Active {
		return false
	}
	if entry.ExpiresAt != nil && !entry.ExpiresAt.After(s.nowTime()) {
		return false
	}
	return true
}

// List returns every entry, including soft-deleted ones, for the admin API.
func (s *Store) List() ([]*Entry, error) {
	entries, err := s.repo.List()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Store.List] repo.List")
	}
	return entries, nil
}

// NormalizeEmail lower-cases and trims an email so lookups by natural key
// are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
