// Package authstate issues and validates the single-use CSRF state tokens
// that bind an OAuth login attempt to the browser session that started it.
package authstate

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// ErrInvalidState is returned when a presented state token is unknown,
// already consumed, or older than the registry TTL.
var ErrInvalidState = errors.New("invalid state")

const (
	stateTokenBytes = 32

	// DefaultTTL bounds how long a login attempt may sit between the
	// redirect to the identity provider and the callback.
	DefaultTTL = 10 * time.Minute
)

// Registry issues opaque state tokens and validates them exactly once.
type Registry struct {
	repo    Repo
	ttl     time.Duration
	nowTime func() time.Time
}

// RegistryOption modifies a Registry instance.
type RegistryOption func(*Registry)

// WithTTL overrides the default state lifetime.
func WithTTL(ttl time.Duration) RegistryOption {
	return func(reg *Registry) {
		reg.ttl = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RegistryOption {
	return func(reg *Registry) {
		reg.nowTime = nowFunc
	}
}

// NewRegistry creates a Registry over the given backing repo.
func NewRegistry(repo Repo, options ...RegistryOption) (*Registry, error) {
	if repo == nil {
		return nil, pkgerrors.New("[NewRegistry] repo is required")
	}

	reg := &Registry{
		repo:    repo,
		ttl:     DefaultTTL,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(reg)
	}
	return reg, nil
}

// Issue creates a fresh state token bound to returnURL.
func (reg *Registry) Issue(returnURL string) (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", pkgerrors.Wrap(err, "[Registry.Issue] rand.Read")
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	if err := reg.repo.Upsert(state, &Entry{
		ReturnURL: returnURL,
		CreatedAt: reg.nowTime(),
	}); err != nil {
		return "", pkgerrors.Wrap(err, "[Registry.Issue] repo.Upsert")
	}
	return state, nil
}

// Consume validates and burns a state token. Consumption is atomic: a token
// that validated once is gone, even if the first request is still in flight.
func (reg *Registry) Consume(state string) (*Entry, error) {
	if state == "" {
		return nil, ErrInvalidState
	}

	entry, err := reg.repo.Consume(state)
	if err != nil {
		return nil, ErrInvalidState
	}

	if reg.nowTime().Sub(entry.CreatedAt) > reg.ttl {
		return nil, ErrInvalidState
	}
	return entry, nil
}

// Sweep drops entries past the TTL. The per-lookup TTL check already rejects
// them; this just bounds registry growth.
func (reg *Registry) Sweep() int {
	removed, _ := reg.repo.DeleteOlderThan(reg.nowTime().Add(-reg.ttl))
	return removed
}
