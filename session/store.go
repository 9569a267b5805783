package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/learnhub/authgate/oauthclient"
	"github.com/learnhub/authgate/tokencrypt"
)

const (
	sessionIDBytes = 32

	// DefaultLifetime is used when the configured lifetime is zero.
	DefaultLifetime = 7 * 24 * time.Hour
)

// Store owns the session lifecycle: creation after a successful login,
// validation on every request, explicit invalidation on logout, and expiry
// cleanup both lazily on lookup and in batch sweeps.
type Store struct {
	repo     Repo
	cipher   *tokencrypt.Cipher
	lifetime time.Duration
	log      zerolog.Logger
	nowTime  func() time.Time
}

// StoreOption modifies a Store instance.
type StoreOption func(*Store)

// WithLifetime overrides the default session lifetime.
func WithLifetime(lifetime time.Duration) StoreOption {
	return func(s *Store) {
		if lifetime > 0 {
			s.lifetime = lifetime
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// NewStore creates a Store over the given repo and token cipher.
func NewStore(repo Repo, cipher *tokencrypt.Cipher, log zerolog.Logger, options ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, pkgerrors.New("[session.NewStore] repo is required")
	}
	if cipher == nil {
		return nil, pkgerrors.New("[session.NewStore] cipher is required")
	}

	s := &Store{
		repo:     repo,
		cipher:   cipher,
		lifetime: DefaultLifetime,
		log:      log,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Create persists a new session for identity with the token bundle sealed.
// The caller transmits the returned ID as an HTTP-only cookie; it is never
// exposed to script-accessible storage.
func (s *Store) Create(identity oauthclient.Identity, tokens oauthclient.TokenBundle, meta Metadata) (*Session, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, pkgerrors.Wrap(err, "[Store.Create] rand.Read")
	}
	sessionID := base64.RawURLEncoding.EncodeToString(b)

	sealed, err := s.sealTokens(tokens)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Store.Create] seal tokens")
	}

	now := s.nowTime()
	sess := &Session{
		ID:              sessionID,
		Subject:         identity.Subject,
		Email:           identity.Email,
		Name:            identity.Name,
		Picture:         identity.Picture,
		EncryptedTokens: sealed,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.lifetime),
		LastSeenAt:      now,
		UserAgent:       meta.UserAgent,
		RemoteAddr:      meta.RemoteAddr,
	}

	if err := s.repo.Upsert(sess); err != nil {
		return nil, pkgerrors.Wrap(err, "[Store.Create] repo.Upsert")
	}
	return sess, nil
}

// Get looks up a session, lazily deleting and hiding it when expired.
func (s *Store) Get(sessionID string) (*Session, error) {
	sess, err := s.repo.Get(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if !sess.ExpiresAt.After(s.nowTime()) {
		_ = s.repo.Delete(sessionID)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Validate resolves a session ID into its identity and decrypted token
// bundle. Every failure mode, including a tampered or corrupted ciphertext,
// yields (false, nil, nil): a session that cannot be trusted is simply absent.
func (s *Store) Validate(sessionID string) (bool, *oauthclient.Identity, *oauthclient.TokenBundle) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return false, nil, nil
	}

	plaintext, err := s.cipher.Decrypt(sess.EncryptedTokens)
	if err != nil {
		s.log.Warn().Str("session_id", sessionID).Msg("session token bundle failed integrity check, dropping session")
		_ = s.repo.Delete(sessionID)
		return false, nil, nil
	}

	var tokens oauthclient.TokenBundle
	if err := json.Unmarshal(plaintext, &tokens); err != nil {
		s.log.Warn().Str("session_id", sessionID).Msg("session token bundle unreadable, dropping session")
		_ = s.repo.Delete(sessionID)
		return false, nil, nil
	}

	identity := &oauthclient.Identity{
		Subject: sess.Subject,
		Email:   sess.Email,
		Name:    sess.Name,
		Picture: sess.Picture,
	}
	return true, identity, &tokens
}

// Refresh replaces the session's sealed token bundle after a provider
// refresh. Session identity and expiry are untouched.
func (s *Store) Refresh(sessionID string, tokens oauthclient.TokenBundle) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}

	sealed, err := s.sealTokens(tokens)
	if err != nil {
		return pkgerrors.Wrap(err, "[Store.Refresh] seal tokens")
	}
	sess.EncryptedTokens = sealed

	if err := s.repo.Upsert(sess); err != nil {
		return pkgerrors.Wrap(err, "[Store.Refresh] repo.Upsert")
	}
	return nil
}

// Touch updates last-seen metadata. Best effort; lookup races with expiry
// or logout are ignored.
func (s *Store) Touch(sessionID string, meta Metadata) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return
	}
	sess.LastSeenAt = s.nowTime()
	if meta.UserAgent != "" {
		sess.UserAgent = meta.UserAgent
	}
	if meta.RemoteAddr != "" {
		sess.RemoteAddr = meta.RemoteAddr
	}
	_ = s.repo.Upsert(sess)
}

// Invalidate deletes a session. Idempotent: logout is always safe to call
// twice, so an already-absent session still reports success.
func (s *Store) Invalidate(sessionID string) bool {
	if sessionID == "" {
		return true
	}
	return s.repo.Delete(sessionID) == nil
}

// CleanupExpired batch-deletes every expired session. Runs concurrently with
// live validation without coordination; both sides agree on the expiry
// predicate and deletion is idempotent.
func (s *Store) CleanupExpired() int {
	removed, err := s.repo.DeleteExpired(s.nowTime())
	if err != nil {
		s.log.Warn().Err(err).Msg("session cleanup sweep failed")
		return 0
	}
	return removed
}

// Now returns the store's current time, honoring WithNowTime so callers
// checking token expiry agree with the store's own clock.
func (s *Store) Now() time.Time {
	return s.nowTime()
}

// Count reports the number of stored sessions, expired or not.
func (s *Store) Count() int {
	n, _ := s.repo.Count()
	return n
}

func (s *Store) sealTokens(tokens oauthclient.TokenBundle) ([]byte, error) {
	plaintext, err := json.Marshal(tokens)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "json.Marshal")
	}
	return s.cipher.Encrypt(plaintext)
}
