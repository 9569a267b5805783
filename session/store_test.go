package session_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/learnhub/authgate/oauthclient"
	"github.com/learnhub/authgate/session"
	"github.com/learnhub/authgate/tokencrypt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	testIdentity = oauthclient.Identity{
		Subject: "idp-subject-42",
		Email:   "alice@org.eu",
		Name:    "Alice Example",
	}
	testTokens = oauthclient.TokenBundle{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
	testMeta = session.Metadata{
		UserAgent:  "go-test/1.0",
		RemoteAddr: "203.0.113.7",
	}
)

type storeFixture struct {
	repo  session.Repo
	store *session.Store
	now   *time.Time
}

func newStoreFixture(t *testing.T, options ...session.StoreOption) *storeFixture {
	t.Helper()

	cipher, err := tokencrypt.New("unit-test-session-secret")
	require.NoError(t, err)

	now := time.Now()
	repo := session.NewInMemoryRepo()
	options = append([]session.StoreOption{
		session.WithNowTime(func() time.Time { return now }),
	}, options...)

	store, err := session.NewStore(repo, cipher, zerolog.Nop(), options...)
	require.NoError(t, err)

	return &storeFixture{repo: repo, store: store, now: &now}
}

func TestCreateAndValidate(t *testing.T) {
	f := newStoreFixture(t)

	sess, err := f.store.Create(testIdentity, testTokens, testMeta)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, testIdentity.Email, sess.Email)
	require.Equal(t, f.now.Add(session.DefaultLifetime), sess.ExpiresAt)
	require.NotContains(t, string(sess.EncryptedTokens), "access-token")

	ok, identity, tokens := f.store.Validate(sess.ID)
	require.True(t, ok)
	require.Equal(t, testIdentity, *identity)
	require.Equal(t, testTokens.AccessToken, tokens.AccessToken)
	require.Equal(t, testTokens.RefreshToken, tokens.RefreshToken)
}

func TestSessionIDsAreUnguessableAndUnique(t *testing.T) {
	f := newStoreFixture(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		sess, err := f.store.Create(testIdentity, testTokens, testMeta)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(sess.ID), 43) // 32 random bytes, base64url
		require.False(t, seen[sess.ID])
		seen[sess.ID] = true
	}
}

func TestGetNeverReturnsExpiredSession(t *testing.T) {
	f := newStoreFixture(t, session.WithLifetime(time.Hour))

	sess, err := f.store.Create(testIdentity, testTokens, testMeta)
	require.NoError(t, err)

	*f.now = f.now.Add(2 * time.Hour)

	for i := 0; i < 3; i++ {
		_, err = f.store.Get(sess.ID)
		require.ErrorIs(t, err, session.ErrSessionNotFound)
	}

	// Lazy deletion already removed the record from storage
	_, err = f.repo.Get(sess.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestValidateFailsClosedOnTamperedCiphertext(t *testing.T) {
	f := newStoreFixture(t)

	sess, err := f.store.Create(testIdentity, testTokens, testMeta)
	require.NoError(t, err)

	for i := range sess.EncryptedTokens {
		tampered := *sess
		tampered.EncryptedTokens = append([]byte(nil), sess.EncryptedTokens...)
		tampered.EncryptedTokens[i] ^= 0x01
		require.NoError(t, f.repo.Upsert(&tampered))

		ok, identity, tokens := f.store.Validate(sess.ID)
		require.False(t, ok, "bit flip at byte %d must invalidate the session", i)
		require.Nil(t, identity)
		require.Nil(t, tokens)

		// Restore for the next flip
		require.NoError(t, f.repo.Upsert(sess))
	}
}

func TestValidateUnknownSession(t *testing.T) {
	f := newStoreFixture(t)

	ok, identity, tokens := f.store.Validate("no-such-session")
	require.False(t, ok)
	require.Nil(t, identity)
	require.Nil(t, tokens)

	ok, _, _ = f.store.Validate("")
	require.False(t, ok)
}

func TestRefreshReplacesTokenBundleOnly(t *testing.T) {
	f := newStoreFixture(t)

	sess, err := f.store.Create(testIdentity, testTokens, testMeta)
	require.NoError(t, err)

	refreshed := testTokens
	refreshed.AccessToken = "rotated-access-token"
	require.NoError(t, f.store.Refresh(sess.ID, refreshed))

	ok, identity, tokens := f.store.Validate(sess.ID)
	require.True(t, ok)
	require.Equal(t, "rotated-access-token", tokens.AccessToken)
	require.Equal(t, testIdentity.Email, identity.Email)

	stored, err := f.repo.Get(sess.ID)
	require.NoError(t, err)
	require.Equal(t, sess.ExpiresAt, stored.ExpiresAt, "refresh must not extend the session")
}

func TestInvalidateIsIdempotent(t *testing.T) {
	f := newStoreFixture(t)

	sess, err := f.store.Create(testIdentity, testTokens, testMeta)
	require.NoError(t, err)

	require.True(t, f.store.Invalidate(sess.ID))
	require.True(t, f.store.Invalidate(sess.ID), "double logout must succeed")
	require.True(t, f.store.Invalidate("never-existed"))

	ok, _, _ := f.store.Validate(sess.ID)
	require.False(t, ok)
}

func TestCleanupExpiredRemovesExactlyTheExpired(t *testing.T) {
	f := newStoreFixture(t, session.WithLifetime(time.Hour))

	expired, err := f.store.Create(testIdentity, testTokens, testMeta)
	require.NoError(t, err)

	*f.now = f.now.Add(30 * time.Minute)
	live, err := f.store.Create(testIdentity, testTokens, testMeta)
	require.NoError(t, err)

	*f.now = f.now.Add(45 * time.Minute) // expired is 75m old, live is 45m old

	require.Equal(t, 1, f.store.CleanupExpired())
	require.Equal(t, 0, f.store.CleanupExpired(), "second sweep finds nothing")

	_, err = f.repo.Get(expired.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound)

	ok, _, _ := f.store.Validate(live.ID)
	require.True(t, ok)
}

func TestTouchUpdatesLastSeen(t *testing.T) {
	f := newStoreFixture(t)

	sess, err := f.store.Create(testIdentity, testTokens, testMeta)
	require.NoError(t, err)

	*f.now = f.now.Add(10 * time.Minute)
	f.store.Touch(sess.ID, session.Metadata{UserAgent: "other-agent/2.0"})

	stored, err := f.repo.Get(sess.ID)
	require.NoError(t, err)
	require.Equal(t, *f.now, stored.LastSeenAt)
	require.Equal(t, "other-agent/2.0", stored.UserAgent)
	require.Equal(t, testMeta.RemoteAddr, stored.RemoteAddr)
}

func TestFileRepoPersistsSessionsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	cipher, err := tokencrypt.New("unit-test-session-secret")
	require.NoError(t, err)

	repo, err := session.NewFileRepo(path)
	require.NoError(t, err)
	store, err := session.NewStore(repo, cipher, zerolog.Nop())
	require.NoError(t, err)

	sess, err := store.Create(testIdentity, testTokens, testMeta)
	require.NoError(t, err)

	reopened, err := session.NewFileRepo(path)
	require.NoError(t, err)
	store2, err := session.NewStore(reopened, cipher, zerolog.Nop())
	require.NoError(t, err)

	ok, identity, tokens := store2.Validate(sess.ID)
	require.True(t, ok)
	require.Equal(t, testIdentity.Email, identity.Email)
	require.Equal(t, testTokens.AccessToken, tokens.AccessToken)
}
