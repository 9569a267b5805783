package allowlist_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/learnhub/authgate/allowlist"
	"github.com/learnhub/authgate/internal/utils"
	"github.com/stretchr/testify/require"
)

const testEmail = "guest@external.com"

func newTestStore(t *testing.T, options ...allowlist.StoreOption) (*allowlist.Store, allowlist.Repo) {
	t.Helper()
	repo := allowlist.NewInMemoryRepo()
	store, err := allowlist.NewStore(repo, options...)
	require.NoError(t, err)
	return store, repo
}

func TestAddThenAllowed(t *testing.T) {
	store, _ := newTestStore(t)

	entry, err := store.AddOrReactivate(testEmail, nil, "course beta tester")
	require.NoError(t, err)
	require.True(t, entry.Active)
	require.NotEmpty(t, entry.ID)

	require.True(t, store.IsCurrentlyAllowed(testEmail))
}

func TestUnknownEmailNotAllowed(t *testing.T) {
	store, _ := newTestStore(t)
	require.False(t, store.IsCurrentlyAllowed("nobody@external.com"))
}

func TestRemoveIsSoftDelete(t *testing.T) {
	store, repo := newTestStore(t)

	_, err := store.AddOrReactivate(testEmail, nil, "")
	require.NoError(t, err)

	require.True(t, store.Remove(testEmail))
	require.False(t, store.IsCurrentlyAllowed(testEmail))

	// Record survives removal with its history intact
	entry, err := repo.GetByEmail(testEmail)
	require.NoError(t, err)
	require.False(t, entry.Active)

	// Removing again is a safe no-op
	require.True(t, store.Remove(testEmail))
	require.False(t, store.Remove("never-added@external.com"))
}

func TestReactivationUpdatesInPlace(t *testing.T) {
	store, repo := newTestStore(t)

	original, err := store.AddOrReactivate(testEmail, nil, "first run")
	require.NoError(t, err)

	require.True(t, store.Remove(testEmail))

	reactivated, err := store.AddOrReactivate(testEmail, nil, "second run")
	require.NoError(t, err)

	require.True(t, store.IsCurrentlyAllowed(testEmail))
	require.Equal(t, original.ID, reactivated.ID, "reactivation must reuse the existing record")
	require.Equal(t, original.CreatedAt, reactivated.CreatedAt)

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1, "exactly one record per email")

	entry, err := repo.GetByEmail(testEmail)
	require.NoError(t, err)
	require.True(t, entry.Active)
}

func TestExpirationDeactivatesIndependently(t *testing.T) {
	now := time.Now()
	store, _ := newTestStore(t, allowlist.WithNowTime(func() time.Time { return now }))

	_, err := store.AddOrReactivate(testEmail, utils.Ptr(now.Add(24*time.Hour)), "")
	require.NoError(t, err)
	require.True(t, store.IsCurrentlyAllowed(testEmail))

	// Entry stays active but expires
	now = now.Add(25 * time.Hour)
	require.False(t, store.IsCurrentlyAllowed(testEmail))

	// Re-adding an expired entry reactivates with a fresh expiration
	_, err = store.AddOrReactivate(testEmail, utils.Ptr(now.Add(24*time.Hour)), "")
	require.NoError(t, err)
	require.True(t, store.IsCurrentlyAllowed(testEmail))

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestEmailLookupIsCaseInsensitive(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.AddOrReactivate("Guest@External.COM", nil, "")
	require.NoError(t, err)
	require.True(t, store.IsCurrentlyAllowed("guest@external.com"))

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileRepoPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")

	repo, err := allowlist.NewFileRepo(path)
	require.NoError(t, err)
	store, err := allowlist.NewStore(repo)
	require.NoError(t, err)

	_, err = store.AddOrReactivate(testEmail, nil, "persisted")
	require.NoError(t, err)
	require.True(t, store.Remove(testEmail))

	reopened, err := allowlist.NewFileRepo(path)
	require.NoError(t, err)

	entry, err := reopened.GetByEmail(testEmail)
	require.NoError(t, err)
	require.False(t, entry.Active)
	require.Equal(t, "persisted", entry.Note)

	// Reactivation works against the reloaded document too
	store2, err := allowlist.NewStore(reopened)
	require.NoError(t, err)
	_, err = store2.AddOrReactivate(testEmail, nil, "")
	require.NoError(t, err)
	require.True(t, store2.IsCurrentlyAllowed(testEmail))

	entries, err := store2.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
