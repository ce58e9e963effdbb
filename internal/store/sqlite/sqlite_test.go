package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/seralabs/tokend/internal/permission"
	"github.com/seralabs/tokend/internal/store/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "tokend.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seed(t *testing.T, st *Store) (*core.User, *core.Client) {
	t.Helper()
	ctx := context.Background()
	u, err := st.CreateUser(ctx, &core.User{
		ID:        uuid.NewString(),
		Email:     "alice@example.com",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	c, err := st.CreateClient(ctx, &core.Client{
		ID:        uuid.NewString(),
		Name:      "clientx",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return u, c
}

func TestOpenAppliesPragmas(t *testing.T) {
	st := newStore(t)

	var journalMode string
	require.NoError(t, st.db.QueryRow(`PRAGMA journal_mode`).Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, st.db.QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys))
	require.Equal(t, 1, foreignKeys)

	var busyTimeout int
	require.NoError(t, st.db.QueryRow(`PRAGMA busy_timeout`).Scan(&busyTimeout))
	require.Equal(t, 5000, busyTimeout)
}

func TestUserRoundTrip(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, &core.User{
		ID:           uuid.NewString(),
		Email:        "bob@example.com",
		FirstName:    "Bob",
		PasswordHash: "$argon2id$...",
		Has:          permission.Set{"users:self": {"read"}},
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)

	got, err := st.FindUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "Bob", got.FirstName)
	require.True(t, got.Has.Can("users:self", "read"))

	_, err = st.FindUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestDuplicateEmailIsConflict(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seed(t, st)

	_, err := st.CreateUser(ctx, &core.User{
		ID:        uuid.NewString(),
		Email:     "alice@example.com",
		CreatedAt: time.Now(),
	})
	require.ErrorIs(t, err, core.ErrConflict)
}

func TestClientLookupByName(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	_, c := seed(t, st)

	got, err := st.FindClientByName(ctx, "clientx")
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)
}

func TestTokenRoundTripAndUniqueness(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	u, c := seed(t, st)

	created := time.Now().Truncate(time.Millisecond)
	tok, err := st.CreateToken(ctx, &core.Token{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		ClientID:    c.ID,
		Access:      "acc-1",
		Refresh:     "ref-1",
		Created:     created,
		Accessible:  time.Hour,
		Refreshable: 30 * 24 * time.Hour,
		Has:         permission.Set{"tokens:x": {"read"}},
	})
	require.NoError(t, err)
	require.Equal(t, time.Hour, tok.Accessible)
	require.True(t, tok.Created.Equal(created.UTC()))

	byRefresh, err := st.FindTokenByRefresh(ctx, "ref-1")
	require.NoError(t, err)
	require.Equal(t, tok.ID, byRefresh.ID)

	byAccess, err := st.FindTokenByAccess(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, tok.ID, byAccess.ID)

	// second token for the same (user, client) violates uniqueness
	_, err = st.CreateToken(ctx, &core.Token{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		ClientID:    c.ID,
		Access:      "acc-2",
		Refresh:     "ref-2",
		Created:     time.Now(),
		Accessible:  time.Hour,
		Refreshable: time.Hour,
	})
	require.ErrorIs(t, err, core.ErrConflict)
}

func TestRenewTokenOptimisticConcurrency(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	u, c := seed(t, st)

	created := time.Now().Truncate(time.Millisecond)
	tok, err := st.CreateToken(ctx, &core.Token{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		ClientID:    c.ID,
		Access:      "acc-1",
		Refresh:     "ref-1",
		Created:     created,
		Accessible:  time.Hour,
		Refreshable: time.Hour,
	})
	require.NoError(t, err)

	renewedAt := created.Add(time.Hour)
	require.NoError(t, st.RenewToken(ctx, tok.ID, created, "acc-2", "ref-2", renewedAt))

	got, err := st.FindTokenByID(ctx, tok.ID)
	require.NoError(t, err)
	require.Equal(t, "acc-2", got.Access)
	require.Equal(t, "ref-2", got.Refresh)
	require.True(t, got.Created.Equal(renewedAt.UTC()))

	// the expectation is now stale; the row exists, so this is a conflict
	err = st.RenewToken(ctx, tok.ID, created, "acc-3", "ref-3", renewedAt.Add(time.Hour))
	require.ErrorIs(t, err, core.ErrConflict)

	// a renewal of a missing token is not found, not a conflict
	err = st.RenewToken(ctx, uuid.NewString(), created, "acc-4", "ref-4", renewedAt)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteToken(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	u, c := seed(t, st)

	tok, err := st.CreateToken(ctx, &core.Token{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		ClientID:    c.ID,
		Access:      "acc-1",
		Refresh:     "ref-1",
		Created:     time.Now(),
		Accessible:  time.Hour,
		Refreshable: time.Hour,
	})
	require.NoError(t, err)

	require.NoError(t, st.DeleteToken(ctx, tok.ID))
	require.ErrorIs(t, st.DeleteToken(ctx, tok.ID), core.ErrNotFound)
	_, err = st.FindTokenByID(ctx, tok.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}
