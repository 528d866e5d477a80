package database

import (
	"context"
	"path/filepath"
	"testing"

	"modbot/model"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "modbot.db"))
	require.NoError(t, err)

	store, err := New(db, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func int64Ptr(v int64) *int64 { return &v }

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, Migrate(store.DB))
	require.NoError(t, Migrate(store.DB))
}

func TestOpenInMemory(t *testing.T) {
	t.Parallel()

	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store, err := New(db, 2)
	require.NoError(t, err)

	p := &model.Punishment{GuildID: "g", UserID: "u", ModeratorID: "m", Type: model.PunishmentWarn, Date: 1, Reason: "r"}
	require.NoError(t, store.Punishments.Create(context.Background(), p))

	n, err := store.Punishments.Count(context.Background(), PunishmentFilter{GuildID: "g"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
