package database

import (
	"context"
	"sync"
	"testing"

	"modbot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskUpsertKeepsOneRowPerKey(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u1", GuildID: "g1", Type: model.PunishmentMute, Expires: 1000}))
	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u1", GuildID: "g1", Type: model.PunishmentMute, Expires: 2000}))
	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u1", GuildID: "g1", Type: model.PunishmentBan, Expires: 3000}))

	n, err := store.Tasks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	task, err := store.Tasks.Get(ctx, model.TaskKey{UserID: "u1", GuildID: "g1", Type: model.PunishmentMute})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), task.Expires)
}

func TestTaskConcurrentUpserts(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(expires int64) {
			defer wg.Done()
			assert.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u1", GuildID: "g1", Type: model.PunishmentMute, Expires: expires}))
		}(int64(1000 + i))
	}
	wg.Wait()

	n, err := store.Tasks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTaskFindDueIsInclusiveAndGrouped(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u1", GuildID: "g1", Type: model.PunishmentMute, Expires: 100}))
	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u2", GuildID: "g1", Type: model.PunishmentBan, Expires: 50}))
	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u3", GuildID: "g2", Type: model.PunishmentMute, Expires: 99}))
	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u4", GuildID: "g2", Type: model.PunishmentMute, Expires: 101}))

	due, err := store.Tasks.FindDue(ctx, 100)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Len(t, due["g1"], 2)
	require.Len(t, due["g2"], 1)
	assert.Equal(t, "u3", due["g2"][0].UserID)
}

func TestTaskDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	key := model.TaskKey{UserID: "u1", GuildID: "g1", Type: model.PunishmentBan}

	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u1", GuildID: "g1", Type: model.PunishmentBan, Expires: 10}))

	ok, err := store.Tasks.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Tasks.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Tasks.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTaskConsumeAndRescheduleAreConditional(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	read := model.Task{UserID: "u1", GuildID: "g1", Type: model.PunishmentMute, Expires: 100}
	require.NoError(t, store.Tasks.Upsert(ctx, read))

	// someone extends the mute after the sweep read the row
	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u1", GuildID: "g1", Type: model.PunishmentMute, Expires: 500}))

	ok, err := store.Tasks.Consume(ctx, read)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Tasks.Reschedule(ctx, read, 900)
	require.NoError(t, err)
	assert.False(t, ok)

	current := model.Task{UserID: "u1", GuildID: "g1", Type: model.PunishmentMute, Expires: 500}
	ok, err = store.Tasks.Reschedule(ctx, current, 900)
	require.NoError(t, err)
	assert.True(t, ok)

	current.Expires = 900
	ok, err = store.Tasks.Consume(ctx, current)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := store.Tasks.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTaskDeleteDueByType(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u1", GuildID: "g1", Type: model.PunishmentBan, Expires: 10}))
	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u2", GuildID: "g1", Type: model.PunishmentMute, Expires: 10}))
	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{UserID: "u3", GuildID: "g1", Type: model.PunishmentBan, Expires: 1000}))

	n, err := store.Tasks.DeleteDue(ctx, "g1", 100, model.PunishmentBan)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Tasks.DeleteDue(ctx, "g1", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := store.Tasks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}
