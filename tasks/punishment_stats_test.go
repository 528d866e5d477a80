package tasks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"modbot/model"
	"modbot/utils/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePunishmentStatsEmbed(t *testing.T) {
	t.Parallel()

	db, err := database.Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	store, err := database.New(db, 1)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	now := time.UnixMilli(10 * 24 * 3600 * 1000)
	recent := now.Add(-time.Hour).UnixMilli()
	old := now.Add(-30 * 24 * time.Hour).UnixMilli()

	for _, p := range []model.Punishment{
		{ModeratorID: "m1", Type: model.PunishmentWarn, Date: recent},
		{ModeratorID: "m1", Type: model.PunishmentMute, Date: recent},
		{ModeratorID: "m2", Type: model.PunishmentKick, Date: recent},
		{ModeratorID: "m2", Type: model.PunishmentWarn, Date: old},
		{ModeratorID: "m1", Type: model.PunishmentUnmute, Date: recent},
		{ModeratorID: "bot", Type: model.PunishmentWarn, Date: recent, Automod: true},
	} {
		p.GuildID, p.UserID, p.Reason = "g1", "u1", "r"
		require.NoError(t, store.Punishments.Create(ctx, &p))
	}

	embed, err := GeneratePunishmentStatsEmbed(ctx, store.Punishments, "g1", "bot", 7*24*time.Hour, now)
	require.NoError(t, err)
	assert.Contains(t, embed.Description, "last 1 week")
	assert.Contains(t, embed.Description, "**Total: 4** (1 by automod)")
	assert.Contains(t, embed.Description, "1. <@m1>: 2\n2. <@m2>: 1\n")
	assert.NotContains(t, embed.Description, "<@bot>")

	empty, err := GeneratePunishmentStatsEmbed(ctx, store.Punishments, "g2", "bot", time.Hour, now)
	require.NoError(t, err)
	assert.Contains(t, empty.Description, "No moderator")
}
