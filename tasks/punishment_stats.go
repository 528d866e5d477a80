package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modbot/model"
	"modbot/utils"
	"modbot/utils/database"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

// ModeratorCounter is the store query behind the moderator leaderboard.
type ModeratorCounter interface {
	Count(ctx context.Context, filter database.PunishmentFilter) (int, error)
	ModeratorCounts(ctx context.Context, guildID string, since int64, excludeModeratorID string) ([]database.ModeratorCount, error)
}

var forwardTypes = []model.PunishmentType{
	model.PunishmentWarn,
	model.PunishmentMute,
	model.PunishmentKick,
	model.PunishmentBan,
}

// maxLeaderboardRows keeps the embed under the description limit.
const maxLeaderboardRows = 25

// GeneratePunishmentStatsEmbed ranks the guild's moderators by punishments
// issued over the last window. Automod actions by botID are counted only in
// the total.
func GeneratePunishmentStatsEmbed(ctx context.Context, store ModeratorCounter, guildID, botID string, window time.Duration, now time.Time) (*discordgo.MessageEmbed, error) {
	since := now.Add(-window).UnixMilli()

	counts, err := store.ModeratorCounts(ctx, guildID, since, botID)
	if err != nil {
		return nil, err
	}

	filter := database.PunishmentFilter{GuildID: guildID, DateAtOrAfter: &since, Types: forwardTypes}
	total, err := store.Count(ctx, filter)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to count punishments")
	}
	automod := true
	filter.Automod = &automod
	automated, err := store.Count(ctx, filter)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to count automod punishments")
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "### Punishments in the last %s\n", utils.FormatDuration(window.Milliseconds()))
	fmt.Fprintf(&builder, "**Total: %d** (%d by automod)\n\n", total, automated)

	if len(counts) == 0 {
		builder.WriteString("No moderator has punished anyone in this period.")
	}
	for i, c := range counts {
		if i == maxLeaderboardRows {
			fmt.Fprintf(&builder, "…and %d more", len(counts)-maxLeaderboardRows)
			break
		}
		fmt.Fprintf(&builder, "%d. <@%s>: %d\n", i+1, c.ModeratorID, c.Count)
	}

	return &discordgo.MessageEmbed{
		Title:       "Moderator leaderboard",
		Description: builder.String(),
		Timestamp:   now.Format(time.RFC3339),
		Color:       utils.ColorEdit,
	}, nil
}
