package handlers

import (
	"context"
	"time"

	"modbot/bot"
	"modbot/tasks"
	"modbot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const defaultStatsPeriod = 7 * 24 * time.Hour

func handleModStats(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if i.Member == nil {
		return
	}
	cfg, err := b.Guilds.Guild(i.GuildID)
	if err != nil {
		utils.SendErrorResponse(s, i, "This server's configuration could not be loaded.")
		return
	}
	isAdmin := i.Member.Permissions&discordgo.PermissionAdministrator != 0
	if utils.CheckPermission(i.Member.Roles, i.Member.User.ID, isAdmin, cfg, b.Config.DeveloperUserIDs) < utils.EditorPermission {
		utils.SendErrorResponse(s, i, "You do not have permission to use this command.")
		return
	}

	period := defaultStatsPeriod
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name != "period" {
			continue
		}
		ms, ok := utils.ParseDuration(opt.StringValue())
		if !ok || ms <= 0 {
			utils.SendErrorResponse(s, i, "That is not a valid period. Try something like 7d or 30d.")
			return
		}
		period = time.Duration(ms) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	embed, err := tasks.GeneratePunishmentStatsEmbed(ctx, b.Store.Punishments, i.GuildID, b.BotID(), period, time.Now())
	if err != nil {
		b.Logger.Error("Failed to build moderator stats", zap.String("guild_id", i.GuildID), zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to load moderator statistics.")
		return
	}
	utils.SendEmbedResponse(s, i, embed, nil, false)
}
