package handlers

import (
	"modbot/bot"
	"modbot/commands"
	"modbot/handlers/moderation"
	"modbot/model"
	"modbot/utils"

	"github.com/bwmarrin/discordgo"
)

// Register installs the slash commands, component handlers and the automod listener.
func Register(b *bot.Bot) {
	confirms := moderation.NewConfirmations()
	mod := moderation.New(b, confirms)

	b.Commands = commands.GenerateCommands
	b.CommandHandlers = map[string]bot.Handler{
		"warn":                   mod.Issue(model.PunishmentWarn),
		"mute":                   mod.Issue(model.PunishmentMute),
		"kick":                   mod.Issue(model.PunishmentKick),
		"ban":                    mod.Issue(model.PunishmentBan),
		"unmute":                 mod.Issue(model.PunishmentUnmute),
		"unban":                  mod.Issue(model.PunishmentUnban),
		"change-reason":          mod.HandleChangeReason,
		"change-duration":        mod.HandleChangeDuration,
		"remove-punishment":      mod.HandleRemovePunishment,
		"remove-all-punishments": mod.HandleRemoveAllPunishments,
		"punishments":            mod.HandlePunishments,
		"escalations":            mod.HandleEscalations,
		"mod-stats": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handleModStats(s, i, b)
		},
		"status": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			StatusHandler(s, i, b)
		},
		"reload-config": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			handleReloadConfig(s, i, b)
		},
	}
	b.ComponentHandlers = map[string]bot.Handler{
		moderation.ConfirmPrefix:     confirms.HandleButton,
		moderation.PunishmentsPrefix: mod.HandlePunishmentsPage,
	}

	am := &automod{b: b, logger: b.Logger.Named("automod")}
	b.Session.AddHandler(am.onMessage)
}

func handleReloadConfig(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	if i.Member == nil {
		return
	}
	cfg, err := b.Guilds.Guild(i.GuildID)
	if err != nil {
		utils.SendErrorResponse(s, i, "This server's configuration could not be loaded.")
		return
	}
	isAdmin := i.Member.Permissions&discordgo.PermissionAdministrator != 0
	if utils.CheckPermission(i.Member.Roles, i.Member.User.ID, isAdmin, cfg, b.Config.DeveloperUserIDs) < utils.ManagerPermission {
		utils.SendErrorResponse(s, i, "You do not have permission to use this command.")
		return
	}

	b.ReloadConfig()
	utils.SendEmbedResponse(s, i, &discordgo.MessageEmbed{
		Description: "✅ Configuration reloaded.",
		Color:       utils.ColorLift,
	}, nil, true)
}
