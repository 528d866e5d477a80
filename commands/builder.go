package commands

import (
	"modbot/commands/defs"

	"github.com/bwmarrin/discordgo"
)

// GenerateCommands returns the slash commands registered in every guild.
func GenerateCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		defs.Warn,
		defs.Mute,
		defs.Kick,
		defs.Ban,
		defs.Unmute,
		defs.Unban,
		defs.ChangeReason,
		defs.ChangeDuration,
		defs.RemovePunishment,
		defs.RemoveAllPunishments,
		defs.Punishments,
		defs.Escalations,
		defs.ModStats,
		defs.Status,
		defs.ReloadConfig,
	}
}
