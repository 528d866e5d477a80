package defs

import "github.com/bwmarrin/discordgo"

var Status = &discordgo.ApplicationCommand{
	Name:        "status",
	Description: "Display bot and system status information",
}

var ReloadConfig = &discordgo.ApplicationCommand{
	Name:                     "reload-config",
	Description:              "Reload this server's moderation configuration",
	DefaultMemberPermissions: &moderatePermission,
}

var ModStats = &discordgo.ApplicationCommand{
	Name:                     "mod-stats",
	Description:              "Rank moderators by punishments issued",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "period",
			Description: "How far back to count, e.g. 7d (default) or 30d",
		},
	},
}
