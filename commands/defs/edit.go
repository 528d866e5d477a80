package defs

import "github.com/bwmarrin/discordgo"

var idOption = &discordgo.ApplicationCommandOption{
	Type:        discordgo.ApplicationCommandOptionString,
	Name:        "id",
	Description: "The punishment ID",
	Required:    true,
}

var ChangeReason = &discordgo.ApplicationCommand{
	Name:                     "change-reason",
	Description:              "Change the reason of a punishment",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		idOption,
		reasonOption(true),
		silentOption,
	},
}

var ChangeDuration = &discordgo.ApplicationCommand{
	Name:                     "change-duration",
	Description:              "Change how long a warning, mute or ban lasts, counted from now",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		idOption,
		durationOption("The new duration, or 'permanent'", true),
		reasonOption(false),
		silentOption,
	},
}

var RemovePunishment = &discordgo.ApplicationCommand{
	Name:                     "remove-punishment",
	Description:              "Delete a punishment",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		idOption,
		reasonOption(true),
		{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        "undo",
			Description: "Also lift the ban or mute",
		},
		silentOption,
	},
}

var RemoveAllPunishments = &discordgo.ApplicationCommand{
	Name:                     "remove-all-punishments",
	Description:              "Delete all manual or all automod punishments of a user",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The user whose punishments to delete"),
		reasonOption(true),
		{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        "automod",
			Description: "Delete automod punishments instead of manual ones",
		},
	},
}

var Punishments = &discordgo.ApplicationCommand{
	Name:                     "punishments",
	Description:              "List a user's punishments",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The user to look up"),
		{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        "automod",
			Description: "Only automod punishments (true) or only manual ones (false)",
		},
	},
}
