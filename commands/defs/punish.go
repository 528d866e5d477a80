package defs

import "github.com/bwmarrin/discordgo"

var moderatePermission int64 = discordgo.PermissionModerateMembers

func userOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: description,
		Required:    true,
	}
}

func reasonOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "The reason, shown to the user and in the logs",
		Required:    required,
		MaxLength:   3500,
	}
}

func durationOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "duration",
		Description: description,
		Required:    required,
	}
}

var silentOption = &discordgo.ApplicationCommandOption{
	Type:        discordgo.ApplicationCommandOptionBoolean,
	Name:        "silent",
	Description: "Don't DM the user",
}

var infoOption = &discordgo.ApplicationCommandOption{
	Type:        discordgo.ApplicationCommandOptionString,
	Name:        "info",
	Description: "Additional information for the DM, replacing the server default",
	MaxLength:   1000,
}

var Warn = &discordgo.ApplicationCommand{
	Name:                     "warn",
	Description:              "Warn a member",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The member to warn"),
		reasonOption(true),
		durationOption("How long the warning counts, e.g. 30d, or 'permanent'", false),
		silentOption,
		infoOption,
	},
}

var Mute = &discordgo.ApplicationCommand{
	Name:                     "mute",
	Description:              "Time out a member",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The member to mute"),
		reasonOption(true),
		durationOption("How long, e.g. 10m or 2 days (28 days at most)", false),
		silentOption,
		infoOption,
	},
}

var Kick = &discordgo.ApplicationCommand{
	Name:                     "kick",
	Description:              "Kick a member",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The member to kick"),
		reasonOption(true),
		silentOption,
		infoOption,
	},
}

var Ban = &discordgo.ApplicationCommand{
	Name:                     "ban",
	Description:              "Ban a user",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The user to ban"),
		reasonOption(true),
		durationOption("How long, e.g. 7d, or 'permanent'", false),
		silentOption,
		infoOption,
	},
}

var Unmute = &discordgo.ApplicationCommand{
	Name:                     "unmute",
	Description:              "Remove a member's timeout",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The member to unmute"),
		reasonOption(true),
		silentOption,
	},
}

var Unban = &discordgo.ApplicationCommand{
	Name:                     "unban",
	Description:              "Lift a user's ban",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		userOption("The user to unban"),
		reasonOption(true),
		silentOption,
	},
}
