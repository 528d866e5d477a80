package defs

import "github.com/bwmarrin/discordgo"

var sourceOption = &discordgo.ApplicationCommandOption{
	Type:        discordgo.ApplicationCommandOptionString,
	Name:        "source",
	Description: "Which warnings the rule counts",
	Required:    true,
	Choices: []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Manual warnings", Value: "manual"},
		{Name: "Automod warnings", Value: "automod"},
	},
}

var amountMin = float64(1)

var amountOption = &discordgo.ApplicationCommandOption{
	Type:        discordgo.ApplicationCommandOptionInteger,
	Name:        "amount",
	Description: "Number of warnings",
	Required:    true,
	MinValue:    &amountMin,
	MaxValue:    100,
}

var withinOption = &discordgo.ApplicationCommandOption{
	Type:        discordgo.ApplicationCommandOptionString,
	Name:        "within",
	Description: "Only count warnings from this period, e.g. 1d",
}

var Escalations = &discordgo.ApplicationCommand{
	Name:                     "escalations",
	Description:              "Manage automatic punishments for repeated warnings",
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "add",
			Description: "Add an escalation rule",
			Options: []*discordgo.ApplicationCommandOption{
				sourceOption,
				amountOption,
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "punishment",
					Description: "What to do once the amount is reached",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Mute", Value: "Mute"},
						{Name: "Kick", Value: "Kick"},
						{Name: "Ban", Value: "Ban"},
					},
				},
				withinOption,
				durationOption("Duration of the mute or ban", false),
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "remove",
			Description: "Remove an escalation rule",
			Options: []*discordgo.ApplicationCommandOption{
				sourceOption,
				amountOption,
				withinOption,
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "view",
			Description: "List the escalation rules",
			Options: []*discordgo.ApplicationCommandOption{
				sourceOption,
			},
		},
	},
}
