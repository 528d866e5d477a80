package model

import "time"

// Config holds process-wide settings.
type Config struct {
	BotToken       string
	AppID          string
	LogChannelID   string
	DatabasePath   string
	GuildConfigDir string
	LogLevel       string
	LogFormat      string
	MetricsAddr    string
	SweepInterval  time.Duration
	SweepWorkers   int
	LockTTL        time.Duration
	// DeveloperUserIDs may run every command in every guild.
	DeveloperUserIDs []string
}

// AdditionalInfo is appended to the DM sent for each punishment type.
type AdditionalInfo struct {
	Warn string `mapstructure:"warn"`
	Mute string `mapstructure:"mute"`
	Kick string `mapstructure:"kick"`
	Ban  string `mapstructure:"ban"`
}

// For returns the additional info configured for t.
func (a AdditionalInfo) For(t PunishmentType) string {
	switch t {
	case PunishmentWarn:
		return a.Warn
	case PunishmentMute:
		return a.Mute
	case PunishmentKick:
		return a.Kick
	case PunishmentBan:
		return a.Ban
	}
	return ""
}

// PunishmentDefaults are applied when a moderator gives no duration.
// Durations are human strings ("7d"); empty or "0" disables the default.
type PunishmentDefaults struct {
	WarnDuration   string         `mapstructure:"default_warn_duration"`
	MuteDuration   string         `mapstructure:"default_mute_duration"`
	BanDuration    string         `mapstructure:"default_ban_duration"`
	AdditionalInfo AdditionalInfo `mapstructure:"additional_info"`
}

// LoggingConfig names the channels that receive punishment and edit logs.
type LoggingConfig struct {
	PunishmentChannelID string `mapstructure:"punishment_channel_id"`
	EditChannelID       string `mapstructure:"edit_channel_id"`
}

// AutomodFilter issues an automod punishment when a message matches.
type AutomodFilter struct {
	Name           string         `mapstructure:"name"`
	Words          []string       `mapstructure:"words"`
	BlockLinks     bool           `mapstructure:"block_links"`
	Punishment     PunishmentType `mapstructure:"punishment"`
	Duration       string         `mapstructure:"duration"`
	Reason         string         `mapstructure:"reason"`
	ImmuneRoles    []string       `mapstructure:"immune_roles"`
	ImmuneChannels []string       `mapstructure:"immune_channels"`
}

// GuildConfig is the per-guild moderation configuration.
type GuildConfig struct {
	GuildID        string
	Punishments    PunishmentDefaults `mapstructure:"punishments"`
	Logging        LoggingConfig      `mapstructure:"logging"`
	EditorRoleIDs  []string           `mapstructure:"editor_role_ids"`
	ManagerRoleIDs []string           `mapstructure:"manager_role_ids"`
	Automod        []AutomodFilter    `mapstructure:"automod"`
}
