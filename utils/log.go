package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modbot/model"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

// LogLevel is the severity of a system log entry.
type LogLevel string

const (
	Info  LogLevel = "INFO"
	Warn  LogLevel = "WARN"
	Error LogLevel = "ERROR"
)

func getColor(level LogLevel) int {
	switch level {
	case Info:
		return 3066993 // Green
	case Warn:
		return 15105570 // Orange
	case Error:
		return 15158332 // Red
	default:
		return 3447003 // Blue
	}
}

// SendSystemLog posts an operational message to the bot's own log channel.
func SendSystemLog(ctx context.Context, s *discordgo.Session, channelID string, level LogLevel, module, operation, extraInfo string) error {
	if channelID == "" {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title: string(level) + " Log",
		Color: getColor(level),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Module", Value: module, Inline: true},
			{Name: "Operation", Value: operation, Inline: true},
			{Name: "Details", Value: extraInfo},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	_, err := s.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return errors.WrapIf(err, "failed to send system log")
}

// ChannelAuditLog writes punishment and edit entries to the guild's log channels.
type ChannelAuditLog struct {
	session *discordgo.Session
	guilds  GuildConfigs
}

// NewChannelAuditLog creates a ChannelAuditLog.
func NewChannelAuditLog(s *discordgo.Session, guilds GuildConfigs) *ChannelAuditLog {
	return &ChannelAuditLog{session: s, guilds: guilds}
}

// LogPunishment posts p to the punishment log channel. trigger is the message
// content that caused an automod punishment.
func (l *ChannelAuditLog) LogPunishment(ctx context.Context, p model.Punishment, trigger string) error {
	cfg, err := l.guilds.Guild(p.GuildID)
	if err != nil {
		return err
	}
	if cfg.Logging.PunishmentChannelID == "" {
		return nil
	}
	_, err = l.session.ChannelMessageSendEmbed(cfg.Logging.PunishmentChannelID, PunishmentLogEmbed(p, trigger), discordgo.WithContext(ctx))
	return errors.WrapIf(err, "failed to send punishment log")
}

// LogEdit posts edit to the edit log channel, falling back to the punishment log channel.
func (l *ChannelAuditLog) LogEdit(ctx context.Context, edit model.PunishmentEdit) error {
	cfg, err := l.guilds.Guild(edit.Punishment.GuildID)
	if err != nil {
		return err
	}
	channelID := cfg.Logging.EditChannelID
	if channelID == "" {
		channelID = cfg.Logging.PunishmentChannelID
	}
	if channelID == "" {
		return nil
	}
	_, err = l.session.ChannelMessageSendEmbed(channelID, EditLogEmbed(edit), discordgo.WithContext(ctx))
	return errors.WrapIf(err, "failed to send edit log")
}

// PunishmentLogEmbed renders a punishment for the log channel.
func PunishmentLogEmbed(p model.Punishment, trigger string) *discordgo.MessageEmbed {
	title := string(p.Type)
	if p.Automod {
		title = "[Automod] " + title
	}

	embed := &discordgo.MessageEmbed{
		Title: title,
		Color: PunishmentColor(p.Type),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (%s)", p.UserID, p.UserID), Inline: true},
			{Name: "Moderator", Value: fmt.Sprintf("<@%s>", p.ModeratorID), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Punishment ID: " + p.ID},
		Timestamp: time.UnixMilli(p.Date).UTC().Format(time.RFC3339),
	}
	if p.Expires != nil {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Duration", Value: FormatDuration(p.Duration()), Inline: true},
			&discordgo.MessageEmbedField{Name: "Expires", Value: fmt.Sprintf("<t:%d:f>", *p.Expires/1000), Inline: true},
		)
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Reason", Value: p.Reason})
	if trigger != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Message", Value: truncate(trigger, 1000)})
	}
	return embed
}

// EditLogEmbed renders an edit for the log channel.
func EditLogEmbed(edit model.PunishmentEdit) *discordgo.MessageEmbed {
	p := edit.Punishment
	embed := &discordgo.MessageEmbed{
		Color: EditColor(edit.Kind),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (%s)", p.UserID, p.UserID), Inline: true},
			{Name: "Moderator", Value: fmt.Sprintf("<@%s>", edit.ModeratorID), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	switch edit.Kind {
	case model.EditReason:
		embed.Title = "Reason changed"
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Old reason", Value: edit.OldReason},
			&discordgo.MessageEmbedField{Name: "New reason", Value: edit.NewReason},
		)
	case model.EditExpiration:
		embed.Title = "Duration changed"
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Old expiry", Value: formatExpiry(edit.OldExpiration), Inline: true},
			&discordgo.MessageEmbedField{Name: "New expiry", Value: formatExpiry(edit.NewExpiration), Inline: true},
		)
	case model.EditDelete:
		embed.Title = "Punishment removed"
		if edit.Undone {
			embed.Title += " and undone"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Type", Value: string(p.Type), Inline: true})
	case model.EditBulkDelete:
		kind := "manual"
		if p.Automod {
			kind = "automod"
		}
		embed.Title = fmt.Sprintf("Removed %d %s punishments", len(edit.DeletedIDs), kind)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "IDs",
			Value: truncate(strings.Join(edit.DeletedIDs, ", "), 1000),
		})
	}

	if edit.EditReason != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Edit reason", Value: edit.EditReason})
	}
	if p.ID != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Punishment ID: " + p.ID}
	}
	return embed
}

func formatExpiry(ms *int64) string {
	if ms == nil {
		return "Never"
	}
	return fmt.Sprintf("<t:%d:f>", *ms/1000)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
