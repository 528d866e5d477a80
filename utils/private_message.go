package utils

import (
	"context"
	"fmt"
	"strings"

	"modbot/model"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

// GuildConfigs supplies per-guild configuration.
type GuildConfigs interface {
	Guild(guildID string) (*model.GuildConfig, error)
}

// DMNotifier tells users about punishments through direct messages.
type DMNotifier struct {
	session *discordgo.Session
	guilds  GuildConfigs
}

// NewDMNotifier creates a DMNotifier.
func NewDMNotifier(s *discordgo.Session, guilds GuildConfigs) *DMNotifier {
	return &DMNotifier{session: s, guilds: guilds}
}

// NotifyPunishment DMs the punished user. customInfo replaces the guild's
// additional info for the punishment type when set.
func (n *DMNotifier) NotifyPunishment(ctx context.Context, p model.Punishment, customInfo string) error {
	info := customInfo
	if info == "" {
		if cfg, err := n.guilds.Guild(p.GuildID); err == nil {
			info = cfg.Punishments.AdditionalInfo.For(p.Type)
		}
	}
	return SendPrivateEmbedMessage(ctx, n.session, p.UserID, PunishmentDM(GuildName(n.session, p.GuildID), p, info))
}

// NotifyEdit DMs the user about a change to one of their punishments.
func (n *DMNotifier) NotifyEdit(ctx context.Context, edit model.PunishmentEdit) error {
	embed := EditDM(GuildName(n.session, edit.Punishment.GuildID), edit)
	if embed == nil {
		return nil
	}
	return SendPrivateEmbedMessage(ctx, n.session, edit.Punishment.UserID, embed)
}

// GuildName returns the cached name of a guild, or its id.
func GuildName(s *discordgo.Session, guildID string) string {
	if s != nil && s.State != nil {
		if g, err := s.State.Guild(guildID); err == nil && g.Name != "" {
			return g.Name
		}
	}
	return guildID
}

// PunishmentDM builds the message sent to a punished user.
func PunishmentDM(guildName string, p model.Punishment, info string) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("You have been %s in **%s**", p.Type.PastTense(), guildName)
	if p.Expires != nil && p.Type != model.PunishmentWarn {
		desc += " for " + FormatDuration(p.Duration())
	}
	desc += "."

	embed := &discordgo.MessageEmbed{
		Title:       strings.ToUpper(p.Type.PastTense()[:1]) + p.Type.PastTense()[1:],
		Description: desc,
		Color:       PunishmentColor(p.Type),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: p.Reason},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Punishment ID: " + p.ID},
	}
	if p.Expires != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Expires",
			Value: fmt.Sprintf("<t:%d:R>", *p.Expires/1000),
		})
	}
	if info != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Additional information", Value: info})
	}
	return embed
}

// EditDM builds the message sent when a punishment is edited. Bulk deletions
// are not sent.
func EditDM(guildName string, edit model.PunishmentEdit) *discordgo.MessageEmbed {
	p := edit.Punishment
	typ := strings.ToLower(string(p.Type))
	embed := &discordgo.MessageEmbed{
		Color:  EditColor(edit.Kind),
		Footer: &discordgo.MessageEmbedFooter{Text: "Punishment ID: " + p.ID},
	}

	switch edit.Kind {
	case model.EditReason:
		embed.Title = "Punishment updated"
		embed.Description = fmt.Sprintf("The reason for your %s in **%s** was changed.", typ, guildName)
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Old reason", Value: edit.OldReason},
			{Name: "New reason", Value: edit.NewReason},
		}
	case model.EditExpiration:
		embed.Title = "Punishment updated"
		if edit.NewExpiration == nil {
			embed.Description = fmt.Sprintf("Your %s in **%s** is now permanent.", typ, guildName)
		} else {
			embed.Description = fmt.Sprintf("Your %s in **%s** now expires <t:%d:R>.", typ, guildName, *edit.NewExpiration/1000)
		}
	case model.EditDelete:
		embed.Title = "Punishment removed"
		embed.Description = fmt.Sprintf("Your %s in **%s** was removed.", typ, guildName)
		if edit.Undone {
			if rev, ok := p.Type.Reversal(); ok {
				embed.Description += fmt.Sprintf(" You have also been %s.", rev.PastTense())
			}
		}
	default:
		return nil
	}

	if edit.EditReason != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Reason", Value: edit.EditReason})
	}
	return embed
}

// SendPrivateEmbedMessage sends a direct message with an embed to a user.
func SendPrivateEmbedMessage(ctx context.Context, s *discordgo.Session, userID string, embed *discordgo.MessageEmbed) error {
	channel, err := s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, "failed to open private channel with user %s", userID)
	}
	if _, err := s.ChannelMessageSendEmbed(channel.ID, embed, discordgo.WithContext(ctx)); err != nil {
		return errors.Wrapf(err, "failed to send private message to user %s", userID)
	}
	return nil
}
