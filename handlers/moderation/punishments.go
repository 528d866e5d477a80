package moderation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"modbot/model"
	"modbot/utils"
	"modbot/utils/database"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	// PunishmentsPrefix is the custom id prefix of the list's page buttons.
	PunishmentsPrefix  = "punishments"
	punishmentsPerPage = 5
)

// listMode encodes the automod filter in page button ids.
func listMode(automod *bool) string {
	switch {
	case automod == nil:
		return "all"
	case *automod:
		return "automod"
	}
	return "manual"
}

func parseListMode(mode string) *bool {
	switch mode {
	case "automod":
		v := true
		return &v
	case "manual":
		v := false
		return &v
	}
	return nil
}

// punishmentsPage builds one page of a user's punishment list, newest first.
func (h *Handlers) punishmentsPage(ctx context.Context, guildID, userID string, automod *bool, page int) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	filter := database.PunishmentFilter{GuildID: guildID, UserID: userID, Automod: automod}
	total, err := h.b.Store.Punishments.Count(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	pages := utils.TotalPages(total, punishmentsPerPage)
	page = min(max(page, 1), pages)

	list, err := h.b.Store.Punishments.FindMany(ctx, filter, database.NewestFirst, database.Page{
		Limit:  punishmentsPerPage,
		Offset: (page - 1) * punishmentsPerPage,
	})
	if err != nil {
		return nil, nil, err
	}

	embed := PunishmentListEmbed(userID, list, total)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d of %d", page, pages)}
	return embed, utils.CreatePaginationComponents(page, pages, PunishmentsPrefix, userID, listMode(automod)), nil
}

// PunishmentListEmbed renders punishments as embed fields.
func PunishmentListEmbed(userID string, list []model.Punishment, total int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Punishments",
		Description: fmt.Sprintf("<@%s> has %d punishments.", userID, total),
		Color:       utils.ColorEdit,
	}
	if total == 0 {
		embed.Description = fmt.Sprintf("<@%s> has no punishments.", userID)
	}

	for _, p := range list {
		var b strings.Builder
		fmt.Fprintf(&b, "**Moderator:** <@%s>\n", p.ModeratorID)
		fmt.Fprintf(&b, "**Date:** <t:%d:f>\n", p.Date/1000)
		if p.Expires != nil {
			fmt.Fprintf(&b, "**Expires:** <t:%d:R>\n", *p.Expires/1000)
		}
		fmt.Fprintf(&b, "**Reason:** %s", truncate(p.Reason, 300))

		name := fmt.Sprintf("%s · `%s`", p.Type, p.ID)
		if p.Automod {
			name += " · automod"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: name, Value: b.String()})
	}
	return embed
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// HandlePunishments serves /punishments.
func (h *Handlers) HandlePunishments(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if _, _, ok := h.authorize(s, i, utils.EditorPermission); !ok {
		return
	}
	opts := options(i.ApplicationCommandData().Options)

	ctx, cancel := h.commandContext()
	defer cancel()

	embed, components, err := h.punishmentsPage(ctx, i.GuildID, opts.userID("user"), opts.optionalBool("automod"), 1)
	if err != nil {
		h.logger.Error("Failed to list punishments", zap.String("guild_id", i.GuildID), zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to load punishments.")
		return
	}
	utils.SendEmbedResponse(s, i, embed, components, true)
}

// HandlePunishmentsPage serves the list's page buttons, punishments:<page>:<user>:<mode>.
func (h *Handlers) HandlePunishmentsPage(s *discordgo.Session, i *discordgo.InteractionCreate) {
	page, userID, automod, err := parsePageID(i.MessageComponentData().CustomID)
	if err != nil {
		return
	}
	if _, _, ok := h.authorize(s, i, utils.EditorPermission); !ok {
		return
	}

	ctx, cancel := h.commandContext()
	defer cancel()

	embed, components, err := h.punishmentsPage(ctx, i.GuildID, userID, automod, page)
	if err != nil {
		h.logger.Error("Failed to page punishments", zap.String("guild_id", i.GuildID), zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to load punishments.")
		return
	}
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
}

func parsePageID(customID string) (page int, userID string, automod *bool, err error) {
	parts := strings.Split(customID, ":")
	if len(parts) != 4 || parts[0] != PunishmentsPrefix {
		return 0, "", nil, errors.Errorf("malformed page id %q", customID)
	}
	page, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", nil, errors.Wrapf(err, "malformed page id %q", customID)
	}
	return page, parts[2], parseListMode(parts[3]), nil
}
