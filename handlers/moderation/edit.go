package moderation

import (
	"context"
	"fmt"
	"strings"

	"modbot/punish"
	"modbot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// begin authorizes the invoker and defers an ephemeral response. The
// confirmation prompt later replaces it.
func (h *Handlers) begin(s *discordgo.Session, i *discordgo.InteractionCreate, level utils.PermissionLevel) (utils.PermissionLevel, optionMap, bool) {
	_, got, ok := h.authorize(s, i, level)
	if !ok {
		return got, nil, false
	}
	if err := utils.DeferResponse(s, i, true); err != nil {
		h.logger.Warn("Failed to defer interaction", zap.Error(err))
		return got, nil, false
	}
	return got, options(i.ApplicationCommandData().Options), true
}

// HandleChangeReason serves /change-reason.
func (h *Handlers) HandleChangeReason(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_, opts, ok := h.begin(s, i, utils.EditorPermission)
	if !ok {
		return
	}

	ctx, cancel := h.commandContext()
	defer cancel()

	res, err := h.b.Manager.ChangeReason(ctx, punish.ChangeReasonRequest{
		GuildID:      i.GuildID,
		PunishmentID: strings.TrimSpace(opts.string("id")),
		ModeratorID:  invoker(i),
		Reason:       opts.string("reason"),
		Silent:       opts.bool("silent"),
		Confirmer:    h.confirms.Confirmer(s, i),
	})
	if err != nil {
		h.fail(s, i, "change-reason", err)
		return
	}
	utils.SendFollowUp(s, i.Interaction, fmt.Sprintf("✅ Updated the reason of punishment `%s`.", res.Edit.Punishment.ID)+editWarnings(res))
}

// HandleChangeDuration serves /change-duration.
func (h *Handlers) HandleChangeDuration(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_, opts, ok := h.begin(s, i, utils.EditorPermission)
	if !ok {
		return
	}

	var duration *int64
	if input := opts.string("duration"); !strings.EqualFold(strings.TrimSpace(input), Permanent) {
		d, err := parseDuration(input)
		if err != nil {
			utils.SendFollowUpError(s, i.Interaction, err.Error())
			return
		}
		duration = d
	}

	ctx, cancel := h.commandContext()
	defer cancel()

	res, err := h.b.Manager.ChangeDuration(ctx, punish.ChangeDurationRequest{
		GuildID:      i.GuildID,
		PunishmentID: strings.TrimSpace(opts.string("id")),
		ModeratorID:  invoker(i),
		Duration:     duration,
		Reason:       opts.string("reason"),
		Silent:       opts.bool("silent"),
		Confirmer:    h.confirms.Confirmer(s, i),
	})
	if err != nil {
		h.fail(s, i, "change-duration", err)
		return
	}

	msg := fmt.Sprintf("✅ Punishment `%s` is now permanent.", res.Edit.Punishment.ID)
	if duration != nil {
		msg = fmt.Sprintf("✅ Punishment `%s` now expires <t:%d:R>.", res.Edit.Punishment.ID, *res.Edit.NewExpiration/1000)
	}
	utils.SendFollowUp(s, i.Interaction, msg+editWarnings(res))
}

// HandleRemovePunishment serves /remove-punishment.
func (h *Handlers) HandleRemovePunishment(s *discordgo.Session, i *discordgo.InteractionCreate) {
	level, opts, ok := h.begin(s, i, utils.EditorPermission)
	if !ok {
		return
	}

	ctx, cancel := h.commandContext()
	defer cancel()

	id := strings.TrimSpace(opts.string("id"))
	res, err := h.b.Manager.DeletePunishment(ctx, punish.DeleteRequest{
		GuildID:      i.GuildID,
		PunishmentID: id,
		ModeratorID:  invoker(i),
		Reason:       opts.string("reason"),
		Undo:         opts.bool("undo"),
		Silent:       opts.bool("silent"),
		IsManager:    level >= utils.ManagerPermission,
		Confirmer:    h.confirms.Confirmer(s, i),
	})
	if err != nil {
		h.fail(s, i, "remove-punishment", err)
		return
	}

	msg := fmt.Sprintf("✅ Removed punishment `%s`.", id)
	switch {
	case res.UndoErr != nil:
		if m, ok := punish.UserMessage(res.UndoErr); ok {
			msg += "\n⚠️ It could not be undone: " + m
		} else {
			msg += "\n⚠️ It could not be undone."
		}
	case res.Undo != nil:
		msg += fmt.Sprintf("\n↩️ The %s has been lifted.", strings.ToLower(string(res.Edit.Punishment.Type)))
		if res.Undo.Enforcement.Failed() {
			msg += " The record was written, but the platform refused the change."
		}
	}
	utils.SendFollowUp(s, i.Interaction, msg+editWarnings(res))
}

// HandleRemoveAllPunishments serves /remove-all-punishments. It is
// serialized per guild.
func (h *Handlers) HandleRemoveAllPunishments(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_, opts, ok := h.begin(s, i, utils.ManagerPermission)
	if !ok {
		return
	}

	ctx, cancel := h.commandContext()
	defer cancel()

	userID := opts.userID("user")
	var res *punish.BulkDeleteResult
	err := utils.RunExclusive(ctx, i.GuildID, "remove-all-punishments", func(ctx context.Context) error {
		var err error
		res, err = h.b.Manager.DeleteAllPunishments(ctx, punish.DeleteAllRequest{
			GuildID:     i.GuildID,
			UserID:      userID,
			ModeratorID: invoker(i),
			Reason:      opts.string("reason"),
			Automod:     opts.bool("automod"),
			Confirmer:   h.confirms.Confirmer(s, i),
		})
		return err
	})
	if err != nil {
		h.fail(s, i, "remove-all-punishments", err)
		return
	}

	msg := fmt.Sprintf("✅ Removed %d punishments of <@%s>.", len(res.Deleted), userID)
	if res.Task.Failed() {
		msg += "\n⚠️ Some pending expiries could not be cleared."
	}
	utils.SendFollowUp(s, i.Interaction, msg)
}

func editWarnings(res *punish.EditResult) string {
	var b strings.Builder
	if res.Enforcement.Failed() {
		b.WriteString("\n⚠️ The record was updated, but the platform refused the change.")
	}
	if res.Task.Failed() {
		b.WriteString("\n⚠️ The expiry couldn't be rescheduled.")
	}
	if res.Notification.Failed() {
		b.WriteString("\n⚠️ I couldn't DM the user about it.")
	}
	return b.String()
}
