package moderation

import (
	"context"
	"fmt"
	"strings"

	"modbot/model"
	"modbot/punish"
	"modbot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Issue returns the handler for /warn, /mute, /kick, /ban, /unmute and /unban.
func (h *Handlers) Issue(t model.PunishmentType) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		cfg, _, ok := h.authorize(s, i, utils.EditorPermission)
		if !ok {
			return
		}

		opts := options(i.ApplicationCommandData().Options)
		userID := opts.userID("user")
		if userID == invoker(i) {
			utils.SendErrorResponse(s, i, "You can't punish yourself.")
			return
		}
		if userID == h.b.BotID() {
			utils.SendErrorResponse(s, i, "I can't punish myself.")
			return
		}

		duration, err := ResolveDuration(t, opts.string("duration"), cfg.Punishments)
		if err != nil {
			utils.SendErrorResponse(s, i, err.Error())
			return
		}

		if err := utils.DeferResponse(s, i, false); err != nil {
			h.logger.Warn("Failed to defer interaction", zap.Error(err))
			return
		}

		req := punish.IssueRequest{
			GuildID:     i.GuildID,
			UserID:      userID,
			ModeratorID: invoker(i),
			Type:        t,
			Duration:    duration,
			Reason:      opts.string("reason"),
			Silent:      opts.bool("silent"),
			CustomInfo:  opts.string("info"),
		}

		ctx, cancel := h.commandContext()
		defer cancel()

		var res *punish.IssueResult
		err = utils.RunExclusive(ctx, i.GuildID, "punish "+userID, func(ctx context.Context) error {
			var err error
			res, err = h.b.Issuer.Issue(ctx, req)
			return err
		})
		if err != nil {
			h.fail(s, i, string(t), err)
			return
		}
		utils.SendFollowUp(s, i.Interaction, DescribeIssue(res))
	}
}

// DescribeIssue renders the moderator-facing summary of an issued punishment.
func DescribeIssue(res *punish.IssueResult) string {
	p := res.Punishment

	var b strings.Builder
	fmt.Fprintf(&b, "✅ <@%s> has been %s", p.UserID, p.Type.PastTense())
	if p.Expires != nil {
		fmt.Fprintf(&b, " for %s", utils.FormatDuration(p.Duration()))
	}
	fmt.Fprintf(&b, ". (ID `%s`)", p.ID)

	if res.Enforcement.Failed() {
		fmt.Fprintf(&b, "\n⚠️ The punishment was recorded, but I couldn't %s them.", strings.ToLower(verbFor(p.Type)))
	}
	if res.Notification.Failed() {
		b.WriteString("\n⚠️ I couldn't DM them about it.")
	}
	if res.Task.Failed() {
		b.WriteString("\n⚠️ The expiry couldn't be scheduled. Remove it manually when it's over.")
	}

	if res.Rule != nil {
		switch {
		case res.EscalationErr != nil:
			if msg, ok := punish.UserMessage(res.EscalationErr); ok {
				fmt.Fprintf(&b, "\n⚠️ This warning triggered an escalation that could not be applied: %s", msg)
			} else {
				b.WriteString("\n⚠️ This warning triggered an escalation that could not be applied.")
			}
		case res.Escalation != nil:
			e := res.Escalation.Punishment
			fmt.Fprintf(&b, "\n⏫ Escalated: they have also been %s", e.Type.PastTense())
			if e.Expires != nil {
				fmt.Fprintf(&b, " for %s", utils.FormatDuration(e.Duration()))
			}
			fmt.Fprintf(&b, ". (ID `%s`)", e.ID)
		}
	}
	return b.String()
}

func verbFor(t model.PunishmentType) string {
	switch t {
	case model.PunishmentMute:
		return "mute"
	case model.PunishmentKick:
		return "kick"
	case model.PunishmentBan:
		return "ban"
	case model.PunishmentUnmute:
		return "unmute"
	case model.PunishmentUnban:
		return "unban"
	}
	return "warn"
}
