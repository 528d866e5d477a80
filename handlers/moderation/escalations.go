package moderation

import (
	"fmt"
	"strings"

	"modbot/model"
	"modbot/utils"
	"modbot/utils/database"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// BuildRule validates an escalation rule from command input. Mutes need a
// duration, kicks can't have one, bans without one are permanent.
func BuildRule(amount int, punishment model.PunishmentType, within, duration string) (model.EscalationRule, error) {
	rule := model.EscalationRule{Amount: amount, Punishment: punishment}
	if amount < 1 {
		return rule, errors.New("The amount must be at least 1.")
	}

	w, err := parseWindow(within)
	if err != nil {
		return rule, err
	}
	rule.Within = w

	duration = strings.TrimSpace(duration)
	switch punishment {
	case model.PunishmentMute:
		if duration == "" || strings.EqualFold(duration, Permanent) {
			return rule, errors.New("Mute escalations need a duration.")
		}
	case model.PunishmentKick:
		if duration != "" {
			return rule, errors.New("Kick escalations cannot have a duration.")
		}
		return rule, nil
	case model.PunishmentBan:
		if duration == "" || strings.EqualFold(duration, Permanent) {
			return rule, nil
		}
	default:
		return rule, errors.Errorf("%q can't be used as an escalation.", punishment)
	}

	d, err := parseDuration(duration)
	if err != nil {
		return rule, err
	}
	if *d < model.MinDuration {
		return rule, errors.New("The duration must be at least 1 second.")
	}
	if punishment == model.PunishmentMute && *d > model.MaxMuteDuration {
		return rule, errors.New("Mute duration must be 28 days or less.")
	}
	rule.Duration = *d
	return rule, nil
}

// DescribeRule renders a rule as one line of the /escalations view list.
func DescribeRule(rule model.EscalationRule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%d** warnings", rule.Amount)
	if rule.Bounded() {
		fmt.Fprintf(&b, " within %s", utils.FormatDuration(rule.Within))
	}
	fmt.Fprintf(&b, " → %s", rule.Punishment)
	switch {
	case rule.Duration > 0:
		fmt.Fprintf(&b, " for %s", utils.FormatDuration(rule.Duration))
	case rule.Punishment == model.PunishmentBan:
		b.WriteString(" (permanent)")
	}
	return b.String()
}

// HandleEscalations serves /escalations add|remove|view.
func (h *Handlers) HandleEscalations(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	level := utils.ManagerPermission
	if sub.Name == "view" {
		level = utils.EditorPermission
	}
	if _, _, ok := h.authorize(s, i, level); !ok {
		return
	}

	opts := options(sub.Options)
	source := model.RuleSource(opts.string("source"))
	if source != model.RuleSourceManual && source != model.RuleSourceAutoMod {
		utils.SendErrorResponse(s, i, "Unknown escalation source.")
		return
	}

	ctx, cancel := h.commandContext()
	defer cancel()
	rules := h.b.Store.Rules

	switch sub.Name {
	case "add":
		rule, err := BuildRule(opts.int("amount"), model.PunishmentType(opts.string("punishment")), opts.string("within"), opts.string("duration"))
		if err != nil {
			utils.SendErrorResponse(s, i, err.Error())
			return
		}
		err = rules.AddRule(ctx, i.GuildID, source, rule)
		if errors.Is(err, database.ErrDuplicateRule) {
			utils.SendErrorResponse(s, i, "An escalation with this amount and window already exists.")
			return
		}
		if err != nil {
			h.logger.Error("Failed to add escalation", zap.String("guild_id", i.GuildID), zap.Error(err))
			utils.SendErrorResponse(s, i, "Failed to save the escalation.")
			return
		}
		utils.SendEmbedResponse(s, i, &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Added %s escalation", source),
			Description: DescribeRule(rule),
			Color:       utils.ColorLift,
		}, nil, false)

	case "remove":
		within, err := parseWindow(opts.string("within"))
		if err != nil {
			utils.SendErrorResponse(s, i, err.Error())
			return
		}
		err = rules.RemoveRule(ctx, i.GuildID, source, opts.int("amount"), within)
		if errors.Is(err, database.ErrNotFound) {
			utils.SendErrorResponse(s, i, "No escalation with that amount and window exists.")
			return
		}
		if err != nil {
			h.logger.Error("Failed to remove escalation", zap.String("guild_id", i.GuildID), zap.Error(err))
			utils.SendErrorResponse(s, i, "Failed to remove the escalation.")
			return
		}
		utils.SendEmbedResponse(s, i, &discordgo.MessageEmbed{
			Title: fmt.Sprintf("Removed %s escalation", source),
			Color: utils.ColorLift,
		}, nil, false)

	case "view":
		list, err := rules.Rules(ctx, i.GuildID, source)
		if err != nil {
			h.logger.Error("Failed to list escalations", zap.String("guild_id", i.GuildID), zap.Error(err))
			utils.SendErrorResponse(s, i, "Failed to load the escalations.")
			return
		}
		desc := "There are no escalations."
		if len(list) > 0 {
			lines := make([]string, len(list))
			for n, rule := range list {
				lines[n] = DescribeRule(rule)
			}
			desc = strings.Join(lines, "\n")
		}
		utils.SendEmbedResponse(s, i, &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("%s escalations", strings.ToUpper(string(source[:1]))+string(source[1:])),
			Description: desc,
			Color:       utils.ColorEdit,
		}, nil, true)
	}
}
