package punish

import (
	"fmt"

	"modbot/model"
	"modbot/utils"
)

// SelectEscalation returns the rule that history triggers at now.
//
// history must hold only the relevant warning population (manual or automod)
// ordered newest first. Rules are folded in order with Supersedes, starting from
// an empty rule; the result is deterministic for a given input.
func SelectEscalation(history []model.Punishment, rules []model.EscalationRule, now int64) (model.EscalationRule, bool) {
	if len(history) == 0 {
		return model.EscalationRule{}, false
	}

	var best model.EscalationRule
	for _, curr := range rules {
		if Supersedes(curr, best, history, now) {
			best = curr
		}
	}

	if best.Amount == 0 {
		return model.EscalationRule{}, false
	}
	return best, true
}

// Supersedes reports whether curr replaces prev as the best matching rule.
//
// curr needs at least curr.Amount warnings and a threshold no lower than prev's.
// A windowed rule must be tighter than prev's window (an unbounded prev counts as
// infinite) and the curr.Amount-th newest warning must fall inside it, inclusive.
// An unbounded rule only wins on a different threshold.
func Supersedes(curr, prev model.EscalationRule, history []model.Punishment, now int64) bool {
	if curr.Amount < 1 || len(history) < curr.Amount {
		return false
	}
	if curr.Amount < prev.Amount {
		return false
	}

	if !curr.Bounded() {
		return curr.Amount != prev.Amount
	}

	if prev.Bounded() && curr.Within >= prev.Within {
		return false
	}
	return now-history[curr.Amount-1].Date <= curr.Within
}

// EscalationReason is the reason recorded on an escalation punishment.
func EscalationReason(rule model.EscalationRule, automod bool) string {
	reason := fmt.Sprintf("Receiving %s strikes", utils.NumberWords(rule.Amount))
	if rule.Bounded() {
		reason += " within a period of " + utils.HumanizeDuration(rule.Within)
	}
	reason += "."
	if automod {
		reason = "[Automod] " + reason
	}
	return reason
}
