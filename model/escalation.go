package model

// RuleSource selects which warning population an escalation list applies to.
type RuleSource string

const (
	RuleSourceManual  RuleSource = "manual"
	RuleSourceAutoMod RuleSource = "automod"
)

// EscalationRule triggers an extra punishment once Amount warnings have been
// collected, optionally within the last Within milliseconds.
// Within == 0 means no window. Duration == 0 means permanent or not applicable.
type EscalationRule struct {
	Amount     int            `db:"amount" json:"amount"`
	Within     int64          `db:"within_ms" json:"within"`
	Punishment PunishmentType `db:"punishment" json:"punishment"`
	Duration   int64          `db:"duration_ms" json:"duration"`
}

// Bounded reports whether the rule has a time window.
func (r EscalationRule) Bounded() bool {
	return r.Within != 0
}
