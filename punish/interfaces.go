package punish

import (
	"context"
	"time"

	"modbot/model"
	"modbot/utils/database"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Enforcer applies punishments on the platform. Every call may fail
// independently of the punishment record.
type Enforcer interface {
	Ban(ctx context.Context, guildID, userID, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	// Timeout mutes the member until the given time. A nil until lifts the timeout.
	Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error
	Unban(ctx context.Context, guildID, userID, reason string) error
	// CanEnforce reports whether the bot holds the permission needed for t in the guild.
	CanEnforce(ctx context.Context, guildID string, t model.PunishmentType) (bool, error)
}

// Members looks up live member state.
type Members interface {
	// MemberTimeout returns the member's current timeout, if any. present is false
	// when the user is not in the guild.
	MemberTimeout(ctx context.Context, guildID, userID string) (until *time.Time, present bool, err error)
}

// Notifier sends direct messages to punished users.
type Notifier interface {
	NotifyPunishment(ctx context.Context, p model.Punishment, customInfo string) error
	NotifyEdit(ctx context.Context, edit model.PunishmentEdit) error
}

// AuditLog records punishments and edits for staff.
type AuditLog interface {
	LogPunishment(ctx context.Context, p model.Punishment, trigger string) error
	LogEdit(ctx context.Context, edit model.PunishmentEdit) error
}

// Confirmer asks the acting moderator to approve a dangerous change.
// It returns false when the moderator declines or ctx expires.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// PunishmentStore is the subset of the punishment store the engine uses.
type PunishmentStore interface {
	Create(ctx context.Context, p *model.Punishment) error
	FindByID(ctx context.Context, id string) (*model.Punishment, error)
	Update(ctx context.Context, id string, patch database.PunishmentPatch) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, filter database.PunishmentFilter) (int, error)
	DeleteMany(ctx context.Context, filter database.PunishmentFilter) ([]model.Punishment, error)
	// WarnHistory must return warnings newest first.
	WarnHistory(ctx context.Context, guildID, userID string, automod bool, excludeModeratorID string) ([]model.Punishment, error)
}

// TaskStore is the subset of the task store the engine uses.
type TaskStore interface {
	Upsert(ctx context.Context, task model.Task) error
	Delete(ctx context.Context, key model.TaskKey) (bool, error)
}

// RuleStore supplies a guild's escalation rules.
type RuleStore interface {
	Rules(ctx context.Context, guildID string, source model.RuleSource) ([]model.EscalationRule, error)
}
