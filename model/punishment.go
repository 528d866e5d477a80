package model

import "time"

// PunishmentType is the kind of moderation action a record represents.
type PunishmentType string

const (
	PunishmentWarn   PunishmentType = "Warn"
	PunishmentMute   PunishmentType = "Mute"
	PunishmentKick   PunishmentType = "Kick"
	PunishmentBan    PunishmentType = "Ban"
	PunishmentUnmute PunishmentType = "Unmute"
	PunishmentUnban  PunishmentType = "Unban"
)

const (
	// MaxReasonLength is the longest reason a punishment may carry.
	MaxReasonLength = 3500
	// MinDuration is the shortest accepted duration, in milliseconds, for a temporary punishment.
	MinDuration int64 = 1000
	// MaxMuteDuration mirrors the platform's timeout ceiling of 28 days.
	MaxMuteDuration = int64(28 * 24 * time.Hour / time.Millisecond)
	// DriftTolerance is how far a live timeout may exceed a task's expiry before
	// the sweep treats the task as stale.
	DriftTolerance int64 = 10_000
)

// Valid reports whether t is a known punishment type.
func (t PunishmentType) Valid() bool {
	switch t {
	case PunishmentWarn, PunishmentMute, PunishmentKick, PunishmentBan, PunishmentUnmute, PunishmentUnban:
		return true
	}
	return false
}

// Temporal reports whether a punishment of this type may carry an expiry.
func (t PunishmentType) Temporal() bool {
	return t == PunishmentWarn || t == PunishmentMute || t == PunishmentBan
}

// Scheduled reports whether an expiring punishment of this type is backed by a task.
func (t PunishmentType) Scheduled() bool {
	return t == PunishmentMute || t == PunishmentBan
}

// Reverses returns the forward type a reversal undoes. Only Unmute and Unban are reversals.
func (t PunishmentType) Reverses() (PunishmentType, bool) {
	switch t {
	case PunishmentUnmute:
		return PunishmentMute, true
	case PunishmentUnban:
		return PunishmentBan, true
	}
	return "", false
}

// Reversal returns the type that undoes t.
func (t PunishmentType) Reversal() (PunishmentType, bool) {
	switch t {
	case PunishmentMute:
		return PunishmentUnmute, true
	case PunishmentBan:
		return PunishmentUnban, true
	}
	return "", false
}

// PastTense is used in notifications ("You've been muted").
func (t PunishmentType) PastTense() string {
	switch t {
	case PunishmentWarn:
		return "warned"
	case PunishmentMute:
		return "muted"
	case PunishmentKick:
		return "kicked"
	case PunishmentBan:
		return "banned"
	case PunishmentUnmute:
		return "unmuted"
	case PunishmentUnban:
		return "unbanned"
	}
	return string(t)
}

// Punishment is a single logged moderation action.
// The database table is named 'punishments'. Only Reason and Expires are ever
// changed after creation.
type Punishment struct {
	ID          string         `db:"id"` // snowflake, sorts chronologically
	GuildID     string         `db:"guild_id"`
	UserID      string         `db:"user_id"`
	ModeratorID string         `db:"moderator_id"`
	Type        PunishmentType `db:"type"`
	Date        int64          `db:"date"`    // unix ms
	Expires     *int64         `db:"expires"` // unix ms, nil when permanent
	Reason      string         `db:"reason"`
	Automod     bool           `db:"automod"`
}

// Expired reports whether the punishment had an expiry at or before now.
func (p *Punishment) Expired(now int64) bool {
	return p.Expires != nil && *p.Expires <= now
}

// Duration returns the original length of a temporary punishment in milliseconds.
func (p *Punishment) Duration() int64 {
	if p.Expires == nil {
		return 0
	}
	return *p.Expires - p.Date
}

// PunishmentEdit describes a change made to an existing punishment, for the edit log.
type PunishmentEdit struct {
	Punishment    Punishment
	ModeratorID   string
	Kind          EditKind
	EditReason    string
	OldReason     string
	NewReason     string
	OldExpiration *int64
	NewExpiration *int64
	// Undone is set when a deletion also lifted the live ban or mute.
	Undone        bool
	DeletedIDs    []string
}

// EditKind names the edit log entry type.
type EditKind string

const (
	EditReason     EditKind = "reason"
	EditExpiration EditKind = "expiration"
	EditDelete     EditKind = "delete"
	EditBulkDelete EditKind = "bulkdelete"
)
