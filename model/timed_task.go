package model

// TaskKey identifies a scheduled reversal. There is at most one task per key.
type TaskKey struct {
	UserID  string         `db:"user_id"`
	GuildID string         `db:"guild_id"`
	Type    PunishmentType `db:"type"`
}

// Task is a pending reversal for a temporary Mute or Ban.
// The database table is named 'tasks'.
type Task struct {
	UserID  string         `db:"user_id"`
	GuildID string         `db:"guild_id"`
	Type    PunishmentType `db:"type"`
	Expires int64          `db:"expires"` // unix ms
}

// Key returns the task's identity.
func (t Task) Key() TaskKey {
	return TaskKey{UserID: t.UserID, GuildID: t.GuildID, Type: t.Type}
}
