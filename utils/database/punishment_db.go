package database

import (
	"context"
	"database/sql"
	"strings"

	"modbot/model"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"
)

const punishmentColumns = "id, guild_id, user_id, moderator_id, type, date, expires, reason, automod"

// Order selects how punishment queries are sorted. Ids are time-ordered, so
// sorting by id is sorting by creation.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

// Page limits a query. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// PunishmentFilter narrows punishment queries. Zero-valued fields are ignored.
type PunishmentFilter struct {
	GuildID            string
	UserID             string
	ModeratorID        string
	ExcludeModeratorID string
	Types              []model.PunishmentType
	IDs                []string
	Automod            *bool
	ExpiresAtOrBefore  *int64
	DateAtOrAfter      *int64
}

func (f PunishmentFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg ...any) {
		conds = append(conds, cond)
		args = append(args, arg...)
	}

	if f.GuildID != "" {
		add("guild_id = ?", f.GuildID)
	}
	if f.UserID != "" {
		add("user_id = ?", f.UserID)
	}
	if f.ModeratorID != "" {
		add("moderator_id = ?", f.ModeratorID)
	}
	if f.ExcludeModeratorID != "" {
		add("moderator_id != ?", f.ExcludeModeratorID)
	}
	if len(f.Types) > 0 {
		placeholders := make([]string, len(f.Types))
		for i, t := range f.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conds = append(conds, "type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(f.IDs) > 0 {
		placeholders := make([]string, len(f.IDs))
		for i, id := range f.IDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		conds = append(conds, "id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if f.Automod != nil {
		add("automod = ?", *f.Automod)
	}
	if f.ExpiresAtOrBefore != nil {
		add("expires IS NOT NULL AND expires <= ?", *f.ExpiresAtOrBefore)
	}
	if f.DateAtOrAfter != nil {
		add("date >= ?", *f.DateAtOrAfter)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// PunishmentPatch lists the fields an edit may change.
type PunishmentPatch struct {
	Reason *string
	// Expires replaces the expiry. ClearExpires makes the punishment permanent.
	Expires      *int64
	ClearExpires bool
}

// PunishmentStore is the system of record for punishments.
// It does not scope queries by guild on its own; callers must filter by guild.
type PunishmentStore struct {
	db  *sqlx.DB
	ids *IDGenerator
}

// NewPunishmentStore creates a store that assigns ids from ids.
func NewPunishmentStore(db *sqlx.DB, ids *IDGenerator) *PunishmentStore {
	return &PunishmentStore{db: db, ids: ids}
}

// Create assigns p a fresh id and inserts it.
func (s *PunishmentStore) Create(ctx context.Context, p *model.Punishment) error {
	p.ID = s.ids.Next()

	query := `INSERT INTO punishments (` + punishmentColumns + `)
              VALUES (:id, :guild_id, :user_id, :moderator_id, :type, :date, :expires, :reason, :automod)`

	err := execWithRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.NamedExecContext(ctx, query, p)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create punishment %s", p.ID)
	}
	return nil
}

// FindByID returns the punishment with the given id.
func (s *PunishmentStore) FindByID(ctx context.Context, id string) (*model.Punishment, error) {
	var p model.Punishment
	err := s.db.GetContext(ctx, &p, "SELECT "+punishmentColumns+" FROM punishments WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(ErrNotFound)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get punishment %s", id)
	}
	return &p, nil
}

// FindMany returns the punishments matching filter.
func (s *PunishmentStore) FindMany(ctx context.Context, filter PunishmentFilter, order Order, page Page) ([]model.Punishment, error) {
	where, args := filter.where()
	query := "SELECT " + punishmentColumns + " FROM punishments" + where
	if order == OldestFirst {
		query += " ORDER BY id ASC"
	} else {
		query += " ORDER BY id DESC"
	}
	if page.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, page.Limit, page.Offset)
	}

	var out []model.Punishment
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to find punishments")
	}
	return out, nil
}

// Count returns how many punishments match filter.
func (s *PunishmentStore) Count(ctx context.Context, filter PunishmentFilter) (int, error) {
	where, args := filter.where()
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM punishments"+where, args...); err != nil {
		return 0, errors.Wrap(err, "failed to count punishments")
	}
	return n, nil
}

// WarnHistory returns a member's warnings, newest first.
// Automod history holds automod warnings only; manual history holds warnings
// issued by anyone other than excludeModeratorID (the bot) without the automod flag.
func (s *PunishmentStore) WarnHistory(ctx context.Context, guildID, userID string, automod bool, excludeModeratorID string) ([]model.Punishment, error) {
	filter := PunishmentFilter{
		GuildID: guildID,
		UserID:  userID,
		Types:   []model.PunishmentType{model.PunishmentWarn},
		Automod: &automod,
	}
	if !automod {
		filter.ExcludeModeratorID = excludeModeratorID
	}
	return s.FindMany(ctx, filter, NewestFirst, Page{})
}

// Update applies patch to the punishment with the given id.
func (s *PunishmentStore) Update(ctx context.Context, id string, patch PunishmentPatch) error {
	var (
		sets []string
		args []any
	)
	if patch.Reason != nil {
		sets = append(sets, "reason = ?")
		args = append(args, *patch.Reason)
	}
	switch {
	case patch.ClearExpires:
		sets = append(sets, "expires = NULL")
	case patch.Expires != nil:
		sets = append(sets, "expires = ?")
		args = append(args, *patch.Expires)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := withRetry(ctx, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx, "UPDATE punishments SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to update punishment %s", id)
	}
	return requireRow(res, id)
}

// Delete removes the punishment with the given id.
func (s *PunishmentStore) Delete(ctx context.Context, id string) error {
	res, err := withRetry(ctx, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx, "DELETE FROM punishments WHERE id = ?", id)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to delete punishment %s", id)
	}
	return requireRow(res, id)
}

// DeleteMany removes every punishment matching filter and returns what was removed.
// The filter must be scoped to a guild.
func (s *PunishmentStore) DeleteMany(ctx context.Context, filter PunishmentFilter) ([]model.Punishment, error) {
	if filter.GuildID == "" {
		return nil, errors.New("refusing to bulk delete punishments without a guild")
	}
	where, args := filter.where()

	return withRetry(ctx, func(ctx context.Context) ([]model.Punishment, error) {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to begin bulk delete")
		}
		defer tx.Rollback()

		var deleted []model.Punishment
		if err := tx.SelectContext(ctx, &deleted, "SELECT "+punishmentColumns+" FROM punishments"+where+" ORDER BY id DESC", args...); err != nil {
			return nil, errors.Wrap(err, "failed to select punishments for bulk delete")
		}
		if len(deleted) == 0 {
			return nil, nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM punishments"+where, args...); err != nil {
			return nil, errors.Wrap(err, "failed to bulk delete punishments")
		}
		if err := tx.Commit(); err != nil {
			return nil, errors.Wrap(err, "failed to commit bulk delete")
		}
		return deleted, nil
	})
}

// DeleteExpiredWarns forgets every warning whose expiry is at or before now.
func (s *PunishmentStore) DeleteExpiredWarns(ctx context.Context, now int64) (int64, error) {
	res, err := withRetry(ctx, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx,
			"DELETE FROM punishments WHERE type = ? AND expires IS NOT NULL AND expires <= ?",
			string(model.PunishmentWarn), now)
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete expired warnings")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to check rows affected for expired warnings")
	}
	return n, nil
}

// ModeratorCount is the number of punishments one moderator issued.
type ModeratorCount struct {
	ModeratorID string `db:"moderator_id"`
	Count       int    `db:"n"`
}

// ModeratorCounts tallies the guild's punishments dated at or after since by
// moderator, busiest first. Reversals and records moderated by excludeModeratorID
// are left out.
func (s *PunishmentStore) ModeratorCounts(ctx context.Context, guildID string, since int64, excludeModeratorID string) ([]ModeratorCount, error) {
	var out []ModeratorCount
	err := s.db.SelectContext(ctx, &out,
		`SELECT moderator_id, COUNT(*) AS n FROM punishments
         WHERE guild_id = ? AND date >= ? AND moderator_id != ? AND type NOT IN (?, ?)
         GROUP BY moderator_id ORDER BY n DESC, moderator_id`,
		guildID, since, excludeModeratorID, string(model.PunishmentUnmute), string(model.PunishmentUnban))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to count punishments by moderator for guild %s", guildID)
	}
	return out, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to check rows affected for punishment %s", id)
	}
	if n == 0 {
		return errors.WithStack(ErrNotFound)
	}
	return nil
}
