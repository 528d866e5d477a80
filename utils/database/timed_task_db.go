package database

import (
	"context"
	"database/sql"
	"strings"

	"modbot/model"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"
)

// TaskStore holds pending reversals, one row per (user, guild, type).
type TaskStore struct {
	db *sqlx.DB
}

// NewTaskStore creates a task store on db.
func NewTaskStore(db *sqlx.DB) *TaskStore {
	return &TaskStore{db: db}
}

// Upsert creates the task or moves the existing task for the same key to the new expiry.
// The composite primary key makes concurrent upserts for one key collapse into one row.
func (s *TaskStore) Upsert(ctx context.Context, task model.Task) error {
	query := `INSERT INTO tasks (user_id, guild_id, type, expires)
              VALUES (:user_id, :guild_id, :type, :expires)
              ON CONFLICT (user_id, guild_id, type) DO UPDATE SET expires = excluded.expires`

	err := execWithRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.NamedExecContext(ctx, query, task)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "failed to upsert %s task for user %s in guild %s", task.Type, task.UserID, task.GuildID)
	}
	return nil
}

// Get returns the task stored under key.
func (s *TaskStore) Get(ctx context.Context, key model.TaskKey) (*model.Task, error) {
	var task model.Task
	err := s.db.GetContext(ctx, &task,
		"SELECT user_id, guild_id, type, expires FROM tasks WHERE user_id = ? AND guild_id = ? AND type = ?",
		key.UserID, key.GuildID, string(key.Type))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(ErrNotFound)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s task for user %s in guild %s", key.Type, key.UserID, key.GuildID)
	}
	return &task, nil
}

// Delete removes the task stored under key and reports whether one existed.
func (s *TaskStore) Delete(ctx context.Context, key model.TaskKey) (bool, error) {
	res, err := withRetry(ctx, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx,
			"DELETE FROM tasks WHERE user_id = ? AND guild_id = ? AND type = ?",
			key.UserID, key.GuildID, string(key.Type))
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to delete %s task for user %s in guild %s", key.Type, key.UserID, key.GuildID)
	}
	return affected(res)
}

// FindDue returns every task with expires <= before, grouped by guild.
func (s *TaskStore) FindDue(ctx context.Context, before int64) (map[string][]model.Task, error) {
	var tasks []model.Task
	err := s.db.SelectContext(ctx, &tasks,
		"SELECT user_id, guild_id, type, expires FROM tasks WHERE expires <= ? ORDER BY guild_id, expires", before)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get due tasks")
	}

	byGuild := make(map[string][]model.Task)
	for _, t := range tasks {
		byGuild[t.GuildID] = append(byGuild[t.GuildID], t)
	}
	return byGuild, nil
}

// Consume deletes task only if it still has the expiry it was read with.
// It returns false when the task was rescheduled or removed in the meantime.
func (s *TaskStore) Consume(ctx context.Context, task model.Task) (bool, error) {
	res, err := withRetry(ctx, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx,
			"DELETE FROM tasks WHERE user_id = ? AND guild_id = ? AND type = ? AND expires = ?",
			task.UserID, task.GuildID, string(task.Type), task.Expires)
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to consume %s task for user %s in guild %s", task.Type, task.UserID, task.GuildID)
	}
	return affected(res)
}

// Reschedule moves task to expires, but only if nobody changed it since it was read.
func (s *TaskStore) Reschedule(ctx context.Context, task model.Task, expires int64) (bool, error) {
	res, err := withRetry(ctx, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx,
			"UPDATE tasks SET expires = ? WHERE user_id = ? AND guild_id = ? AND type = ? AND expires = ?",
			expires, task.UserID, task.GuildID, string(task.Type), task.Expires)
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to reschedule %s task for user %s in guild %s", task.Type, task.UserID, task.GuildID)
	}
	return affected(res)
}

// DeleteDue removes a guild's tasks that are due at before. With no types every
// due task in the guild is removed.
func (s *TaskStore) DeleteDue(ctx context.Context, guildID string, before int64, types ...model.PunishmentType) (int64, error) {
	query := "DELETE FROM tasks WHERE guild_id = ? AND expires <= ?"
	args := []any{guildID, before}
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND type IN (" + strings.Join(placeholders, ", ") + ")"
	}

	res, err := withRetry(ctx, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx, query, args...)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to delete due tasks for guild %s", guildID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to check rows affected for guild %s", guildID)
	}
	return n, nil
}

// Count returns the number of pending tasks.
func (s *TaskStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM tasks"); err != nil {
		return 0, errors.Wrap(err, "failed to count tasks")
	}
	return n, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to check rows affected")
	}
	return n > 0, nil
}
