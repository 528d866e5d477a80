package database

import (
	"context"
	"database/sql"

	"modbot/model"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"
)

// RuleStore holds each guild's two escalation lists.
type RuleStore struct {
	db *sqlx.DB
}

// NewRuleStore creates a rule store on db.
func NewRuleStore(db *sqlx.DB) *RuleStore {
	return &RuleStore{db: db}
}

// Rules returns a guild's rules for source in the order they were added.
func (s *RuleStore) Rules(ctx context.Context, guildID string, source model.RuleSource) ([]model.EscalationRule, error) {
	var rules []model.EscalationRule
	err := s.db.SelectContext(ctx, &rules,
		"SELECT amount, within_ms, punishment, duration_ms FROM escalations WHERE guild_id = ? AND source = ? ORDER BY id",
		guildID, string(source))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s escalations for guild %s", source, guildID)
	}
	return rules, nil
}

// AddRule appends rule to the guild's list for source.
func (s *RuleStore) AddRule(ctx context.Context, guildID string, source model.RuleSource, rule model.EscalationRule) error {
	err := execWithRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO escalations (guild_id, source, amount, within_ms, punishment, duration_ms)
             VALUES (?, ?, ?, ?, ?, ?)`,
			guildID, string(source), rule.Amount, rule.Within, string(rule.Punishment), rule.Duration)
		return err
	})
	if isUniqueViolation(err) {
		return errors.WithStack(ErrDuplicateRule)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to add %s escalation for guild %s", source, guildID)
	}
	return nil
}

// RemoveRule deletes the rule identified by amount and window.
func (s *RuleStore) RemoveRule(ctx context.Context, guildID string, source model.RuleSource, amount int, within int64) error {
	res, err := withRetry(ctx, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx,
			"DELETE FROM escalations WHERE guild_id = ? AND source = ? AND amount = ? AND within_ms = ?",
			guildID, string(source), amount, within)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to remove %s escalation for guild %s", source, guildID)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithStack(ErrNotFound)
	}
	return nil
}
