package punish

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"modbot/model"
	"modbot/utils"
	"modbot/utils/database"

	"emperror.dev/errors"
	"go.uber.org/zap"
)

// ConfirmTimeout bounds how long a moderator has to approve a dangerous change.
const ConfirmTimeout = 15 * time.Second

// ChangeReasonRequest replaces the reason of a punishment.
type ChangeReasonRequest struct {
	GuildID      string
	PunishmentID string
	ModeratorID  string
	Reason       string
	Silent       bool
	Confirmer    Confirmer
}

// ChangeDurationRequest gives a temporal punishment a new length, counted from now.
type ChangeDurationRequest struct {
	GuildID      string
	PunishmentID string
	ModeratorID  string
	// Duration in milliseconds. Nil makes the punishment permanent.
	Duration *int64
	// Reason is the optional explanation shown in the edit log.
	Reason    string
	Silent    bool
	Confirmer Confirmer
}

// DeleteRequest removes a single punishment.
type DeleteRequest struct {
	GuildID      string
	PunishmentID string
	ModeratorID  string
	Reason       string
	// Undo also lifts the live ban or mute and records the reversal.
	Undo   bool
	Silent bool
	// IsManager allows removing punishments issued by other moderators.
	IsManager bool
	Confirmer Confirmer
}

// DeleteAllRequest removes every manual or every automod punishment of a user.
type DeleteAllRequest struct {
	GuildID     string
	UserID      string
	ModeratorID string
	Reason      string
	Automod     bool
	Confirmer   Confirmer
}

// EditResult reports a single edit and its best-effort follow-ups.
type EditResult struct {
	Edit         model.PunishmentEdit
	Enforcement  Outcome
	Task         Outcome
	Notification Outcome
	Audit        Outcome

	// Undo is the reversal created by a delete with Undo set.
	Undo    *IssueResult
	UndoErr error
}

// BulkDeleteResult reports a DeleteAllPunishments call.
type BulkDeleteResult struct {
	Deleted []model.Punishment
	Task    Outcome
	Audit   Outcome
}

// Manager edits and removes existing punishments.
type Manager struct {
	deps           Deps
	issuer         *Issuer
	logger         *zap.Logger
	confirmTimeout time.Duration
}

// NewManager creates a Manager. Undo reversals go through issuer.
func NewManager(deps Deps, issuer *Issuer, logger *zap.Logger) *Manager {
	return &Manager{
		deps:           deps.withDefaults(),
		issuer:         issuer,
		logger:         logger.Named("manager"),
		confirmTimeout: ConfirmTimeout,
	}
}

// ChangeReason swaps the reason of a punishment after confirmation.
func (m *Manager) ChangeReason(ctx context.Context, req ChangeReasonRequest) (*EditResult, error) {
	reason := strings.TrimSpace(req.Reason)
	if err := checkReason(reason); err != nil {
		return nil, err
	}

	p, err := m.find(ctx, req.GuildID, req.PunishmentID)
	if err != nil {
		return nil, err
	}
	if p.Reason == reason {
		return nil, validationf("The new reason must be different from the current reason.")
	}

	err = m.confirm(ctx, req.Confirmer, fmt.Sprintf("Change the reason of punishment `%s` to:\n> %s", p.ID, reason))
	if err != nil {
		return nil, err
	}

	if err := m.deps.Punishments.Update(ctx, p.ID, database.PunishmentPatch{Reason: &reason}); err != nil {
		return nil, m.storeErr(err, p.ID, "failed to update punishment reason")
	}

	old := p.Reason
	p.Reason = reason
	res := &EditResult{
		Edit: model.PunishmentEdit{
			Punishment:  *p,
			ModeratorID: req.ModeratorID,
			Kind:        model.EditReason,
			OldReason:   old,
			NewReason:   reason,
		},
		Enforcement: skipped(ActionEnforce),
		Task:        skipped(ActionTask),
	}
	m.finish(ctx, res, req.Silent)
	return res, nil
}

// ChangeDuration moves the expiry of a Warn, Mute or Ban to now plus the new duration.
func (m *Manager) ChangeDuration(ctx context.Context, req ChangeDurationRequest) (*EditResult, error) {
	if req.Duration != nil && *req.Duration < model.MinDuration {
		return nil, validationf("The duration must be at least 1 second.")
	}

	p, err := m.find(ctx, req.GuildID, req.PunishmentID)
	if err != nil {
		return nil, err
	}
	if !p.Type.Temporal() {
		return nil, validationf("%s punishments cannot have a duration.", p.Type)
	}

	now := m.deps.Clock.Now().UnixMilli()
	if p.Expired(now) {
		return nil, validationf("This punishment has already expired.")
	}

	var expires *int64
	if req.Duration != nil {
		if err := checkExpiry(*req.Duration, now); err != nil {
			return nil, err
		}
		e := now + *req.Duration
		expires = &e
	}
	if sameExpiry(p.Expires, expires) {
		return nil, validationf("The punishment is already set to that duration.")
	}

	if p.Type == model.PunishmentMute {
		if req.Duration == nil || *req.Duration > model.MaxMuteDuration {
			return nil, validationf("Mute duration must be 28 days or less.")
		}
		_, present, err := m.deps.Members.MemberTimeout(ctx, p.GuildID, p.UserID)
		if err != nil {
			return nil, errors.WrapIf(err, "failed to look up member")
		}
		if !present {
			return nil, validationf("That member is no longer in this server, so the mute can't be changed.")
		}
	}

	prompt := fmt.Sprintf("Change the duration of punishment `%s` to %s?", p.ID, describeDuration(req.Duration))
	if err := m.confirm(ctx, req.Confirmer, prompt); err != nil {
		return nil, err
	}

	res := &EditResult{Enforcement: skipped(ActionEnforce), Task: skipped(ActionTask)}
	if p.Type == model.PunishmentMute {
		until := time.UnixMilli(*expires)
		err := m.deps.Enforcer.Timeout(ctx, p.GuildID, p.UserID, &until, p.Reason)
		if err != nil {
			m.deps.Metrics.EnforcementFailures.WithLabelValues(string(p.Type)).Inc()
		}
		res.Enforcement = ran(ActionEnforce, err)
	}

	patch := database.PunishmentPatch{Expires: expires, ClearExpires: expires == nil}
	if err := m.deps.Punishments.Update(ctx, p.ID, patch); err != nil {
		return nil, m.storeErr(err, p.ID, "failed to update punishment expiry")
	}

	if p.Type.Scheduled() {
		key := model.TaskKey{UserID: p.UserID, GuildID: p.GuildID, Type: p.Type}
		if expires != nil {
			res.Task = ran(ActionTask, m.deps.Tasks.Upsert(ctx, model.Task{
				UserID:  p.UserID,
				GuildID: p.GuildID,
				Type:    p.Type,
				Expires: *expires,
			}))
		} else {
			_, err := m.deps.Tasks.Delete(ctx, key)
			res.Task = ran(ActionTask, err)
		}
	}

	old := p.Expires
	p.Expires = expires
	res.Edit = model.PunishmentEdit{
		Punishment:    *p,
		ModeratorID:   req.ModeratorID,
		Kind:          model.EditExpiration,
		EditReason:    strings.TrimSpace(req.Reason),
		OldExpiration: old,
		NewExpiration: expires,
	}
	m.finish(ctx, res, req.Silent)
	return res, nil
}

// DeletePunishment removes one punishment record, optionally lifting it on the platform.
func (m *Manager) DeletePunishment(ctx context.Context, req DeleteRequest) (*EditResult, error) {
	reason := strings.TrimSpace(req.Reason)
	if err := checkReason(reason); err != nil {
		return nil, err
	}

	p, err := m.find(ctx, req.GuildID, req.PunishmentID)
	if err != nil {
		return nil, err
	}
	if p.ModeratorID != req.ModeratorID && !req.IsManager {
		return nil, userErrorf(ErrPermission, "You need a manager role to remove punishments issued by other moderators.")
	}

	var reversal model.PunishmentType
	if req.Undo {
		var ok bool
		if reversal, ok = p.Type.Reversal(); !ok {
			return nil, validationf("Only bans and mutes can be undone.")
		}
		can, err := m.deps.Enforcer.CanEnforce(ctx, p.GuildID, reversal)
		if err != nil {
			return nil, errors.WrapIf(err, "failed to check enforcement permission")
		}
		if !can {
			return nil, userErrorf(ErrPermission, "I don't have the permission needed to %s members in this server.", verb(reversal))
		}
	}

	prompt := fmt.Sprintf("Remove punishment `%s` (%s of <@%s>)?", p.ID, strings.ToLower(string(p.Type)), p.UserID)
	if req.Undo {
		prompt += fmt.Sprintf(" The user will also be %s.", reversal.PastTense())
	}
	if err := m.confirm(ctx, req.Confirmer, prompt); err != nil {
		return nil, err
	}

	if err := m.deps.Punishments.Delete(ctx, p.ID); err != nil {
		return nil, m.storeErr(err, p.ID, "failed to delete punishment")
	}

	logger := m.logger.With(zap.String("punishment_id", p.ID), zap.String("guild_id", p.GuildID))
	res := &EditResult{Enforcement: skipped(ActionEnforce), Task: skipped(ActionTask)}

	if req.Undo {
		// The reversal clears the forward task itself.
		res.Undo, res.UndoErr = m.issuer.Issue(ctx, IssueRequest{
			GuildID:     p.GuildID,
			UserID:      p.UserID,
			ModeratorID: req.ModeratorID,
			Type:        reversal,
			Reason:      reason,
			Silent:      true,
		})
		if res.UndoErr != nil {
			logger.Error("Failed to undo removed punishment", zap.Error(res.UndoErr))
		} else {
			res.Enforcement = res.Undo.Enforcement
			res.Task = res.Undo.Task
		}
	} else if p.Type.Scheduled() {
		_, err := m.deps.Tasks.Delete(ctx, model.TaskKey{UserID: p.UserID, GuildID: p.GuildID, Type: p.Type})
		res.Task = ran(ActionTask, err)
	}

	res.Edit = model.PunishmentEdit{
		Punishment:  *p,
		ModeratorID: req.ModeratorID,
		Kind:        model.EditDelete,
		EditReason:  reason,
		Undone:      req.Undo && res.UndoErr == nil,
		DeletedIDs:  []string{p.ID},
	}
	m.finish(ctx, res, req.Silent)
	return res, nil
}

// DeleteAllPunishments removes all of a user's manual or automod punishments in a
// guild and writes a single audit entry listing them.
func (m *Manager) DeleteAllPunishments(ctx context.Context, req DeleteAllRequest) (*BulkDeleteResult, error) {
	reason := strings.TrimSpace(req.Reason)
	if err := checkReason(reason); err != nil {
		return nil, err
	}

	automod := req.Automod
	filter := database.PunishmentFilter{GuildID: req.GuildID, UserID: req.UserID, Automod: &automod}

	count, err := m.deps.Punishments.Count(ctx, filter)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to count punishments")
	}
	kind := ""
	if req.Automod {
		kind = "automod "
	}
	if count == 0 {
		return nil, userErrorf(ErrNotFound, "That user has no %spunishments in this server.", kind)
	}

	prompt := fmt.Sprintf("Remove all %d %spunishments of <@%s>? This can't be undone.", count, kind, req.UserID)
	if err := m.confirm(ctx, req.Confirmer, prompt); err != nil {
		return nil, err
	}

	deleted, err := m.deps.Punishments.DeleteMany(ctx, filter)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to delete punishments")
	}
	if len(deleted) == 0 {
		return nil, userErrorf(ErrNotFound, "That user has no %spunishments in this server.", kind)
	}

	res := &BulkDeleteResult{Deleted: deleted, Task: skipped(ActionTask)}

	seen := make(map[model.TaskKey]bool)
	var taskErrs []error
	for _, p := range deleted {
		if !p.Type.Scheduled() {
			continue
		}
		key := model.TaskKey{UserID: p.UserID, GuildID: p.GuildID, Type: p.Type}
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, err := m.deps.Tasks.Delete(ctx, key); err != nil {
			taskErrs = append(taskErrs, err)
		}
	}
	if len(seen) > 0 {
		res.Task = ran(ActionTask, errors.Combine(taskErrs...))
	}

	ids := make([]string, len(deleted))
	for i, p := range deleted {
		ids[i] = p.ID
	}
	edit := model.PunishmentEdit{
		Punishment:  model.Punishment{GuildID: req.GuildID, UserID: req.UserID, Automod: req.Automod},
		ModeratorID: req.ModeratorID,
		Kind:        model.EditBulkDelete,
		EditReason:  reason,
		DeletedIDs:  ids,
	}
	res.Audit = ran(ActionAudit, m.deps.Audit.LogEdit(ctx, edit))
	m.deps.Metrics.Edits.WithLabelValues(string(model.EditBulkDelete)).Inc()

	logger := m.logger.With(zap.String("guild_id", req.GuildID), zap.String("user_id", req.UserID))
	if res.Task.Failed() {
		logger.Error("Failed to clear scheduled tasks", zap.Error(res.Task.Err))
	}
	if res.Audit.Failed() {
		logger.Warn("Failed to write edit log", zap.Error(res.Audit.Err))
	}
	logger.Info("Removed punishments", zap.Int("count", len(deleted)), zap.Bool("automod", req.Automod))
	return res, nil
}

// finish sends the DM and edit log for a single edit.
func (m *Manager) finish(ctx context.Context, res *EditResult, silent bool) {
	if silent {
		res.Notification = skipped(ActionNotify)
	} else {
		res.Notification = ran(ActionNotify, m.deps.Notifier.NotifyEdit(ctx, res.Edit))
	}
	res.Audit = ran(ActionAudit, m.deps.Audit.LogEdit(ctx, res.Edit))
	m.deps.Metrics.Edits.WithLabelValues(string(res.Edit.Kind)).Inc()

	logger := m.logger.With(
		zap.String("punishment_id", res.Edit.Punishment.ID),
		zap.String("kind", string(res.Edit.Kind)),
	)
	for _, o := range []Outcome{res.Enforcement, res.Task, res.Notification, res.Audit} {
		if !o.Failed() {
			continue
		}
		if o.Action == ActionTask {
			logger.Error("Failed to update scheduled task", zap.Error(o.Err))
		} else {
			logger.Warn("Best-effort step failed", zap.String("action", string(o.Action)), zap.Error(o.Err))
		}
	}
	logger.Info("Edited punishment", zap.String("moderator_id", res.Edit.ModeratorID))
}

func (m *Manager) find(ctx context.Context, guildID, id string) (*model.Punishment, error) {
	p, err := m.deps.Punishments.FindByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) || (err == nil && p.GuildID != guildID) {
		return nil, userErrorf(ErrNotFound, "No punishment with ID `%s` exists in this server.", id)
	}
	if err != nil {
		return nil, errors.WrapIf(err, "failed to load punishment")
	}
	return p, nil
}

func (m *Manager) storeErr(err error, id, msg string) error {
	if errors.Is(err, database.ErrNotFound) {
		return userErrorf(ErrNotFound, "No punishment with ID `%s` exists in this server.", id)
	}
	return errors.WrapIf(err, msg)
}

// confirm asks for approval. No answer in time counts as a refusal.
func (m *Manager) confirm(ctx context.Context, c Confirmer, prompt string) error {
	if c == nil {
		return userErrorf(ErrCancelled, "Operation cancelled.")
	}

	cctx, cancel := context.WithTimeout(ctx, m.confirmTimeout)
	defer cancel()

	ok, err := c.Confirm(cctx, prompt)
	if cctx.Err() != nil && !ok {
		return userErrorf(ErrCancelled, "Confirmation timed out. Operation automatically cancelled.")
	}
	if err != nil {
		return errors.WrapIf(err, "failed to ask for confirmation")
	}
	if !ok {
		return userErrorf(ErrCancelled, "Operation cancelled.")
	}
	return nil
}

func checkReason(reason string) error {
	if reason == "" {
		return validationf("You must provide a reason.")
	}
	if n := utf8.RuneCountInString(reason); n > model.MaxReasonLength {
		return validationf("The reason may only be a maximum of %d characters (%d provided.)", model.MaxReasonLength, n)
	}
	return nil
}

func sameExpiry(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func describeDuration(d *int64) string {
	if d == nil {
		return "permanent"
	}
	return utils.FormatDuration(*d)
}
