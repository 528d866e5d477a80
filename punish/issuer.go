package punish

import (
	"context"
	"math"
	"strings"
	"time"

	"modbot/model"

	"emperror.dev/errors"
	"go.uber.org/zap"
)

// Deps are the collaborators shared by the Issuer and the Manager.
type Deps struct {
	Punishments PunishmentStore
	Tasks       TaskStore
	Rules       RuleStore
	Enforcer    Enforcer
	Members     Members
	Notifier    Notifier
	Audit       AuditLog
	Clock       Clock
	Metrics     *Metrics
	// BotID is the bot's own user id. It moderates automod and reversal records.
	BotID string
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics(nil)
	}
	return d
}

// IssueRequest describes a punishment to hand out.
type IssueRequest struct {
	GuildID     string
	UserID      string
	ModeratorID string
	Type        model.PunishmentType
	// Duration in milliseconds. Nil means permanent.
	Duration *int64
	Reason   string
	Silent   bool
	Automod  bool
	// CustomInfo replaces the guild's additional info in the DM.
	CustomInfo string
	// Trigger is the message content that caused an automod punishment.
	Trigger string
}

// IssueResult reports the record and how each follow-up step went.
type IssueResult struct {
	Punishment   model.Punishment
	Task         Outcome
	Enforcement  Outcome
	Notification Outcome
	Audit        Outcome

	// Rule is the escalation rule the warning triggered, if any.
	Rule *model.EscalationRule
	// Escalation is the punishment the rule produced.
	Escalation    *IssueResult
	EscalationErr error
}

// Issuer records punishments and applies them.
type Issuer struct {
	deps   Deps
	logger *zap.Logger
}

// NewIssuer creates an Issuer.
func NewIssuer(deps Deps, logger *zap.Logger) *Issuer {
	return &Issuer{
		deps:   deps.withDefaults(),
		logger: logger.Named("issuer"),
	}
}

// Issue validates req, writes the punishment record and then runs the
// best-effort steps: task bookkeeping, enforcement, DM, audit log and, for
// warnings, one level of escalation. Only validation, permission and record
// failures are returned as errors.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	return i.issue(ctx, req, false)
}

func (i *Issuer) issue(ctx context.Context, req IssueRequest, escalated bool) (*IssueResult, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	now := i.deps.Clock.Now().UnixMilli()
	if err := validateIssue(req, now); err != nil {
		return nil, err
	}

	if req.Type != model.PunishmentWarn {
		ok, err := i.deps.Enforcer.CanEnforce(ctx, req.GuildID, req.Type)
		if err != nil {
			return nil, errors.WrapIf(err, "failed to check enforcement permission")
		}
		if !ok {
			return nil, userErrorf(ErrPermission, "I don't have the permission needed to %s members in this server.", verb(req.Type))
		}
	}

	p := model.Punishment{
		GuildID:     req.GuildID,
		UserID:      req.UserID,
		ModeratorID: req.ModeratorID,
		Type:        req.Type,
		Date:        now,
		Reason:      req.Reason,
		Automod:     req.Automod,
	}
	if req.Duration != nil {
		expires := now + *req.Duration
		p.Expires = &expires
	}

	if err := i.deps.Punishments.Create(ctx, &p); err != nil {
		return nil, errors.WrapIf(err, "failed to record punishment")
	}
	i.deps.Metrics.Issued.WithLabelValues(string(p.Type)).Inc()

	logger := i.logger.With(
		zap.String("punishment_id", p.ID),
		zap.String("guild_id", p.GuildID),
		zap.String("user_id", p.UserID),
		zap.String("type", string(p.Type)),
	)
	logger.Debug("Recorded punishment", zap.String("moderator_id", p.ModeratorID), zap.Bool("automod", p.Automod))

	res := &IssueResult{Punishment: p}
	res.Task = i.syncTask(ctx, p)

	// Kicked and banned users share no guild with the bot afterwards, so they
	// have to be messaged first.
	if p.Type == model.PunishmentKick || p.Type == model.PunishmentBan {
		res.Notification = i.notify(ctx, p, req)
		res.Enforcement = i.enforce(ctx, p)
	} else {
		res.Enforcement = i.enforce(ctx, p)
		res.Notification = i.notify(ctx, p, req)
	}
	res.Audit = ran(ActionAudit, i.deps.Audit.LogPunishment(ctx, p, req.Trigger))

	for _, o := range []Outcome{res.Task, res.Enforcement, res.Notification, res.Audit} {
		if !o.Failed() {
			continue
		}
		if o.Action == ActionTask {
			logger.Error("Failed to update scheduled task", zap.Error(o.Err))
		} else {
			logger.Warn("Best-effort step failed", zap.String("action", string(o.Action)), zap.Error(o.Err))
		}
	}

	if p.Type == model.PunishmentWarn && !escalated {
		i.escalate(ctx, req, p, res, logger)
	}

	return res, nil
}

func validateIssue(req IssueRequest, now int64) error {
	if !req.Type.Valid() {
		return validationf("Unknown punishment type %q.", req.Type)
	}
	if req.GuildID == "" || req.UserID == "" || req.ModeratorID == "" {
		return validationf("A punishment needs a guild, a user and a moderator.")
	}
	if err := checkReason(req.Reason); err != nil {
		return err
	}

	if req.Duration != nil {
		if !req.Type.Temporal() {
			return validationf("%s punishments cannot have a duration.", req.Type)
		}
		if *req.Duration < model.MinDuration {
			return validationf("Temporary %s duration must be at least 1 second.", strings.ToLower(string(req.Type)))
		}
		if err := checkExpiry(*req.Duration, now); err != nil {
			return err
		}
	}

	if req.Type == model.PunishmentMute {
		if req.Duration == nil {
			return validationf("You must provide a duration to mute.")
		}
		if *req.Duration > model.MaxMuteDuration {
			return validationf("Mute duration must be 28 days or less.")
		}
	}
	return nil
}

// checkExpiry rejects durations whose expiry does not fit in an int64.
func checkExpiry(d, now int64) error {
	if d > math.MaxInt64-now {
		return validationf("That duration is too long.")
	}
	return nil
}

// syncTask keeps the task table in line with the record just written.
func (i *Issuer) syncTask(ctx context.Context, p model.Punishment) Outcome {
	if forward, ok := p.Type.Reverses(); ok {
		_, err := i.deps.Tasks.Delete(ctx, model.TaskKey{UserID: p.UserID, GuildID: p.GuildID, Type: forward})
		return ran(ActionTask, err)
	}

	switch {
	case p.Type.Scheduled() && p.Expires != nil:
		return ran(ActionTask, i.deps.Tasks.Upsert(ctx, model.Task{
			UserID:  p.UserID,
			GuildID: p.GuildID,
			Type:    p.Type,
			Expires: *p.Expires,
		}))
	case p.Type == model.PunishmentBan:
		// a permanent ban replaces any pending unban
		_, err := i.deps.Tasks.Delete(ctx, model.TaskKey{UserID: p.UserID, GuildID: p.GuildID, Type: model.PunishmentBan})
		return ran(ActionTask, err)
	}
	return skipped(ActionTask)
}

func (i *Issuer) enforce(ctx context.Context, p model.Punishment) Outcome {
	var err error
	switch p.Type {
	case model.PunishmentMute:
		until := time.UnixMilli(*p.Expires)
		err = i.deps.Enforcer.Timeout(ctx, p.GuildID, p.UserID, &until, p.Reason)
	case model.PunishmentKick:
		err = i.deps.Enforcer.Kick(ctx, p.GuildID, p.UserID, p.Reason)
	case model.PunishmentBan:
		err = i.deps.Enforcer.Ban(ctx, p.GuildID, p.UserID, p.Reason)
	case model.PunishmentUnmute:
		err = i.deps.Enforcer.Timeout(ctx, p.GuildID, p.UserID, nil, p.Reason)
	case model.PunishmentUnban:
		err = i.deps.Enforcer.Unban(ctx, p.GuildID, p.UserID, p.Reason)
	default:
		return skipped(ActionEnforce)
	}

	if err != nil {
		i.deps.Metrics.EnforcementFailures.WithLabelValues(string(p.Type)).Inc()
	}
	return ran(ActionEnforce, err)
}

func (i *Issuer) notify(ctx context.Context, p model.Punishment, req IssueRequest) Outcome {
	if req.Silent {
		return skipped(ActionNotify)
	}
	return ran(ActionNotify, i.deps.Notifier.NotifyPunishment(ctx, p, req.CustomInfo))
}

// escalate checks the warning population the new warning belongs to and
// issues the consequence of the matching rule. The consequence is never
// evaluated for further escalation.
func (i *Issuer) escalate(ctx context.Context, req IssueRequest, warn model.Punishment, res *IssueResult, logger *zap.Logger) {
	source := model.RuleSourceManual
	if warn.Automod {
		source = model.RuleSourceAutoMod
	}

	history, err := i.deps.Punishments.WarnHistory(ctx, warn.GuildID, warn.UserID, warn.Automod, i.deps.BotID)
	if err != nil {
		res.EscalationErr = errors.WrapIf(err, "failed to load warning history")
		logger.Error("Escalation check failed", zap.Error(res.EscalationErr))
		return
	}
	rules, err := i.deps.Rules.Rules(ctx, warn.GuildID, source)
	if err != nil {
		res.EscalationErr = errors.WrapIf(err, "failed to load escalation rules")
		logger.Error("Escalation check failed", zap.Error(res.EscalationErr))
		return
	}

	rule, ok := SelectEscalation(history, rules, warn.Date)
	if !ok {
		return
	}
	res.Rule = &rule

	moderatorID := warn.ModeratorID
	if warn.Automod {
		moderatorID = i.deps.BotID
	}
	var duration *int64
	if rule.Duration != 0 {
		d := rule.Duration
		duration = &d
	}

	escalation, err := i.issue(ctx, IssueRequest{
		GuildID:     warn.GuildID,
		UserID:      warn.UserID,
		ModeratorID: moderatorID,
		Type:        rule.Punishment,
		Duration:    duration,
		Reason:      EscalationReason(rule, warn.Automod),
		Silent:      req.Silent,
		Automod:     warn.Automod,
	}, true)
	if err != nil {
		res.EscalationErr = err
		logger.Error("Failed to issue escalation",
			zap.Int("amount", rule.Amount),
			zap.Int64("within", rule.Within),
			zap.Error(err))
		return
	}

	res.Escalation = escalation
	i.deps.Metrics.Escalations.WithLabelValues(string(source)).Inc()
	logger.Info("Escalated warning",
		zap.String("escalation_id", escalation.Punishment.ID),
		zap.String("escalation_type", string(rule.Punishment)),
		zap.Int("amount", rule.Amount))
}

func verb(t model.PunishmentType) string {
	switch t {
	case model.PunishmentMute:
		return "mute"
	case model.PunishmentKick:
		return "kick"
	case model.PunishmentBan:
		return "ban"
	case model.PunishmentUnmute:
		return "unmute"
	case model.PunishmentUnban:
		return "unban"
	}
	return "warn"
}
