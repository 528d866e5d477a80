package scanner

import (
	"context"
	"sync"
	"time"

	"modbot/model"
	"modbot/punish"

	"emperror.dev/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// PunishmentStore is what the sweep needs from the punishment table.
type PunishmentStore interface {
	Create(ctx context.Context, p *model.Punishment) error
	DeleteExpiredWarns(ctx context.Context, now int64) (int64, error)
}

// TaskStore is what the sweep needs from the task table.
type TaskStore interface {
	FindDue(ctx context.Context, before int64) (map[string][]model.Task, error)
	DeleteDue(ctx context.Context, guildID string, before int64, types ...model.PunishmentType) (int64, error)
	Consume(ctx context.Context, task model.Task) (bool, error)
	Reschedule(ctx context.Context, task model.Task, expires int64) (bool, error)
}

// GuildState is what the bot currently knows about a guild.
type GuildState int

const (
	// GuildPresent guilds are loaded and can be acted in.
	GuildPresent GuildState = iota
	// GuildUnavailable guilds are still loading or in an outage. Their tasks wait.
	GuildUnavailable
	// GuildGone guilds have removed the bot. Their tasks are dropped.
	GuildGone
)

// Guilds reports which guilds the bot is still a member of.
type Guilds interface {
	GuildState(guildID string) GuildState
}

// SweeperConfig wires a Sweeper.
type SweeperConfig struct {
	Punishments PunishmentStore
	Tasks       TaskStore
	Guilds      Guilds
	Enforcer    punish.Enforcer
	Members     punish.Members
	Notifier    punish.Notifier
	Audit       punish.AuditLog
	Clock       punish.Clock
	BotID       string

	Interval time.Duration
	Workers  int
	// Registerer receives the sweep counters. Nil keeps them unregistered.
	Registerer prometheus.Registerer
}

// SweepReport summarizes one pass.
type SweepReport struct {
	ExpiredWarns   int64
	Reversed       int
	DriftCorrected int
	Dropped        int64
	Skipped        int
}

type sweepMetrics struct {
	ticks    prometheus.Counter
	warns    prometheus.Counter
	reversed *prometheus.CounterVec
	drift    prometheus.Counter
	dropped  *prometheus.CounterVec
}

func newSweepMetrics(reg prometheus.Registerer) *sweepMetrics {
	m := &sweepMetrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modbot", Subsystem: "sweep", Name: "ticks_total",
			Help: "Completed expiry sweeps.",
		}),
		warns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modbot", Subsystem: "sweep", Name: "expired_warns_total",
			Help: "Expired warnings removed.",
		}),
		reversed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modbot", Subsystem: "sweep", Name: "reversals_total",
			Help: "Temporary punishments lifted, by type.",
		}, []string{"type"}),
		drift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modbot", Subsystem: "sweep", Name: "drift_corrections_total",
			Help: "Mute tasks moved to match a longer live timeout.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modbot", Subsystem: "sweep", Name: "dropped_tasks_total",
			Help: "Due tasks discarded without a reversal, by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.ticks, m.warns, m.reversed, m.drift, m.dropped)
	}
	return m
}

// Sweeper lifts temporary punishments once they expire.
type Sweeper struct {
	cfg     SweeperConfig
	metrics *sweepMetrics
	logger  *zap.Logger
}

// NewSweeper creates a Sweeper. Interval defaults to a minute.
func NewSweeper(cfg SweeperConfig, logger *zap.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Clock == nil {
		cfg.Clock = punish.SystemClock{}
	}
	return &Sweeper{
		cfg:     cfg,
		metrics: newSweepMetrics(cfg.Registerer),
		logger:  logger.Named("sweeper"),
	}
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("Starting expiry sweep", zap.Duration("interval", s.cfg.Interval))
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Expiry sweep failed", zap.Error(err))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.logger.Info("Expiry sweep stopped")
			return
		}
	}
}

// Tick performs a single sweep.
func (s *Sweeper) Tick(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := s.cfg.Clock.Now().UnixMilli()

	n, err := s.cfg.Punishments.DeleteExpiredWarns(ctx, now)
	if err != nil {
		return report, errors.WrapIf(err, "failed to delete expired warnings")
	}
	report.ExpiredWarns = n
	s.metrics.warns.Add(float64(n))

	due, err := s.cfg.Tasks.FindDue(ctx, now)
	if err != nil {
		return report, errors.WrapIf(err, "failed to get due tasks")
	}

	var mu sync.Mutex
	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.cfg.Workers)
	for guildID, tasks := range due {
		p.Go(func(ctx context.Context) error {
			r, err := s.sweepGuild(ctx, guildID, tasks, now)

			mu.Lock()
			report.Reversed += r.Reversed
			report.DriftCorrected += r.DriftCorrected
			report.Dropped += r.Dropped
			report.Skipped += r.Skipped
			mu.Unlock()

			if err != nil {
				s.logger.Error("Failed to sweep guild", zap.String("guild_id", guildID), zap.Error(err))
			}
			return err
		})
	}
	err = p.Wait()

	s.metrics.ticks.Inc()
	if report.ExpiredWarns > 0 || report.Reversed > 0 || report.DriftCorrected > 0 || report.Dropped > 0 {
		s.logger.Info("Expiry sweep finished",
			zap.Int64("expired_warns", report.ExpiredWarns),
			zap.Int("reversed", report.Reversed),
			zap.Int("drift_corrected", report.DriftCorrected),
			zap.Int64("dropped", report.Dropped))
	}
	return report, err
}

func (s *Sweeper) sweepGuild(ctx context.Context, guildID string, tasks []model.Task, now int64) (SweepReport, error) {
	var report SweepReport
	logger := s.logger.With(zap.String("guild_id", guildID))

	switch s.cfg.Guilds.GuildState(guildID) {
	case GuildUnavailable:
		report.Skipped += len(tasks)
		logger.Debug("Guild unavailable, retrying next tick", zap.Int("tasks", len(tasks)))
		return report, nil
	case GuildGone:
		n, err := s.cfg.Tasks.DeleteDue(ctx, guildID, now)
		report.Dropped += n
		s.metrics.dropped.WithLabelValues("guild_removed").Add(float64(n))
		logger.Info("Dropped tasks for removed guild", zap.Int64("count", n))
		return report, err
	}

	canUnban, err := s.cfg.Enforcer.CanEnforce(ctx, guildID, model.PunishmentUnban)
	if err != nil {
		return report, errors.WrapIf(err, "failed to check ban permission")
	}
	if !canUnban {
		n, err := s.cfg.Tasks.DeleteDue(ctx, guildID, now, model.PunishmentBan)
		if err != nil {
			return report, err
		}
		report.Dropped += n
		s.metrics.dropped.WithLabelValues("missing_permission").Add(float64(n))
		logger.Warn("Dropped ban tasks, missing ban permission", zap.Int64("count", n))
	}

	var errs []error
	for _, task := range tasks {
		if task.Type == model.PunishmentBan && !canUnban {
			continue
		}
		if err := s.sweepTask(ctx, task, &report, logger); err != nil {
			errs = append(errs, err)
		}
	}
	return report, errors.Combine(errs...)
}

func (s *Sweeper) sweepTask(ctx context.Context, task model.Task, report *SweepReport, logger *zap.Logger) error {
	logger = logger.With(zap.String("user_id", task.UserID), zap.String("type", string(task.Type)))

	reversal, ok := task.Type.Reversal()
	if !ok {
		logger.Warn("Dropping task of a type that can't be reversed")
		_, err := s.cfg.Tasks.Consume(ctx, task)
		return err
	}

	if task.Type == model.PunishmentMute {
		until, present, err := s.cfg.Members.MemberTimeout(ctx, task.GuildID, task.UserID)
		if err != nil {
			logger.Warn("Failed to look up member timeout", zap.Error(err))
		} else if present && until != nil && until.UnixMilli() > task.Expires+model.DriftTolerance {
			moved, err := s.cfg.Tasks.Reschedule(ctx, task, until.UnixMilli())
			if err != nil {
				return err
			}
			if moved {
				report.DriftCorrected++
				s.metrics.drift.Inc()
				logger.Info("Mute was extended outside the bot, moved task",
					zap.Int64("expires", task.Expires),
					zap.Int64("live_until", until.UnixMilli()))
			}
			return nil
		}
	}

	// Claim the task before acting so a rescheduled or concurrently swept task
	// is never lifted twice.
	claimed, err := s.cfg.Tasks.Consume(ctx, task)
	if err != nil {
		return err
	}
	if !claimed {
		report.Skipped++
		logger.Debug("Task changed since it was read, skipping")
		return nil
	}

	reason := "Mute expired."
	if task.Type == model.PunishmentBan {
		reason = "Ban expired."
	}

	if task.Type == model.PunishmentBan {
		err = s.cfg.Enforcer.Unban(ctx, task.GuildID, task.UserID, reason)
	} else {
		err = s.cfg.Enforcer.Timeout(ctx, task.GuildID, task.UserID, nil, reason)
	}
	if err != nil {
		logger.Warn("Failed to lift punishment", zap.Error(err))
	}

	record := model.Punishment{
		GuildID:     task.GuildID,
		UserID:      task.UserID,
		ModeratorID: s.cfg.BotID,
		Type:        reversal,
		Date:        s.cfg.Clock.Now().UnixMilli(),
		Reason:      reason,
	}
	if err := s.cfg.Punishments.Create(ctx, &record); err != nil {
		return errors.WrapIf(err, "failed to record reversal")
	}
	report.Reversed++
	s.metrics.reversed.WithLabelValues(string(task.Type)).Inc()

	if err := s.cfg.Notifier.NotifyPunishment(ctx, record, ""); err != nil {
		logger.Debug("Failed to notify member", zap.Error(err))
	}
	if err := s.cfg.Audit.LogPunishment(ctx, record, ""); err != nil {
		logger.Warn("Failed to write punishment log", zap.Error(err))
	}
	return nil
}
