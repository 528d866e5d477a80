package scanner

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"modbot/model"
	"modbot/utils/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

// stubGuilds treats unlisted guilds as gone.
type stubGuilds map[string]GuildState

func (g stubGuilds) GuildState(guildID string) GuildState {
	if st, ok := g[guildID]; ok {
		return st
	}
	return GuildGone
}

type stubEnforcer struct {
	mu       sync.Mutex
	calls    []string
	noBanIn  map[string]bool
	timeouts map[string]time.Time
}

func (e *stubEnforcer) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *stubEnforcer) Ban(_ context.Context, guildID, userID, _ string) error {
	e.record("ban " + guildID + " " + userID)
	return nil
}

func (e *stubEnforcer) Kick(_ context.Context, guildID, userID, _ string) error {
	e.record("kick " + guildID + " " + userID)
	return nil
}

func (e *stubEnforcer) Timeout(_ context.Context, guildID, userID string, until *time.Time, _ string) error {
	if until == nil {
		e.record("untimeout " + guildID + " " + userID)
	} else {
		e.record("timeout " + guildID + " " + userID)
	}
	return nil
}

func (e *stubEnforcer) Unban(_ context.Context, guildID, userID, _ string) error {
	e.record("unban " + guildID + " " + userID)
	return nil
}

func (e *stubEnforcer) CanEnforce(_ context.Context, guildID string, t model.PunishmentType) (bool, error) {
	if t == model.PunishmentBan || t == model.PunishmentUnban {
		return !e.noBanIn[guildID], nil
	}
	return true, nil
}

func (e *stubEnforcer) MemberTimeout(_ context.Context, _, userID string) (*time.Time, bool, error) {
	if until, ok := e.timeouts[userID]; ok {
		return &until, true, nil
	}
	return nil, true, nil
}

type stubSink struct {
	mu      sync.Mutex
	dms     []model.Punishment
	entries []model.Punishment
}

func (s *stubSink) NotifyPunishment(_ context.Context, p model.Punishment, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dms = append(s.dms, p)
	return nil
}

func (s *stubSink) NotifyEdit(context.Context, model.PunishmentEdit) error { return nil }

func (s *stubSink) LogPunishment(_ context.Context, p model.Punishment, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, p)
	return nil
}

func (s *stubSink) LogEdit(context.Context, model.PunishmentEdit) error { return nil }

type sweepEnv struct {
	store    *database.Store
	enforcer *stubEnforcer
	sink     *stubSink
	sweeper  *Sweeper
	now      int64
}

func newSweepEnv(t *testing.T, guilds stubGuilds) *sweepEnv {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "modbot.db"))
	require.NoError(t, err)
	store, err := database.New(db, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := time.UnixMilli(1_700_000_000_000)
	env := &sweepEnv{
		store:    store,
		enforcer: &stubEnforcer{noBanIn: map[string]bool{}, timeouts: map[string]time.Time{}},
		sink:     &stubSink{},
		now:      now.UnixMilli(),
	}
	env.sweeper = NewSweeper(SweeperConfig{
		Punishments: store.Punishments,
		Tasks:       store.Tasks,
		Guilds:      guilds,
		Enforcer:    env.enforcer,
		Members:     env.enforcer,
		Notifier:    env.sink,
		Audit:       env.sink,
		Clock:       stubClock{now: now},
		BotID:       "bot",
	}, zap.NewNop())
	return env
}

func (e *sweepEnv) addTask(t *testing.T, guildID, userID string, typ model.PunishmentType, expires int64) {
	t.Helper()
	require.NoError(t, e.store.Tasks.Upsert(context.Background(), model.Task{
		UserID: userID, GuildID: guildID, Type: typ, Expires: expires,
	}))
}

func (e *sweepEnv) records(t *testing.T, guildID string) []model.Punishment {
	t.Helper()
	records, err := e.store.Punishments.FindMany(context.Background(),
		database.PunishmentFilter{GuildID: guildID}, database.OldestFirst, database.Page{})
	require.NoError(t, err)
	return records
}

func (e *sweepEnv) tasks(t *testing.T) int {
	t.Helper()
	n, err := e.store.Tasks.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestSweepReversesTaskDueExactlyNow(t *testing.T) {
	t.Parallel()

	env := newSweepEnv(t, stubGuilds{"g1": GuildPresent})
	env.addTask(t, "g1", "u1", model.PunishmentMute, env.now)
	env.addTask(t, "g1", "u2", model.PunishmentBan, env.now-1000)
	env.addTask(t, "g1", "u3", model.PunishmentMute, env.now+1)

	report, err := env.sweeper.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Reversed)
	assert.Equal(t, 1, env.tasks(t))

	assert.ElementsMatch(t, []string{"untimeout g1 u1", "unban g1 u2"}, env.enforcer.calls)

	records := env.records(t, "g1")
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "bot", r.ModeratorID)
		switch r.UserID {
		case "u1":
			assert.Equal(t, model.PunishmentUnmute, r.Type)
			assert.Equal(t, "Mute expired.", r.Reason)
		case "u2":
			assert.Equal(t, model.PunishmentUnban, r.Type)
			assert.Equal(t, "Ban expired.", r.Reason)
		default:
			t.Fatalf("unexpected record for %s", r.UserID)
		}
	}
	assert.Len(t, env.sink.dms, 2)
	assert.Len(t, env.sink.entries, 2)
}

func TestSweepCorrectsDrift(t *testing.T) {
	t.Parallel()

	env := newSweepEnv(t, stubGuilds{"g1": GuildPresent})
	env.addTask(t, "g1", "u1", model.PunishmentMute, env.now)
	live := time.UnixMilli(env.now + 15_000)
	env.enforcer.timeouts["u1"] = live

	report, err := env.sweeper.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Reversed)
	assert.Equal(t, 1, report.DriftCorrected)
	assert.Empty(t, env.enforcer.calls)
	assert.Empty(t, env.records(t, "g1"))

	assert.Equal(t, 1, env.tasks(t))
	task, err := env.store.Tasks.Get(context.Background(), model.TaskKey{UserID: "u1", GuildID: "g1", Type: model.PunishmentMute})
	require.NoError(t, err)
	assert.Equal(t, live.UnixMilli(), task.Expires)
}

func TestSweepIgnoresDriftWithinTolerance(t *testing.T) {
	t.Parallel()

	env := newSweepEnv(t, stubGuilds{"g1": GuildPresent})
	env.addTask(t, "g1", "u1", model.PunishmentMute, env.now)
	env.enforcer.timeouts["u1"] = time.UnixMilli(env.now + model.DriftTolerance)

	report, err := env.sweeper.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reversed)
	assert.Zero(t, env.tasks(t))
}

func TestSweepDropsTasksOfRemovedGuild(t *testing.T) {
	t.Parallel()

	env := newSweepEnv(t, stubGuilds{})
	env.addTask(t, "gone", "u1", model.PunishmentMute, env.now-1)
	env.addTask(t, "gone", "u2", model.PunishmentBan, env.now-1)

	report, err := env.sweeper.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Dropped)
	assert.Zero(t, report.Reversed)
	assert.Zero(t, env.tasks(t))
	assert.Empty(t, env.enforcer.calls)
	assert.Empty(t, env.records(t, "gone"))
}

func TestSweepKeepsTasksOfUnavailableGuild(t *testing.T) {
	t.Parallel()

	env := newSweepEnv(t, stubGuilds{"g1": GuildUnavailable, "g2": GuildPresent})
	env.addTask(t, "g1", "u1", model.PunishmentBan, env.now-1000)
	env.addTask(t, "g1", "u2", model.PunishmentMute, env.now-1000)
	env.addTask(t, "g2", "u3", model.PunishmentBan, env.now-1000)

	report, err := env.sweeper.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Dropped)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, report.Reversed)
	assert.Equal(t, 2, env.tasks(t))
	assert.Equal(t, []string{"unban g2 u3"}, env.enforcer.calls)
	assert.Empty(t, env.records(t, "g1"))

	// once the guild is back the next tick reverses them
	env.sweeper.cfg.Guilds = stubGuilds{"g1": GuildPresent}
	report, err = env.sweeper.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Reversed)
	assert.Zero(t, env.tasks(t))
	assert.Len(t, env.records(t, "g1"), 2)
}

func TestSweepWithoutBanPermissionStillLiftsMutes(t *testing.T) {
	t.Parallel()

	env := newSweepEnv(t, stubGuilds{"g1": GuildPresent})
	env.enforcer.noBanIn["g1"] = true
	env.addTask(t, "g1", "u1", model.PunishmentMute, env.now-1)
	env.addTask(t, "g1", "u2", model.PunishmentBan, env.now-1)

	report, err := env.sweeper.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reversed)
	assert.Equal(t, int64(1), report.Dropped)
	assert.Zero(t, env.tasks(t))
	assert.Equal(t, []string{"untimeout g1 u1"}, env.enforcer.calls)

	records := env.records(t, "g1")
	require.Len(t, records, 1)
	assert.Equal(t, model.PunishmentUnmute, records[0].Type)
}

func TestSweepForgetsExpiredWarnings(t *testing.T) {
	t.Parallel()

	env := newSweepEnv(t, stubGuilds{"g1": GuildPresent})
	ctx := context.Background()
	expired, kept := env.now-1, env.now+60_000
	for _, expires := range []*int64{&expired, &kept, nil} {
		require.NoError(t, env.store.Punishments.Create(ctx, &model.Punishment{
			GuildID: "g1", UserID: "u1", ModeratorID: "m1", Type: model.PunishmentWarn,
			Date: env.now - 120_000, Expires: expires, Reason: "spam",
		}))
	}

	report, err := env.sweeper.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.ExpiredWarns)
	assert.Len(t, env.records(t, "g1"), 2)
	assert.Empty(t, env.sink.dms)
	assert.Empty(t, env.sink.entries)
}
