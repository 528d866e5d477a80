package punish

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"modbot/model"
	"modbot/utils/database"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testGuild = "guild-1"
	testUser  = "user-1"
	testMod   = "mod-1"
	testBot   = "bot"
)

type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(ev string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, ev)
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeEnforcer struct {
	events *events
	denied map[model.PunishmentType]bool
	err    error
}

func (f *fakeEnforcer) Ban(_ context.Context, _, userID, _ string) error {
	f.events.add("ban " + userID)
	return f.err
}

func (f *fakeEnforcer) Kick(_ context.Context, _, userID, _ string) error {
	f.events.add("kick " + userID)
	return f.err
}

func (f *fakeEnforcer) Timeout(_ context.Context, _, userID string, until *time.Time, _ string) error {
	if until == nil {
		f.events.add("untimeout " + userID)
	} else {
		f.events.add("timeout " + userID)
	}
	return f.err
}

func (f *fakeEnforcer) Unban(_ context.Context, _, userID, _ string) error {
	f.events.add("unban " + userID)
	return f.err
}

func (f *fakeEnforcer) CanEnforce(_ context.Context, _ string, t model.PunishmentType) (bool, error) {
	return !f.denied[t], nil
}

type fakeMembers struct {
	until  *time.Time
	absent bool
}

func (f *fakeMembers) MemberTimeout(context.Context, string, string) (*time.Time, bool, error) {
	return f.until, !f.absent, nil
}

type fakeNotifier struct {
	events      *events
	mu          sync.Mutex
	punishments []model.Punishment
	edits       []model.PunishmentEdit
}

func (f *fakeNotifier) NotifyPunishment(_ context.Context, p model.Punishment, _ string) error {
	f.events.add("dm " + p.UserID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.punishments = append(f.punishments, p)
	return nil
}

func (f *fakeNotifier) NotifyEdit(_ context.Context, edit model.PunishmentEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit)
	return nil
}

type fakeAudit struct {
	mu          sync.Mutex
	punishments []model.Punishment
	edits       []model.PunishmentEdit
}

func (f *fakeAudit) LogPunishment(_ context.Context, p model.Punishment, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.punishments = append(f.punishments, p)
	return nil
}

func (f *fakeAudit) LogEdit(_ context.Context, edit model.PunishmentEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit)
	return nil
}

type testEnv struct {
	store    *database.Store
	events   *events
	clock    *testClock
	enforcer *fakeEnforcer
	members  *fakeMembers
	notifier *fakeNotifier
	audit    *fakeAudit
	issuer   *Issuer
	manager  *Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "modbot.db"))
	require.NoError(t, err)
	store, err := database.New(db, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ev := &events{}
	env := &testEnv{
		store:    store,
		events:   ev,
		clock:    &testClock{now: time.UnixMilli(1_700_000_000_000)},
		enforcer: &fakeEnforcer{events: ev, denied: map[model.PunishmentType]bool{}},
		members:  &fakeMembers{},
		notifier: &fakeNotifier{events: ev},
		audit:    &fakeAudit{},
	}

	deps := Deps{
		Punishments: store.Punishments,
		Tasks:       store.Tasks,
		Rules:       store.Rules,
		Enforcer:    env.enforcer,
		Members:     env.members,
		Notifier:    env.notifier,
		Audit:       env.audit,
		Clock:       env.clock,
		BotID:       testBot,
	}
	env.issuer = NewIssuer(deps, zap.NewNop())
	env.manager = NewManager(deps, env.issuer, zap.NewNop())
	return env
}

func (e *testEnv) issue(t *testing.T, req IssueRequest) *IssueResult {
	t.Helper()

	if req.GuildID == "" {
		req.GuildID = testGuild
	}
	if req.UserID == "" {
		req.UserID = testUser
	}
	if req.ModeratorID == "" {
		req.ModeratorID = testMod
	}
	if req.Reason == "" {
		req.Reason = "spamming"
	}
	res, err := e.issuer.Issue(context.Background(), req)
	require.NoError(t, err)
	return res
}

func (e *testEnv) userRecords(t *testing.T) []model.Punishment {
	t.Helper()

	records, err := e.store.Punishments.FindMany(context.Background(),
		database.PunishmentFilter{GuildID: testGuild, UserID: testUser},
		database.OldestFirst, database.Page{})
	require.NoError(t, err)
	return records
}

func (e *testEnv) taskCount(t *testing.T) int {
	t.Helper()

	n, err := e.store.Tasks.Count(context.Background())
	require.NoError(t, err)
	return n
}

func ms(d time.Duration) *int64 {
	v := d.Milliseconds()
	return &v
}

// farFuture is a duration whose expiry would overflow an int64.
func farFuture() *int64 {
	d := int64(math.MaxInt64 - 10)
	return &d
}

var approve = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
