package bot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"modbot/model"
	"modbot/punish"
	"modbot/scanner"
	"modbot/utils/database"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSession() *discordgo.Session {
	return &discordgo.Session{State: discordgo.NewState(), StateEnabled: true}
}

func sendReady(t *testing.T, s *discordgo.Session, guilds ...*discordgo.Guild) {
	t.Helper()
	require.NoError(t, s.State.OnInterface(s, &discordgo.Ready{
		User:   &discordgo.User{ID: "bot"},
		Guilds: guilds,
	}))
}

func TestPlatformGuildState(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	p := NewPlatform(s)
	assert.Equal(t, scanner.GuildUnavailable, p.GuildState("g1"), "before READY")

	sendReady(t, s, &discordgo.Guild{ID: "g1", Unavailable: true}, &discordgo.Guild{ID: "g2", Unavailable: true})
	assert.Equal(t, scanner.GuildUnavailable, p.GuildState("g1"))
	assert.Equal(t, scanner.GuildGone, p.GuildState("g3"))

	require.NoError(t, s.State.OnInterface(s, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1"}}))
	assert.Equal(t, scanner.GuildPresent, p.GuildState("g1"))

	// outage: the gateway drops the guild from state but flags it unavailable
	outage := &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g1", Unavailable: true}}
	_ = s.State.OnInterface(s, outage)
	p.onGuildDelete(s, outage)
	assert.Equal(t, scanner.GuildUnavailable, p.GuildState("g1"))

	back := &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1"}}
	require.NoError(t, s.State.OnInterface(s, back))
	p.onGuildCreate(s, back)
	assert.Equal(t, scanner.GuildPresent, p.GuildState("g1"))

	removed := &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g1"}}
	_ = s.State.OnInterface(s, removed)
	p.onGuildDelete(s, removed)
	assert.Equal(t, scanner.GuildGone, p.GuildState("g1"))
}

func TestSweepKeepsTasksWhileGuildsLoad(t *testing.T) {
	t.Parallel()

	db, err := database.Open(filepath.Join(t.TempDir(), "modbot.db"))
	require.NoError(t, err)
	store, err := database.New(db, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.Tasks.Upsert(ctx, model.Task{
		UserID: "u1", GuildID: "g1", Type: model.PunishmentBan, Expires: now.Add(-time.Second).UnixMilli(),
	}))

	s := newTestSession()
	sendReady(t, s, &discordgo.Guild{ID: "g1", Unavailable: true})
	platform := NewPlatform(s)

	sweeper := scanner.NewSweeper(scanner.SweeperConfig{
		Punishments: store.Punishments,
		Tasks:       store.Tasks,
		Guilds:      platform,
		Enforcer:    platform,
		Members:     platform,
		Clock:       punish.SystemClock{},
		BotID:       "bot",
	}, zap.NewNop())

	report, err := sweeper.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Dropped)
	assert.Zero(t, report.Reversed)
	assert.Equal(t, 1, report.Skipped)

	n, err := store.Tasks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCheckGuildsLoaded(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	b := &Bot{loaded: make(chan struct{})}

	b.checkGuildsLoaded(s)
	assert.False(t, isClosed(b.loaded), "before READY")

	sendReady(t, s, &discordgo.Guild{ID: "g1", Unavailable: true}, &discordgo.Guild{ID: "g2", Unavailable: true})
	b.checkGuildsLoaded(s)
	assert.False(t, isClosed(b.loaded))

	require.NoError(t, s.State.OnInterface(s, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1"}}))
	b.checkGuildsLoaded(s)
	assert.False(t, isClosed(b.loaded))

	require.NoError(t, s.State.OnInterface(s, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g2"}}))
	b.checkGuildsLoaded(s)
	b.checkGuildsLoaded(s)
	assert.True(t, isClosed(b.loaded))
	require.NoError(t, b.waitForGuilds(context.Background()))
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
