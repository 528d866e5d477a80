package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"modbot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modbot.yaml")
	writeFile(t, path, `
database_path: /tmp/mod.db
sweep_interval: 30s
sweep_workers: 2
log_format: json
`)
	t.Setenv("MODBOT_LOG_LEVEL", "debug")
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("DEVELOPER_USER_IDS", "1, 2,,3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/mod.db", cfg.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 2, cfg.SweepWorkers)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "token", cfg.BotToken)
	assert.Equal(t, 10*time.Minute, cfg.LockTTL)
	assert.Equal(t, "config/guilds", cfg.GuildConfigDir)
	assert.Equal(t, []string{"1", "2", "3"}, cfg.DeveloperUserIDs)
}

func TestLoadRejectsBadSweepSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modbot.yaml")
	writeFile(t, path, "sweep_workers: 0\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGuilds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "123.yaml"), `
punishments:
  default_warn_duration: 30d
  default_mute_duration: 1h
  additional_info:
    ban: "Appeal at https://example.com/appeal"
logging:
  punishment_channel_id: "555"
  edit_channel_id: "556"
editor_role_ids: ["10"]
manager_role_ids: ["11", "12"]
automod:
  - name: slurs
    words: ["badword"]
    punishment: Warn
    reason: Prohibited language
    immune_roles: ["10"]
`)

	guilds := NewGuilds(dir)

	cfg, err := guilds.Guild("123")
	require.NoError(t, err)
	assert.Equal(t, "123", cfg.GuildID)
	assert.Equal(t, "30d", cfg.Punishments.WarnDuration)
	assert.Equal(t, "1h", cfg.Punishments.MuteDuration)
	assert.Equal(t, "Appeal at https://example.com/appeal", cfg.Punishments.AdditionalInfo.For(model.PunishmentBan))
	assert.Equal(t, "555", cfg.Logging.PunishmentChannelID)
	assert.Equal(t, []string{"11", "12"}, cfg.ManagerRoleIDs)
	require.Len(t, cfg.Automod, 1)
	assert.Equal(t, model.PunishmentWarn, cfg.Automod[0].Punishment)
	assert.Equal(t, []string{"badword"}, cfg.Automod[0].Words)

	again, err := guilds.Guild("123")
	require.NoError(t, err)
	assert.Same(t, cfg, again)

	guilds.Reload()
	reloaded, err := guilds.Guild("123")
	require.NoError(t, err)
	assert.NotSame(t, cfg, reloaded)

	empty, err := guilds.Guild("999")
	require.NoError(t, err)
	assert.Equal(t, &model.GuildConfig{GuildID: "999"}, empty)

	_, err = guilds.Guild("../etc")
	assert.Error(t, err)
}
