package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"modbot/model"

	"emperror.dev/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads the process configuration from the environment, an optional .env
// file and an optional YAML config file. An empty path searches for
// config.yaml in the working directory and in ./config.
func Load(path string) (*model.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}

	v := viper.New()
	v.SetDefault("database_path", "data/modbot.db")
	v.SetDefault("guild_config_dir", "config/guilds")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("sweep_interval", time.Minute)
	v.SetDefault("sweep_workers", 4)
	v.SetDefault("lock_ttl", 10*time.Minute)

	v.SetEnvPrefix("MODBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("MODBOT_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	cfg := &model.Config{
		BotToken:         os.Getenv("BOT_TOKEN"),
		AppID:            os.Getenv("APP_ID"),
		LogChannelID:     os.Getenv("LOG_CHANNEL_ID"),
		DatabasePath:     v.GetString("database_path"),
		GuildConfigDir:   v.GetString("guild_config_dir"),
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
		MetricsAddr:      v.GetString("metrics_addr"),
		SweepInterval:    v.GetDuration("sweep_interval"),
		SweepWorkers:     v.GetInt("sweep_workers"),
		LockTTL:          v.GetDuration("lock_ttl"),
		DeveloperUserIDs: splitIDs(os.Getenv("DEVELOPER_USER_IDS")),
	}
	if cfg.BotToken == "" {
		cfg.BotToken = v.GetString("bot_token")
	}

	if cfg.SweepInterval <= 0 {
		return nil, errors.Errorf("sweep_interval must be positive, got %s", cfg.SweepInterval)
	}
	if cfg.SweepWorkers <= 0 {
		return nil, errors.Errorf("sweep_workers must be positive, got %d", cfg.SweepWorkers)
	}
	return cfg, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Guilds loads per-guild configuration from <dir>/<guild id>.yaml and caches it.
type Guilds struct {
	dir string

	mu     sync.RWMutex
	guilds map[string]*model.GuildConfig
}

// NewGuilds creates a guild config source reading from dir.
func NewGuilds(dir string) *Guilds {
	return &Guilds{dir: dir, guilds: make(map[string]*model.GuildConfig)}
}

// Guild returns the configuration of a guild. A guild without a file gets the
// zero configuration.
func (g *Guilds) Guild(guildID string) (*model.GuildConfig, error) {
	g.mu.RLock()
	cfg, ok := g.guilds[guildID]
	g.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	cfg, err := g.load(guildID)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.guilds[guildID] = cfg
	g.mu.Unlock()
	return cfg, nil
}

// Reload drops every cached guild configuration.
func (g *Guilds) Reload() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.guilds = make(map[string]*model.GuildConfig)
}

func (g *Guilds) load(guildID string) (*model.GuildConfig, error) {
	cfg := &model.GuildConfig{GuildID: guildID}
	if strings.ContainsAny(guildID, `/\.`) {
		return nil, errors.Errorf("invalid guild id %q", guildID)
	}

	path := filepath.Join(g.dir, guildID+".yaml")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config for guild %s", guildID)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config for guild %s", guildID)
	}
	cfg.GuildID = guildID
	return cfg, nil
}
