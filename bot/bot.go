package bot

import (
	"sync"
	"time"

	"modbot/config"
	"modbot/model"
	"modbot/punish"
	"modbot/scanner"
	"modbot/utils"
	"modbot/utils/database"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Handler handles an interaction.
type Handler func(s *discordgo.Session, i *discordgo.InteractionCreate)

type Bot struct {
	Session            *discordgo.Session
	RegisteredCommands []*discordgo.ApplicationCommand
	Config             *model.Config
	Guilds             *config.Guilds
	Store              *database.Store
	Platform           *Platform
	Issuer             *punish.Issuer
	Manager            *punish.Manager
	Sweeper            *scanner.Sweeper
	Locks              *utils.CommandLocks
	Registry           *prometheus.Registry
	Metrics            *punish.Metrics
	Logger             *zap.Logger
	// CommandHandlers are keyed by command name, ComponentHandlers by custom id prefix.
	CommandHandlers   map[string]Handler
	ComponentHandlers map[string]Handler
	// Commands returns the commands to register in each guild.
	Commands func() []*discordgo.ApplicationCommand

	startedAt time.Time
	scheduler *Scheduler
	// loaded is closed once every READY guild has arrived.
	loaded   chan struct{}
	loadOnce sync.Once
}

// New wires the session, stores and engine together. Handlers are added by the caller.
func New(cfg *model.Config, guilds *config.Guilds, store *database.Store, logger *zap.Logger) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is not set")
	}
	if cfg.AppID == "" {
		return nil, errors.New("APP_ID is not set")
	}

	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentGuildModeration |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	dg.StateEnabled = true

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	metrics := punish.NewMetrics(registry)

	platform := NewPlatform(dg)
	notifier := utils.NewDMNotifier(dg, guilds)
	audit := utils.NewChannelAuditLog(dg, guilds)

	// Application and bot user ids are the same for bot accounts.
	botID := cfg.AppID

	deps := punish.Deps{
		Punishments: store.Punishments,
		Tasks:       store.Tasks,
		Rules:       store.Rules,
		Enforcer:    platform,
		Members:     platform,
		Notifier:    notifier,
		Audit:       audit,
		Metrics:     metrics,
		BotID:       botID,
	}
	issuer := punish.NewIssuer(deps, logger)

	sweeper := scanner.NewSweeper(scanner.SweeperConfig{
		Punishments: store.Punishments,
		Tasks:       store.Tasks,
		Guilds:      platform,
		Enforcer:    platform,
		Members:     platform,
		Notifier:    notifier,
		Audit:       audit,
		BotID:       botID,
		Interval:    cfg.SweepInterval,
		Workers:     cfg.SweepWorkers,
		Registerer:  registry,
	}, logger)

	b := &Bot{
		Session:           dg,
		Config:            cfg,
		Guilds:            guilds,
		Store:             store,
		Platform:          platform,
		Issuer:            issuer,
		Manager:           punish.NewManager(deps, issuer, logger),
		Sweeper:           sweeper,
		Locks:             utils.NewCommandLocks(cfg.LockTTL),
		Registry:          registry,
		Metrics:           metrics,
		Logger:            logger,
		CommandHandlers:   make(map[string]Handler),
		ComponentHandlers: make(map[string]Handler),
		startedAt:         time.Now(),
		loaded:            make(chan struct{}),
	}
	b.scheduler = NewScheduler(sweeper, logger)
	b.addListeners()
	return b, nil
}

// StartedAt is when the bot was created.
func (b *Bot) StartedAt() time.Time {
	return b.startedAt
}

// BotID is the bot's own user id.
func (b *Bot) BotID() string {
	return b.Config.AppID
}

// RefreshCommands overwrites the guild's slash commands.
func (b *Bot) RefreshCommands(guildID string) {
	if b.Commands == nil {
		return
	}
	cmds := b.Commands()
	registered, err := b.Session.ApplicationCommandBulkOverwrite(b.Config.AppID, guildID, cmds)
	if err != nil {
		b.Logger.Error("Failed to register commands", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	b.RegisteredCommands = append(b.RegisteredCommands, registered...)
	b.Logger.Debug("Registered commands", zap.String("guild_id", guildID), zap.Int("count", len(registered)))
}

// ReloadConfig drops cached guild configuration and re-registers commands.
func (b *Bot) ReloadConfig() {
	b.Logger.Info("Reloading guild configuration")
	b.Guilds.Reload()
	for _, g := range b.Session.State.Guilds {
		go b.RefreshCommands(g.ID)
	}
}
