package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"modbot/bot"
	"modbot/config"
	"modbot/handlers"
	"modbot/model"
	"modbot/utils"
	"modbot/utils/database"

	"emperror.dev/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "modbot",
		Usage: "Discord moderation bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Connect to Discord and start moderating",
				Action: runBot,
			},
			{
				Name:   "sweep",
				Usage:  "Run a single expiry sweep and exit",
				Action: sweep,
			},
			{
				Name:   "migrate",
				Usage:  "Create or update the database schema and exit",
				Action: migrate,
			},
			{
				Name:  "pending",
				Usage: "List scheduled expiries due within a window",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "within",
						Value: 24 * time.Hour,
						Usage: "How far ahead to look",
					},
				},
				Action: pending,
			},
		},
		DefaultCommand: "run",
	}

	return app.Run(context.Background(), os.Args)
}

type app struct {
	cfg    *model.Config
	logger *zap.Logger
	store  *database.Store
}

func setup(c *cli.Command) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create data directory")
		}
	}
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	store, err := database.New(db, 1)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, store: store}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func runBot(ctx context.Context, c *cli.Command) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	b, err := bot.New(a.cfg, config.NewGuilds(a.cfg.GuildConfigDir), a.store, a.logger)
	if err != nil {
		return err
	}
	handlers.Register(b)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return b.Run(ctx)
}

func sweep(ctx context.Context, c *cli.Command) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	b, err := bot.New(a.cfg, config.NewGuilds(a.cfg.GuildConfigDir), a.store, a.logger)
	if err != nil {
		return err
	}
	report, err := b.SweepOnce(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Sweep finished",
		zap.Int64("expired_warns", report.ExpiredWarns),
		zap.Int("reversed", report.Reversed),
		zap.Int("drift_corrected", report.DriftCorrected),
		zap.Int64("dropped", report.Dropped),
		zap.Int("skipped", report.Skipped),
	)
	return nil
}

func migrate(_ context.Context, c *cli.Command) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	if err := database.Migrate(a.store.DB); err != nil {
		return err
	}
	a.logger.Info("Database is up to date", zap.String("path", a.cfg.DatabasePath))
	return nil
}

func pending(ctx context.Context, c *cli.Command) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	before := time.Now().Add(c.Duration("within")).UnixMilli()
	due, err := a.store.Tasks.FindDue(ctx, before)
	if err != nil {
		return err
	}

	guilds := make([]string, 0, len(due))
	for id := range due {
		guilds = append(guilds, id)
	}
	sort.Strings(guilds)

	for _, guildID := range guilds {
		fmt.Printf("%s\n", guildID)
		for _, t := range due[guildID] {
			fmt.Printf("  %-6s %s  %s\n", t.Type, t.UserID, time.UnixMilli(t.Expires).Format(time.RFC3339))
		}
	}
	if len(guilds) == 0 {
		fmt.Println("No expiries due.")
	}
	return nil
}
