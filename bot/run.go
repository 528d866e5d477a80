package bot

import (
	"context"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Run connects to the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Session.Open(); err != nil {
		return errors.Wrap(err, "failed to open connection")
	}
	defer b.Close()

	// The first tick must not see READY's placeholder guilds.
	if err := b.waitForGuilds(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		b.Logger.Warn("Starting the sweep with guilds still loading", zap.Error(err))
	}
	b.scheduler.Start(ctx)
	defer b.scheduler.Stop()

	if b.Config.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              b.Config.MetricsAddr,
			Handler:           b.metricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			b.Logger.Info("Serving metrics", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				b.Logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	b.Logger.Info("Bot is now running")
	<-ctx.Done()
	return nil
}

func (b *Bot) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(b.Registry, promhttp.HandlerOpts{}))
	return mux
}

// Close disconnects from the gateway.
func (b *Bot) Close() {
	b.Logger.Info("Gracefully shutting down")
	if err := b.Session.Close(); err != nil {
		b.Logger.Warn("Failed to close session", zap.Error(err))
	}
}
