package bot

import (
	"context"
	"time"

	"modbot/scanner"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

const guildLoadTimeout = 30 * time.Second

var errGuildsLoading = errors.New("guilds did not finish loading")

// SweepOnce connects, waits until every guild has been delivered by the
// gateway and runs a single sweep. It refuses to sweep with guilds still
// loading.
func (b *Bot) SweepOnce(ctx context.Context) (scanner.SweepReport, error) {
	if err := b.Session.Open(); err != nil {
		return scanner.SweepReport{}, errors.Wrap(err, "failed to open connection")
	}
	defer b.Close()

	if err := b.waitForGuilds(ctx); err != nil {
		return scanner.SweepReport{}, errors.WrapIf(err, "not sweeping")
	}
	return b.Sweeper.Tick(ctx)
}

// waitForGuilds blocks until the gateway has delivered every READY guild.
func (b *Bot) waitForGuilds(ctx context.Context) error {
	wait, cancel := context.WithTimeout(ctx, guildLoadTimeout)
	defer cancel()
	select {
	case <-b.loaded:
		return nil
	case <-wait.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errGuildsLoading
	}
}

// checkGuildsLoaded closes b.loaded once READY's guilds have all arrived.
func (b *Bot) checkGuildsLoaded(s *discordgo.Session) {
	if s.State == nil || !guildsLoaded(s.State) {
		return
	}
	b.loadOnce.Do(func() { close(b.loaded) })
}

func guildsLoaded(state *discordgo.State) bool {
	state.RLock()
	defer state.RUnlock()
	if state.User == nil {
		return false
	}
	for _, g := range state.Guilds {
		if g.Unavailable {
			return false
		}
	}
	return true
}
