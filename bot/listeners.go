package bot

import (
	"context"
	"strings"
	"time"

	"modbot/model"
	"modbot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const listenerTimeout = 10 * time.Second

func (b *Bot) addListeners() {
	b.Session.AddHandler(b.onReady)
	b.Session.AddHandler(b.onGuildCreate)
	b.Session.AddHandler(b.onInteraction)
	b.Session.AddHandler(b.onMemberUpdate)
	b.Session.AddHandler(b.onBanRemove)
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.checkGuildsLoaded(s)
	b.Logger.Info("Logged in", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))

	ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
	defer cancel()
	err := utils.SendSystemLog(ctx, s, b.Config.LogChannelID, utils.Info, "System", "Startup", "Bot has started successfully.")
	if err != nil {
		b.Logger.Warn("Failed to send startup log", zap.Error(err))
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.checkGuildsLoaded(s)
	if g.Unavailable {
		return
	}
	b.RefreshCommands(g.ID)
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if h, ok := b.CommandHandlers[i.ApplicationCommandData().Name]; ok {
			h(s, i)
		}
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		prefix, _, _ := strings.Cut(customID, ":")
		if h, ok := b.ComponentHandlers[prefix]; ok {
			h(s, i)
		}
	}
}

// onMemberUpdate drops the mute task of a member whose timeout was removed
// outside the bot.
func (b *Bot) onMemberUpdate(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.Member == nil || m.User == nil {
		return
	}
	if !timeoutLifted(m.BeforeUpdate, m.Member, time.Now()) {
		return
	}
	b.dropTask(m.GuildID, m.User.ID, model.PunishmentMute)
}

// timeoutLifted reports whether an update took away a live timeout. An
// uncached old state says nothing, since the timeout may have simply run out.
func timeoutLifted(before, after *discordgo.Member, now time.Time) bool {
	if before == nil || !timedOut(before, now) {
		return false
	}
	return !timedOut(after, now)
}

// onBanRemove drops the ban task of a user unbanned outside the bot.
func (b *Bot) onBanRemove(_ *discordgo.Session, e *discordgo.GuildBanRemove) {
	if e.User == nil {
		return
	}
	b.dropTask(e.GuildID, e.User.ID, model.PunishmentBan)
}

func (b *Bot) dropTask(guildID, userID string, t model.PunishmentType) {
	ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
	defer cancel()

	deleted, err := b.Store.Tasks.Delete(ctx, model.TaskKey{UserID: userID, GuildID: guildID, Type: t})
	logger := b.Logger.With(zap.String("guild_id", guildID), zap.String("user_id", userID), zap.String("type", string(t)))
	if err != nil {
		logger.Error("Failed to drop task after manual lift", zap.Error(err))
		return
	}
	if deleted {
		logger.Info("Dropped task after manual lift")
	}
}

func timedOut(m *discordgo.Member, now time.Time) bool {
	return m.CommunicationDisabledUntil != nil && m.CommunicationDisabledUntil.After(now)
}
