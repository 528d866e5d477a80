package handlers

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"

	"modbot/bot"
	"modbot/model"
	"modbot/punish"
	"modbot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const automodTimeout = 30 * time.Second

var linkPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.|discord\.gg/)\S+`)

// MatchFilter reports whether content trips f. Single words match whole
// words, case-insensitively; phrases match anywhere.
func MatchFilter(f model.AutomodFilter, content string) bool {
	if f.BlockLinks && linkPattern.MatchString(content) {
		return true
	}
	if len(f.Words) == 0 {
		return false
	}

	lower := strings.ToLower(content)
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range f.Words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if strings.ContainsFunc(w, unicode.IsSpace) {
			if strings.Contains(lower, w) {
				return true
			}
			continue
		}
		if slices.Contains(tokens, w) {
			return true
		}
	}
	return false
}

// Immune reports whether the filter exempts the channel or any of the roles.
func Immune(f model.AutomodFilter, channelID string, roleIDs []string) bool {
	if slices.Contains(f.ImmuneChannels, channelID) {
		return true
	}
	for _, id := range roleIDs {
		if slices.Contains(f.ImmuneRoles, id) {
			return true
		}
	}
	return false
}

// AutomodRequest builds the punishment for a tripped filter. It returns false
// when the filter can't produce a valid punishment.
func AutomodRequest(f model.AutomodFilter, m *discordgo.Message, botID string) (punish.IssueRequest, bool) {
	var duration *int64
	if d := strings.TrimSpace(f.Duration); d != "" && d != "0" {
		ms, ok := utils.ParseDuration(d)
		if !ok {
			return punish.IssueRequest{}, false
		}
		duration = &ms
	}
	if f.Punishment == model.PunishmentMute && duration == nil {
		return punish.IssueRequest{}, false
	}

	reason := f.Reason
	if reason == "" {
		reason = "Triggered the " + f.Name + " filter."
	}
	return punish.IssueRequest{
		GuildID:     m.GuildID,
		UserID:      m.Author.ID,
		ModeratorID: botID,
		Type:        f.Punishment,
		Duration:    duration,
		Reason:      reason,
		Automod:     true,
		Trigger:     m.Content,
	}, true
}

type automod struct {
	b      *bot.Bot
	logger *zap.Logger
}

func (a *automod) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID == "" || m.Author == nil || m.Author.Bot || m.Member == nil {
		return
	}

	cfg, err := a.b.Guilds.Guild(m.GuildID)
	if err != nil {
		a.logger.Warn("Failed to load guild config", zap.String("guild_id", m.GuildID), zap.Error(err))
		return
	}

	for _, f := range cfg.Automod {
		if Immune(f, m.ChannelID, m.Member.Roles) || !MatchFilter(f, m.Content) {
			continue
		}
		req, ok := AutomodRequest(f, m.Message, a.b.BotID())
		if !ok {
			a.logger.Warn("Automod filter is misconfigured", zap.String("guild_id", m.GuildID), zap.String("filter", f.Name))
			return
		}
		a.punish(s, m, req, f.Name)
		return
	}
}

func (a *automod) punish(s *discordgo.Session, m *discordgo.MessageCreate, req punish.IssueRequest, filter string) {
	ctx, cancel := context.WithTimeout(context.Background(), automodTimeout)
	defer cancel()

	logger := a.logger.With(
		zap.String("guild_id", m.GuildID),
		zap.String("user_id", m.Author.ID),
		zap.String("filter", filter),
	)

	if err := s.ChannelMessageDelete(m.ChannelID, m.ID, discordgo.WithContext(ctx)); err != nil {
		logger.Warn("Failed to delete filtered message", zap.Error(err))
	}

	ctx = utils.WithCommandLocks(ctx, a.b.Locks)
	err := utils.RunExclusive(ctx, m.GuildID, "punish "+m.Author.ID, func(ctx context.Context) error {
		_, err := a.b.Issuer.Issue(ctx, req)
		return err
	})
	if err != nil {
		logger.Warn("Automod punishment failed", zap.Error(err))
	}
}
