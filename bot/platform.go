package bot

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"modbot/model"
	"modbot/scanner"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

// Platform applies punishments through the Discord API and answers questions
// about live guild state.
type Platform struct {
	session *discordgo.Session

	mu sync.Mutex
	// outage holds guilds the gateway removed from state while Discord is down.
	outage map[string]struct{}
}

// NewPlatform creates a Platform on top of s.
func NewPlatform(s *discordgo.Session) *Platform {
	p := &Platform{session: s, outage: make(map[string]struct{})}
	s.AddHandler(p.onReady)
	s.AddHandler(p.onGuildCreate)
	s.AddHandler(p.onGuildDelete)
	return p
}

func (p *Platform) onReady(_ *discordgo.Session, _ *discordgo.Ready) {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.outage)
}

func (p *Platform) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.outage, g.ID)
}

func (p *Platform) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g.Unavailable {
		p.outage[g.ID] = struct{}{}
		return
	}
	delete(p.outage, g.ID)
}

// Ban bans the user without deleting their messages.
func (p *Platform) Ban(ctx context.Context, guildID, userID, reason string) error {
	err := p.session.GuildBanCreateWithReason(guildID, userID, auditReason(reason), 0, discordgo.WithContext(ctx))
	return errors.WrapIff(err, "failed to ban user %s in guild %s", userID, guildID)
}

// Kick removes the member from the guild.
func (p *Platform) Kick(ctx context.Context, guildID, userID, reason string) error {
	err := p.session.GuildMemberDeleteWithReason(guildID, userID, auditReason(reason), discordgo.WithContext(ctx))
	return errors.WrapIff(err, "failed to kick user %s in guild %s", userID, guildID)
}

// Timeout sets or, with a nil until, clears the member's timeout.
func (p *Platform) Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error {
	err := p.session.GuildMemberTimeout(guildID, userID, until,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(auditReason(reason)))
	return errors.WrapIff(err, "failed to update timeout of user %s in guild %s", userID, guildID)
}

// Unban lifts the user's ban.
func (p *Platform) Unban(ctx context.Context, guildID, userID, reason string) error {
	err := p.session.GuildBanDelete(guildID, userID,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(auditReason(reason)))
	return errors.WrapIff(err, "failed to unban user %s in guild %s", userID, guildID)
}

// CanEnforce reports whether the bot holds the guild permission t needs.
func (p *Platform) CanEnforce(ctx context.Context, guildID string, t model.PunishmentType) (bool, error) {
	var need int64
	switch t {
	case model.PunishmentWarn:
		return true, nil
	case model.PunishmentMute, model.PunishmentUnmute:
		need = discordgo.PermissionModerateMembers
	case model.PunishmentKick:
		need = discordgo.PermissionKickMembers
	case model.PunishmentBan, model.PunishmentUnban:
		need = discordgo.PermissionBanMembers
	default:
		return false, errors.Errorf("unknown punishment type %q", t)
	}

	perms, err := p.guildPermissions(ctx, guildID)
	if err != nil {
		return false, err
	}
	return perms&discordgo.PermissionAdministrator != 0 || perms&need == need, nil
}

func (p *Platform) guildPermissions(ctx context.Context, guildID string) (int64, error) {
	if p.session.State == nil || p.session.State.User == nil {
		return 0, errors.New("session is not ready")
	}
	botID := p.session.State.User.ID

	guild, err := p.session.State.Guild(guildID)
	if err != nil {
		if guild, err = p.session.Guild(guildID, discordgo.WithContext(ctx)); err != nil {
			return 0, errors.WrapIff(err, "failed to get guild %s", guildID)
		}
	}
	if guild.OwnerID == botID {
		return discordgo.PermissionAll, nil
	}

	member, err := p.session.State.Member(guildID, botID)
	if err != nil {
		if member, err = p.session.GuildMember(guildID, botID, discordgo.WithContext(ctx)); err != nil {
			return 0, errors.WrapIff(err, "failed to get own member in guild %s", guildID)
		}
	}

	var perms int64
	for _, role := range guild.Roles {
		if role.ID == guildID || slices.Contains(member.Roles, role.ID) {
			perms |= role.Permissions
		}
	}
	return perms, nil
}

// MemberTimeout returns the member's current timeout. present is false when
// the user is not in the guild.
func (p *Platform) MemberTimeout(ctx context.Context, guildID, userID string) (*time.Time, bool, error) {
	member, err := p.session.State.Member(guildID, userID)
	if err != nil {
		member, err = p.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if isUnknownMember(err) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, errors.WrapIff(err, "failed to get member %s in guild %s", userID, guildID)
		}
	}
	return member.CommunicationDisabledUntil, true, nil
}

// GuildState reports whether the bot can act in the guild. Until READY has
// arrived, and while Discord reports an outage, guilds are unavailable rather
// than gone.
func (p *Platform) GuildState(guildID string) scanner.GuildState {
	state := p.session.State
	if state == nil {
		return scanner.GuildUnavailable
	}
	state.RLock()
	ready := state.User != nil
	state.RUnlock()
	if !ready {
		return scanner.GuildUnavailable
	}

	if g, err := state.Guild(guildID); err == nil {
		if g.Unavailable {
			return scanner.GuildUnavailable
		}
		return scanner.GuildPresent
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.outage[guildID]; ok {
		return scanner.GuildUnavailable
	}
	return scanner.GuildGone
}

func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && (restErr.Message.Code == discordgo.ErrCodeUnknownMember || restErr.Message.Code == discordgo.ErrCodeUnknownUser) {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

// auditReason trims reason to the 512 characters the audit log accepts.
func auditReason(reason string) string {
	r := []rune(reason)
	if len(r) > 512 {
		return string(r[:512])
	}
	return reason
}
