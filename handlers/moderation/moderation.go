package moderation

import (
	"context"
	"fmt"
	"time"

	"modbot/bot"
	"modbot/model"
	"modbot/punish"
	"modbot/utils"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// commandTimeout bounds a single command, including a pending confirmation.
const commandTimeout = 2 * time.Minute

// Handlers serves the moderation commands.
type Handlers struct {
	b        *bot.Bot
	confirms *Confirmations
	logger   *zap.Logger
}

// New creates the moderation handlers.
func New(b *bot.Bot, confirms *Confirmations) *Handlers {
	return &Handlers{
		b:        b,
		confirms: confirms,
		logger:   b.Logger.Named("moderation"),
	}
}

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func options(opts []*discordgo.ApplicationCommandInteractionDataOption) optionMap {
	m := make(optionMap, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func (o optionMap) string(name string) string {
	if opt, ok := o[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func (o optionMap) bool(name string) bool {
	if opt, ok := o[name]; ok {
		return opt.BoolValue()
	}
	return false
}

// optionalBool distinguishes an omitted boolean from false.
func (o optionMap) optionalBool(name string) *bool {
	if opt, ok := o[name]; ok {
		v := opt.BoolValue()
		return &v
	}
	return nil
}

func (o optionMap) int(name string) int {
	if opt, ok := o[name]; ok {
		return int(opt.IntValue())
	}
	return 0
}

// userID reads a user option without fetching the user.
func (o optionMap) userID(name string) string {
	if opt, ok := o[name]; ok {
		return fmt.Sprint(opt.Value)
	}
	return ""
}

func invoker(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// authorize loads the guild config and checks that the invoking member holds
// at least level. It responds to the interaction itself when the check fails.
func (h *Handlers) authorize(s *discordgo.Session, i *discordgo.InteractionCreate, level utils.PermissionLevel) (*model.GuildConfig, utils.PermissionLevel, bool) {
	if i.GuildID == "" || i.Member == nil {
		utils.SendErrorResponse(s, i, "This command can only be used in a server.")
		return nil, utils.GuestPermission, false
	}

	cfg, err := h.b.Guilds.Guild(i.GuildID)
	if err != nil {
		h.logger.Error("Failed to load guild config", zap.String("guild_id", i.GuildID), zap.Error(err))
		utils.SendErrorResponse(s, i, "This server's configuration could not be loaded.")
		return nil, utils.GuestPermission, false
	}

	isAdmin := i.Member.Permissions&discordgo.PermissionAdministrator != 0
	got := utils.CheckPermission(i.Member.Roles, invoker(i), isAdmin, cfg, h.b.Config.DeveloperUserIDs)
	if got < level {
		utils.SendErrorResponse(s, i, "You do not have permission to use this command.")
		return nil, got, false
	}
	return cfg, got, true
}

func (h *Handlers) commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	return utils.WithCommandLocks(ctx, h.b.Locks), cancel
}

// fail replaces the deferred response with the message for err.
func (h *Handlers) fail(s *discordgo.Session, i *discordgo.InteractionCreate, op string, err error) {
	if msg, ok := punish.UserMessage(err); ok {
		utils.SendFollowUpError(s, i.Interaction, msg)
		return
	}
	if errors.Is(err, utils.ErrCommandRunning) {
		utils.SendFollowUpError(s, i.Interaction, "That command is already running for this user. Try again in a moment.")
		return
	}
	h.logger.Error("Command failed",
		zap.String("op", op),
		zap.String("guild_id", i.GuildID),
		zap.String("user_id", invoker(i)),
		zap.Error(err),
	)
	utils.SendFollowUpError(s, i.Interaction, "Something went wrong. Please try again later.")
}
