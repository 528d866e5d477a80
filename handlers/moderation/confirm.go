package moderation

import (
	"context"
	"strings"
	"sync"

	"modbot/punish"
	"modbot/utils"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

// ConfirmPrefix is the custom id prefix of confirmation buttons.
const ConfirmPrefix = "confirm"

var (
	errUnknownConfirmation = errors.New("confirmation expired")
	errNotYourConfirmation = errors.New("confirmation belongs to another user")
)

type pendingConfirmation struct {
	userID string
	answer chan bool
}

// Confirmations tracks prompts waiting for a button press. Tokens are the id
// of the interaction that asked.
type Confirmations struct {
	mu      sync.Mutex
	pending map[string]pendingConfirmation
}

func NewConfirmations() *Confirmations {
	return &Confirmations{pending: make(map[string]pendingConfirmation)}
}

func (c *Confirmations) register(token, userID string) <-chan bool {
	answer := make(chan bool, 1)
	c.mu.Lock()
	c.pending[token] = pendingConfirmation{userID: userID, answer: answer}
	c.mu.Unlock()
	return answer
}

func (c *Confirmations) forget(token string) {
	c.mu.Lock()
	delete(c.pending, token)
	c.mu.Unlock()
}

// Resolve answers the prompt identified by token. Only the user who was asked
// may answer, and only once.
func (c *Confirmations) Resolve(token, userID string, yes bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[token]
	if !ok {
		return errors.WithStack(errUnknownConfirmation)
	}
	if p.userID != userID {
		return errors.WithStack(errNotYourConfirmation)
	}
	delete(c.pending, token)
	p.answer <- yes
	return nil
}

// wait blocks until the prompt is answered or ctx is done.
func wait(ctx context.Context, answer <-chan bool) bool {
	select {
	case yes := <-answer:
		return yes
	case <-ctx.Done():
		return false
	}
}

// Confirmer asks the user behind interaction i by editing its deferred response.
func (c *Confirmations) Confirmer(s *discordgo.Session, i *discordgo.InteractionCreate) punish.Confirmer {
	return punish.ConfirmFunc(func(ctx context.Context, prompt string) (bool, error) {
		token := i.ID
		answer := c.register(token, invoker(i))
		defer c.forget(token)

		content := "⚠️ " + prompt
		components := confirmButtons(token)
		_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content:    &content,
			Components: &components,
		}, discordgo.WithContext(ctx))
		if err != nil {
			return false, errors.WrapIf(err, "failed to send confirmation prompt")
		}
		return wait(ctx, answer), nil
	})
}

func confirmButtons(token string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Confirm",
					Style:    discordgo.DangerButton,
					CustomID: ConfirmPrefix + ":" + token + ":yes",
				},
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.SecondaryButton,
					CustomID: ConfirmPrefix + ":" + token + ":no",
				},
			},
		},
	}
}

// parseConfirmID splits a confirm:<token>:<yes|no> custom id.
func parseConfirmID(customID string) (token string, yes bool, ok bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != ConfirmPrefix || parts[1] == "" {
		return "", false, false
	}
	switch parts[2] {
	case "yes":
		return parts[1], true, true
	case "no":
		return parts[1], false, true
	}
	return "", false, false
}

// HandleButton answers a confirmation button press.
func (c *Confirmations) HandleButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	token, yes, ok := parseConfirmID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}

	switch err := c.Resolve(token, invoker(i), yes); {
	case errors.Is(err, errNotYourConfirmation):
		utils.SendErrorResponse(s, i, "Only the moderator who ran the command can answer this.")
	case err != nil:
		utils.SendErrorResponse(s, i, "This confirmation has expired.")
	default:
		s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
	}
}
