package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/C4T-BuT-S4D/vouch/internal/config"
	"github.com/C4T-BuT-S4D/vouch/internal/verify"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v4"
)

type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Notifier delivers engine notifications to Telegram chats, paced to stay
// under the bot API flood limits.
type Notifier struct {
	bot     sender
	limiter *rate.Limiter

	adminChat    telebot.ChatID
	announceChat telebot.ChatID
}

func NewNotifier(cfg *config.Config, bot sender) *Notifier {
	limit := rate.Inf
	if cfg.SendRate > 0 {
		limit = rate.Limit(cfg.SendRate)
	}
	return &Notifier{
		bot:          bot,
		limiter:      rate.NewLimiter(limit, 1),
		adminChat:    telebot.ChatID(cfg.AdminChatID),
		announceChat: telebot.ChatID(cfg.AnnounceChatID),
	}
}

// Notify sends every notification of the reply. Notifications addressed to
// the actor go to actorChat and are dropped when it is nil.
func (n *Notifier) Notify(ctx context.Context, actorChat telebot.Recipient, r *verify.Reply) error {
	var finalErr error
	for _, note := range r.Notifications {
		to := n.recipient(note, actorChat)
		if to == nil {
			logrus.Debugf("dropping %s notification for member %d", note.Audience, note.MemberID)
			continue
		}
		if _, err := n.send(ctx, to, note.Text); err != nil {
			finalErr = errors.Join(finalErr, fmt.Errorf("notifying %s: %w", note.Audience, err))
		}
	}
	return finalErr
}

func (n *Notifier) send(ctx context.Context, to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for limiter: %w", err)
	}
	msg, err := n.bot.Send(to, what, opts...)
	if err != nil {
		return nil, fmt.Errorf("sending message to %s: %w", to.Recipient(), err)
	}
	return msg, nil
}

func (n *Notifier) recipient(note verify.Notification, actorChat telebot.Recipient) telebot.Recipient {
	switch note.Audience {
	case verify.ToMember:
		// Private chat ids equal user ids.
		return telebot.ChatID(note.MemberID)
	case verify.ToActor:
		return actorChat
	case verify.ToAdmins:
		return n.adminChat
	case verify.ToAnnounce:
		if n.announceChat == 0 {
			return nil
		}
		return n.announceChat
	default:
		return nil
	}
}
