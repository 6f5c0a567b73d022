package monitor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/C4T-BuT-S4D/vouch/internal/authutil"
	"github.com/C4T-BuT-S4D/vouch/internal/config"
	"github.com/C4T-BuT-S4D/vouch/internal/models"
	"github.com/C4T-BuT-S4D/vouch/internal/storage"
	"github.com/C4T-BuT-S4D/vouch/internal/verify"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v4"
)

const (
	msgSomethingWrong = "Something went wrong, please try again later."
	msgUnknownCommand = "Unknown command. Type /verify to begin verification or /restart to start over."
)

type Monitor struct {
	config   *config.Config
	storage  *storage.Storage
	bot      telebot.API
	engine   *verify.Engine
	notifier *Notifier
	granter  *Granter

	botUsername string
	albums      *albumBuffer
}

func New(
	cfg *config.Config,
	storage *storage.Storage,
	bot telebot.API,
	engine *verify.Engine,
	notifier *Notifier,
	granter *Granter,
	botUsername string,
) *Monitor {
	return &Monitor{
		config:      cfg,
		storage:     storage,
		bot:         bot,
		engine:      engine,
		notifier:    notifier,
		granter:     granter,
		botUsername: botUsername,
		albums:      newAlbumBuffer(),
	}
}

func (m *Monitor) HandleAnyUpdate(c telebot.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.BotHandleTimeout)
	defer cancel()

	uc := NewUpdateContext(ctx, c)

	if err := m.storage.UpdateLastUpdate(uc, c.Update().ID); err != nil {
		uc.L().Errorf("failed to update last update: %v", err)
	}

	if c.Callback() != nil {
		if err := m.HandleCallback(uc); err != nil {
			uc.L().Errorf("failed to handle callback: %v", err)
		}
		return nil
	}

	if c.Message() == nil || c.Chat() == nil {
		uc.L().Debugf("ignoring update without message")
		return nil
	}

	uc.L().Debugf(
		"Received update message=%v, user_joined=%v, user_left=%v",
		c.Message(),
		c.Message().UserJoined,
		c.Message().UserLeft,
	)

	var err error
	switch chat := c.Chat(); {
	case chat.Type == telebot.ChatPrivate:
		err = m.HandlePrivate(uc)
	case chat.ID == m.config.GroupChatID && c.Message().UserJoined != nil:
		err = m.HandleUserJoined(uc)
	case chat.ID == m.config.GroupChatID && c.Message().UserLeft != nil:
		err = m.HandleChatLeft(uc)
	case chat.ID == m.config.AdminChatID:
		err = m.HandleAdminCommand(uc)
	default:
		uc.L().Debugf("ignoring update from chat %d", chat.ID)
	}
	if err != nil {
		uc.L().Errorf("failed to handle update: %v", err)
	}

	return nil
}

// HandlePrivate drives the verification conversation in the member's private
// chat with the bot.
func (m *Monitor) HandlePrivate(uc *UpdateContext) error {
	msg := uc.Message()
	actor := uc.Actor()

	if attachments := attachmentsOf(msg); len(attachments) > 0 {
		if msg.AlbumID != "" {
			if !m.albums.add(msg.AlbumID, attachments) {
				uc.L().Debugf("added message to album %s", msg.AlbumID)
				return nil
			}
			// The rest of the album arrives as separate updates.
			select {
			case <-time.After(albumWait):
			case <-uc.Done():
				m.albums.take(msg.AlbumID)
				return uc.Err()
			}
			attachments = m.albums.take(msg.AlbumID)
			uc.L().Infof("collected %d attachment(s) from album %s", len(attachments), msg.AlbumID)
		}
		reply, err := m.engine.HandleInput(uc, actor, verify.Input{Text: msg.Caption, Attachments: attachments})
		return m.respond(uc, reply, err)
	}

	cmd, ok := parseCommand(msg.Text, m.botUsername)
	if !ok {
		reply, err := m.engine.HandleInput(uc, actor, verify.Input{Text: msg.Text})
		return m.respond(uc, reply, err)
	}

	var (
		reply *verify.Reply
		err   error
	)
	switch cmd.Name {
	case "start":
		if cmd.Payload != "" {
			if state, err := authutil.StateFromString(cmd.Payload); err != nil {
				uc.L().Warnf("bad start payload %q: %v", cmd.Payload, err)
			} else {
				uc.L().Infof("verification started from greeting: %v", state)
			}
		}
		reply, err = m.engine.Begin(uc, actor)
	case "verify":
		reply, err = m.engine.Begin(uc, actor)
	case "restart":
		reply, err = m.engine.Restart(uc, actor)
	case "resend":
		reply, err = m.engine.ResendEmail(uc, actor)
	default:
		_, err := m.notifier.send(uc, uc.Chat(), msgUnknownCommand)
		return err
	}
	return m.respond(uc, reply, err)
}

func (m *Monitor) HandleAdminCommand(uc *UpdateContext) error {
	cmd, ok := parseCommand(uc.Message().Text, m.botUsername)
	if !ok {
		return nil
	}

	if cmd.Name == "help" {
		_, err := m.notifier.send(uc, uc.Chat(), adminHelp())
		return err
	}

	handler, ok := adminCommands[cmd.Name]
	if !ok {
		uc.L().Debugf("ignoring unknown command %q", cmd.Name)
		return nil
	}

	uc.L().Infof("admin command %s %v", cmd.Name, cmd.Args)
	reply, err := handler.run(uc, m, cmd)
	if errors.Is(err, errUsage) {
		_, sendErr := m.notifier.send(uc, uc.Chat(), fmt.Sprintf("Usage: %s", handler.usage))
		return sendErr
	}
	return m.respond(uc, reply, err)
}

// HandleCallback handles the buttons under forwarded identity attachments.
func (m *Monitor) HandleCallback(uc *UpdateContext) error {
	cb := uc.TC().Callback()
	if cb.Message == nil || cb.Message.Chat == nil || cb.Message.Chat.ID != m.config.AdminChatID {
		uc.L().Warnf("ignoring callback %q from outside the admin chat", cb.Data)
		return uc.TC().Respond(&telebot.CallbackResponse{Text: "Not allowed."})
	}

	var (
		reply *verify.Reply
		err   error
	)
	switch {
	case CallbackActionApprove.DataMatches(cb.Data):
		var id int64
		if id, err = CallbackActionApprove.MemberID(cb.Data); err == nil {
			reply, err = m.engine.Approve(uc, uc.Actor(), id)
		}
	case CallbackActionResendID.DataMatches(cb.Data):
		var id int64
		if id, err = CallbackActionResendID.MemberID(cb.Data); err == nil {
			reply, err = m.engine.ResendID(uc, uc.Actor(), id)
		}
	default:
		uc.L().Warnf("unknown callback data %q", cb.Data)
		return uc.TC().Respond()
	}

	respondErr := m.respond(uc, reply, err)
	text := "Done."
	if err != nil {
		text = msgSomethingWrong
	} else if reply.Rejected {
		text = reply.Reason
	}
	return errors.Join(respondErr, uc.TC().Respond(&telebot.CallbackResponse{Text: text}))
}

func (m *Monitor) HandleUserJoined(uc *UpdateContext) error {
	uc.L().Infof("Deleting chat join message")
	if err := uc.Bot().Delete(uc.Message()); err != nil {
		uc.L().Warnf("failed to delete chat join message: %v", err)
	}

	user := joinedUser(uc.Message())
	if user == nil {
		uc.L().Infof("no member to verify joined the chat %d, ignoring", uc.Chat().ID)
		return nil
	}
	return m.onUserJoined(uc, user)
}

// joinedUser returns the member a join update is about. telebot dispatches
// a multi-member join once per user with UserJoined set, so UsersJoined is
// never walked here. Bots are not verified.
func joinedUser(msg *telebot.Message) *telebot.User {
	if msg == nil || msg.UserJoined == nil || msg.UserJoined.IsBot {
		return nil
	}
	return msg.UserJoined
}

func (m *Monitor) onUserJoined(uc *UpdateContext, user *telebot.User) error {
	uc.L().Infof("User %s (%d) joined the chat %d", user.Username, user.ID, uc.Chat().ID)

	reply, err := m.engine.Rejoin(uc, actorOf(user))
	if err != nil {
		return fmt.Errorf("checking previous verification: %w", err)
	}
	if reply.Granted {
		uc.L().Infof("User %d was verified before, rank granted again", user.ID)
		return m.Deliver(uc, nil, reply)
	}

	if err := m.granter.Restrict(user.ID); err != nil {
		return err
	}

	url, err := authutil.GetStartURL(m.botUsername, user.ID, uc.Chat().ID)
	if err != nil {
		return fmt.Errorf("failed to get start url: %w", err)
	}

	greeting := fmt.Sprintf(
		`Welcome to the chat, <a href="tg://user?id=%d">%s</a>! `+
			`Please press the button below and follow the instructions to verify. `+
			`You won't be able to send messages until you do so.`,
		user.ID,
		html.EscapeString(displayName(user)),
	)
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.URL("Verify", url)))
	msg, err := m.notifier.send(uc, uc.Chat(), greeting, markup, telebot.ModeHTML)
	if err != nil {
		return fmt.Errorf("sending greeting: %w", err)
	}

	if err := m.storage.AddMessage(uc, models.NewMessage(
		uc.Chat().ID,
		msg.ID,
		models.MessageTypeGreeting,
		user.ID,
	)); err != nil {
		return fmt.Errorf("adding greeting to db: %w", err)
	}

	return nil
}

func (m *Monitor) HandleChatLeft(uc *UpdateContext) error {
	user := uc.Message().UserLeft
	uc.L().Infof("User %s (%d) left the chat %d", user.Username, user.ID, uc.Chat().ID)
	if err := uc.Bot().Delete(uc.Message()); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return m.removeGreetings(uc, user.ID)
}

// Deliver sends the notifications of a reply and, when the member was granted
// the rank, removes the greetings that asked them to verify. Notifications for
// the actor go to actorChat.
func (m *Monitor) Deliver(ctx context.Context, actorChat telebot.Recipient, r *verify.Reply) error {
	err := m.notifier.Notify(ctx, actorChat, r)
	if r.Granted {
		if cleanErr := m.removeGreetings(ctx, r.MemberID); cleanErr != nil {
			err = errors.Join(err, cleanErr)
		}
	}
	return err
}

func (m *Monitor) respond(uc *UpdateContext, reply *verify.Reply, err error) error {
	if err != nil {
		if _, sendErr := m.notifier.send(uc, uc.Chat(), msgSomethingWrong); sendErr != nil {
			uc.L().Errorf("failed to report error: %v", sendErr)
		}
		return err
	}
	return m.Deliver(uc, uc.Chat(), reply)
}

func (m *Monitor) removeGreetings(ctx context.Context, userID int64) error {
	msgs, err := m.storage.GetMessagesForUser(ctx, userID, m.config.GroupChatID, models.MessageTypeGreeting)
	if err != nil {
		return fmt.Errorf("getting messages: %w", err)
	}

	var finalErr error
	for _, msg := range msgs {
		if err := m.bot.Delete(msg); err != nil {
			finalErr = errors.Join(finalErr, fmt.Errorf("removing message %v: %w", msg, err))
		}
	}
	if err := m.storage.DeleteMessages(ctx, msgs); err != nil {
		finalErr = errors.Join(finalErr, err)
	}

	return finalErr
}

// RunCleaner deletes greetings nobody acted upon.
func (m *Monitor) RunCleaner(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()

	logger := logrus.WithField("component", "monitor_cleaner")

	for {
		select {
		case <-t.C:
			msgs, err := m.storage.GetMessagesOlderThan(
				ctx,
				time.Now().Add(-m.config.GreetingTimeout),
			)
			if err != nil {
				logger.Errorf("failed to get messages: %v", err)
				continue
			}
			if len(msgs) == 0 {
				logger.Debug("no old messages to clean")
				break
			}

			logger.Infof("fetched %d old messages, cleaning up", len(msgs))
			for _, msg := range msgs {
				if err := m.bot.Delete(msg); err != nil {
					logger.Errorf("failed to delete message %v: %v", msg, err)
				}
			}

			if err := m.storage.DeleteMessages(ctx, msgs); err != nil {
				logger.Errorf("failed to delete messages: %v", err)
			}

		case <-ctx.Done():
			return
		}
	}
}

func attachmentsOf(msg *telebot.Message) []models.Attachment {
	switch {
	case msg.Photo != nil:
		return []models.Attachment{{Kind: models.AttachmentPhoto, FileID: msg.Photo.FileID}}
	case msg.Document != nil:
		return []models.Attachment{{Kind: models.AttachmentDocument, FileID: msg.Document.FileID}}
	default:
		return nil
	}
}

// albumWait is how long the first message of a media group waits for the
// others before the whole group is submitted.
var albumWait = 2 * time.Second

// albumBuffer collects the attachments of media groups. Telegram delivers
// every item of an album as a separate message.
type albumBuffer struct {
	mu      sync.Mutex
	pending map[string][]models.Attachment
}

func newAlbumBuffer() *albumBuffer {
	return &albumBuffer{pending: make(map[string][]models.Attachment)}
}

// add buffers attachments of an album. It reports true for the first message
// of the album, whose handler is then responsible for taking the group.
func (b *albumBuffer) add(albumID string, attachments []models.Attachment) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	buffered, ok := b.pending[albumID]
	b.pending[albumID] = append(buffered, attachments...)
	return !ok
}

func (b *albumBuffer) take(albumID string) []models.Attachment {
	b.mu.Lock()
	defer b.mu.Unlock()
	attachments := b.pending[albumID]
	delete(b.pending, albumID)
	return attachments
}
