package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/C4T-BuT-S4D/vouch/internal/models"
	"github.com/C4T-BuT-S4D/vouch/internal/verify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v4"
)

type albumSender interface {
	sender
	SendAlbum(to telebot.Recipient, a telebot.Album, opts ...interface{}) ([]telebot.Message, error)
}

type forwardStore interface {
	AddIDForward(ctx context.Context, fwd *models.IDForward) error
	GetIDForward(ctx context.Context, id string) (*models.IDForward, error)
}

// Board posts identity attachments to the admin chat. Telegram bots cannot
// fetch old messages, so the file ids are kept in storage under a random
// reference.
type Board struct {
	bot     albumSender
	storage forwardStore
	chat    telebot.ChatID
}

func NewBoard(bot albumSender, storage forwardStore, adminChatID int64) *Board {
	return &Board{bot: bot, storage: storage, chat: telebot.ChatID(adminChatID)}
}

func (b *Board) ForwardID(
	ctx context.Context,
	memberID int64,
	caption string,
	attachments []models.Attachment,
) (string, error) {
	var photos, documents telebot.Album
	for _, a := range attachments {
		switch a.Kind {
		case models.AttachmentPhoto:
			photos = append(photos, &telebot.Photo{File: telebot.File{FileID: a.FileID}})
		case models.AttachmentDocument:
			documents = append(documents, &telebot.Document{File: telebot.File{FileID: a.FileID}})
		default:
			logrus.Warnf("skipping attachment of unknown kind %q", a.Kind)
		}
	}

	var messageIDs []int
	// Telegram does not mix photos and documents in one media group.
	for _, album := range []telebot.Album{photos, documents} {
		ids, err := b.sendAlbum(ctx, album)
		if err != nil {
			return "", err
		}
		messageIDs = append(messageIDs, ids...)
	}

	markup := &telebot.ReplyMarkup{}
	memberIDStr := strconv.FormatInt(memberID, 10)
	markup.Inline(markup.Row(
		markup.Data("Approve", CallbackActionApprove.String(), memberIDStr),
		markup.Data("Show again", CallbackActionResendID.String(), memberIDStr),
	))
	msg, err := withContext(ctx, func() (*telebot.Message, error) {
		return b.bot.Send(b.chat, caption, markup)
	})
	if err != nil {
		return "", fmt.Errorf("sending caption: %w", err)
	}
	messageIDs = append(messageIDs, msg.ID)

	fwd := &models.IDForward{
		ID:          uuid.NewString(),
		MemberID:    memberID,
		ChatID:      int64(b.chat),
		MessageIDs:  messageIDs,
		Attachments: attachments,
	}
	if err := b.storage.AddIDForward(ctx, fwd); err != nil {
		return "", fmt.Errorf("storing id forward: %w", err)
	}
	return fwd.ID, nil
}

func (b *Board) LookupID(ctx context.Context, ref string) ([]models.Attachment, error) {
	fwd, err := b.storage.GetIDForward(ctx, ref)
	if errors.Is(err, models.ErrIDForwardNotFound) {
		return nil, fmt.Errorf("looking up %s: %w", ref, verify.ErrForwardNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", ref, err)
	}
	return fwd.Attachments, nil
}

func (b *Board) sendAlbum(ctx context.Context, album telebot.Album) ([]int, error) {
	var ids []int
	for start := 0; start < len(album); start += maxAlbumSize {
		chunk := album[start:min(start+maxAlbumSize, len(album))]

		// Media groups need at least two items.
		if len(chunk) == 1 {
			msg, err := withContext(ctx, func() (*telebot.Message, error) {
				return b.bot.Send(b.chat, chunk[0])
			})
			if err != nil {
				return nil, fmt.Errorf("sending attachment: %w", err)
			}
			ids = append(ids, msg.ID)
			continue
		}

		msgs, err := withContext(ctx, func() ([]telebot.Message, error) {
			return b.bot.SendAlbum(b.chat, chunk)
		})
		if err != nil {
			return nil, fmt.Errorf("sending album: %w", err)
		}
		for _, m := range msgs {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

const maxAlbumSize = 10
