package models

import (
	"fmt"
	"strconv"
	"time"
)

type MessageType string

const (
	MessageTypeGreeting MessageType = "greeting"
)

type Message struct {
	ChatID    int64  `gorm:"primaryKey"`
	MessageID string `gorm:"primaryKey"`

	MessageType MessageType

	AssociatedUserID int64 `gorm:"index"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (m *Message) MessageSig() (string, int64) {
	return m.MessageID, m.ChatID
}

func (m *Message) String() string {
	return fmt.Sprintf(
		"Message(%s, %d, %q, %d)",
		m.MessageID,
		m.ChatID,
		m.MessageType,
		m.AssociatedUserID,
	)
}

func NewMessage(chatID int64, messageID int, messageType MessageType, userID int64) *Message {
	return &Message{
		ChatID:           chatID,
		MessageID:        strconv.Itoa(messageID),
		MessageType:      messageType,
		AssociatedUserID: userID,
	}
}
