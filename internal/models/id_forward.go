package models

import (
	"errors"
	"time"
)

var ErrIDForwardNotFound = errors.New("id forward not found")

type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentDocument AttachmentKind = "document"
)

type Attachment struct {
	Kind   AttachmentKind `json:"kind"`
	FileID string         `json:"file_id"`
}

// IDForward records identity attachments posted to the admin chat so they
// can be reposted later.
type IDForward struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	MemberID int64  `gorm:"index"`
	ChatID   int64

	MessageIDs  []int        `gorm:"serializer:json"`
	Attachments []Attachment `gorm:"serializer:json"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}
