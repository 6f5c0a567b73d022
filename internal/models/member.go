package models

import (
	"errors"
	"fmt"
	"time"
)

var ErrMemberNotFound = errors.New("member not found")

// VerState is the position of a member in the verification workflow.
// The empty state means the member is not currently being verified.
type VerState string

const (
	StateNone          VerState = ""
	StateAwaitName     VerState = "await_name"
	StateAwaitUNSW     VerState = "await_unsw"
	StateAwaitZID      VerState = "await_zid"
	StateAwaitEmail    VerState = "await_email"
	StateAwaitCode     VerState = "await_code"
	StateAwaitID       VerState = "await_id"
	StateAwaitApproval VerState = "await_approval"
)

var AllStates = []VerState{
	StateNone,
	StateAwaitName,
	StateAwaitUNSW,
	StateAwaitZID,
	StateAwaitEmail,
	StateAwaitCode,
	StateAwaitID,
	StateAwaitApproval,
}

func (s VerState) String() string {
	if s == StateNone {
		return "none"
	}
	return string(s)
}

type Member struct {
	ID int64 `gorm:"primaryKey;autoIncrement:false"`

	Name  string `gorm:"size:500"`
	ZID   string `gorm:"column:zid"`
	Email string

	EmailAttempts int
	VerState      VerState `gorm:"index"`
	VerTime       time.Time
	EmailVer      bool
	IDVer         bool   `gorm:"column:id_ver;index"`
	IDMessage     string `gorm:"column:id_message"`
	VerifiedBy    int64

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// NewMember returns the default record for a member seen for the first time.
func NewMember(id int64, now time.Time) *Member {
	return &Member{
		ID:      id,
		VerTime: now,
	}
}

func (m *Member) Verifying() bool {
	return m.VerState != StateNone
}

// Affiliated reports whether the member identified as a student with a zID.
func (m *Member) Affiliated() bool {
	return m.ZID != ""
}

func (m *Member) Clone() *Member {
	cp := *m
	return &cp
}

func (m *Member) String() string {
	return fmt.Sprintf(
		"Member(%d, state=%s, email_ver=%v, id_ver=%v, attempts=%d)",
		m.ID,
		m.VerState,
		m.EmailVer,
		m.IDVer,
		m.EmailAttempts,
	)
}
