package models

import "time"

// Patch is a partial update of a Member. Nil fields are left untouched.
type Patch struct {
	Name          *string
	ZID           *string
	Email         *string
	EmailAttempts *int
	VerState      *VerState
	VerTime       *time.Time
	EmailVer      *bool
	IDVer         *bool
	IDMessage     *string
	VerifiedBy    *int64
}

func Set[T any](v T) *T {
	return &v
}

func (p *Patch) Empty() bool {
	return p == nil || len(p.Columns()) == 0
}

// Columns maps the patch onto database column names.
func (p *Patch) Columns() map[string]any {
	cols := make(map[string]any)
	if p == nil {
		return cols
	}
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.ZID != nil {
		cols["zid"] = *p.ZID
	}
	if p.Email != nil {
		cols["email"] = *p.Email
	}
	if p.EmailAttempts != nil {
		cols["email_attempts"] = *p.EmailAttempts
	}
	if p.VerState != nil {
		cols["ver_state"] = *p.VerState
	}
	if p.VerTime != nil {
		cols["ver_time"] = *p.VerTime
	}
	if p.EmailVer != nil {
		cols["email_ver"] = *p.EmailVer
	}
	if p.IDVer != nil {
		cols["id_ver"] = *p.IDVer
	}
	if p.IDMessage != nil {
		cols["id_message"] = *p.IDMessage
	}
	if p.VerifiedBy != nil {
		cols["verified_by"] = *p.VerifiedBy
	}
	return cols
}

// Apply merges the patch into m.
func (p *Patch) Apply(m *Member) {
	if p == nil {
		return
	}
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.ZID != nil {
		m.ZID = *p.ZID
	}
	if p.Email != nil {
		m.Email = *p.Email
	}
	if p.EmailAttempts != nil {
		m.EmailAttempts = *p.EmailAttempts
	}
	if p.VerState != nil {
		m.VerState = *p.VerState
	}
	if p.VerTime != nil {
		m.VerTime = *p.VerTime
	}
	if p.EmailVer != nil {
		m.EmailVer = *p.EmailVer
	}
	if p.IDVer != nil {
		m.IDVer = *p.IDVer
	}
	if p.IDMessage != nil {
		m.IDMessage = *p.IDMessage
	}
	if p.VerifiedBy != nil {
		m.VerifiedBy = *p.VerifiedBy
	}
}
