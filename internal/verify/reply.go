package verify

import "github.com/C4T-BuT-S4D/vouch/internal/models"

type Audience int

const (
	// ToMember addresses the member being verified.
	ToMember Audience = iota
	// ToActor addresses whoever invoked the operation.
	ToActor
	ToAdmins
	ToAnnounce
)

func (a Audience) String() string {
	switch a {
	case ToMember:
		return "member"
	case ToActor:
		return "actor"
	case ToAdmins:
		return "admins"
	case ToAnnounce:
		return "announce"
	default:
		return "unknown"
	}
}

type Notification struct {
	Audience Audience `json:"audience"`
	MemberID int64    `json:"member_id"`
	Text     string   `json:"text"`
}

// Reply is the result of one engine operation. Mutations in it have already
// been persisted; the transport only has to deliver the notifications.
type Reply struct {
	MemberID      int64
	Notifications []Notification

	// Patch is the partial update written to the member record, if any.
	Patch *models.Patch
	// Record is the full record written, if the operation replaced it.
	Record *models.Member
	// Pending is filled by ListPending.
	Pending []*models.Member

	// Rejected is set when the operation failed validation or a workflow
	// precondition and nothing was changed.
	Rejected bool
	Reason   string

	Granted bool
}

func (r *Reply) add(audience Audience, text string) {
	r.Notifications = append(r.Notifications, Notification{
		Audience: audience,
		MemberID: r.MemberID,
		Text:     text,
	})
}

func (r *Reply) toMember(text string)   { r.add(ToMember, text) }
func (r *Reply) toActor(text string)    { r.add(ToActor, text) }
func (r *Reply) toAdmins(text string)   { r.add(ToAdmins, text) }
func (r *Reply) toAnnounce(text string) { r.add(ToAnnounce, text) }

// reject reports a validation or precondition failure to the given audience.
func (r *Reply) reject(audience Audience, text string) {
	r.Rejected = true
	r.Reason = text
	r.add(audience, text)
}

// Changed reports whether the operation wrote to the store.
func (r *Reply) Changed() bool {
	return r.Record != nil || !r.Patch.Empty()
}

func (r *Reply) For(audience Audience) []string {
	var out []string
	for _, n := range r.Notifications {
		if n.Audience == audience {
			out = append(out, n.Text)
		}
	}
	return out
}
