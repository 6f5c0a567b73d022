package monitor

import (
	"fmt"
	"strconv"
	"strings"
)

// CallbackAction identifies an inline button under a forwarded ID.
type CallbackAction string

const (
	CallbackActionApprove  CallbackAction = "approve"
	CallbackActionResendID CallbackAction = "resend_id"
)

func (a CallbackAction) String() string {
	return string(a)
}

// DataMatches reports whether callback data was produced by a button of this
// action. telebot prefixes unique button data with a form feed.
func (a CallbackAction) DataMatches(data string) bool {
	cringePrefix := "\f" + a.String()
	return data == cringePrefix || strings.HasPrefix(data, cringePrefix+"|")
}

// MemberID extracts the member id carried in the callback data.
func (a CallbackAction) MemberID(data string) (int64, error) {
	if !a.DataMatches(data) {
		return 0, fmt.Errorf("data %q does not belong to %s", data, a)
	}
	_, raw, found := strings.Cut(data, "|")
	if !found {
		return 0, fmt.Errorf("no member id in %q", data)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing member id: %w", err)
	}
	return id, nil
}
