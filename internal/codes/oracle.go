// Package codes derives one-time verification codes from the member, the
// target email and a process-wide salt, so no per-session secret is stored.
package codes

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const codeBytes = 6

type Oracle struct {
	salt []byte
	ttl  time.Duration
	now  func() time.Time
}

// New creates an oracle. A zero ttl makes codes valid for as long as the
// salt and the email stay the same.
func New(salt []byte, ttl time.Duration) *Oracle {
	return &Oracle{
		salt: salt,
		ttl:  ttl,
		now:  time.Now,
	}
}

func (o *Oracle) WithClock(now func() time.Time) *Oracle {
	cp := *o
	cp.now = now
	return &cp
}

func (o *Oracle) Derive(memberID int64, email string) string {
	return o.derive(memberID, email, o.window(o.now()))
}

// Check accepts the code of the current window and of the previous one, so a
// code stays valid for at least one full ttl after it was sent.
func (o *Oracle) Check(memberID int64, email, submitted string) bool {
	submitted = strings.ToLower(strings.TrimSpace(submitted))
	if submitted == "" {
		return false
	}

	w := o.window(o.now())
	ok := hmac.Equal([]byte(submitted), []byte(o.derive(memberID, email, w)))
	if o.ttl > 0 && w > 0 {
		ok = hmac.Equal([]byte(submitted), []byte(o.derive(memberID, email, w-1))) || ok
	}
	return ok
}

func (o *Oracle) window(t time.Time) int64 {
	if o.ttl <= 0 {
		return 0
	}
	return t.UnixNano() / int64(o.ttl)
}

func (o *Oracle) derive(memberID int64, email string, window int64) string {
	mac := hmac.New(sha256.New, o.salt)
	mac.Write([]byte(strconv.FormatInt(memberID, 10)))
	mac.Write([]byte{0})
	mac.Write([]byte(strings.ToLower(email)))
	mac.Write([]byte{0})
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(window))
	mac.Write(buf[:])
	return hex.EncodeToString(mac.Sum(nil)[:codeBytes])
}
