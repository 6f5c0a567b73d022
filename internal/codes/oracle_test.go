package codes

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIsDeterministic(t *testing.T) {
	o := New([]byte("salt"), 0)

	code := o.Derive(42, "a@b.com")
	require.Len(t, code, codeBytes*2)
	assert.Equal(t, code, o.Derive(42, "a@b.com"))
	assert.NotEqual(t, code, o.Derive(43, "a@b.com"))
	assert.NotEqual(t, code, o.Derive(42, "c@b.com"))
	assert.NotEqual(t, code, New([]byte("other"), 0).Derive(42, "a@b.com"))
}

func TestCheck(t *testing.T) {
	o := New([]byte("salt"), 0)
	code := o.Derive(42, "a@b.com")

	assert.True(t, o.Check(42, "a@b.com", code))
	assert.True(t, o.Check(42, "a@b.com", " "+strings.ToUpper(code)+"\n"))
	assert.False(t, o.Check(42, "a@b.com", ""))
	assert.False(t, o.Check(42, "a@b.com", code[1:]))
	assert.False(t, o.Check(42, "other@b.com", code))
	assert.False(t, o.Check(7, "a@b.com", code))
}

func TestCheckExpiry(t *testing.T) {
	ttl := 30 * time.Minute
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start

	o := New([]byte("salt"), ttl).WithClock(func() time.Time { return now })
	code := o.Derive(42, "a@b.com")

	now = start.Add(ttl)
	assert.True(t, o.Check(42, "a@b.com", code), "previous window must still be accepted")

	now = start.Add(2*ttl + time.Second)
	assert.False(t, o.Check(42, "a@b.com", code), "code older than two windows must expire")
}
