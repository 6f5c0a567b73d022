package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/C4T-BuT-S4D/vouch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprove(t *testing.T) {
	h := newHarness(t)
	h.at(models.StateAwaitApproval)

	r, err := h.engine.Approve(context.Background(), moderator, aliceID)
	require.NoError(t, err)

	assert.True(t, r.Granted)
	assert.Equal(t, []string{msgWelcome}, r.For(ToMember))
	assert.Equal(t, []string{"Alice (1001) is now verified (administrator approval)."}, r.For(ToAdmins))

	rec := h.store.get(t, aliceID)
	assert.True(t, rec.IDVer)
	assert.Equal(t, models.StateNone, rec.VerState)
	assert.Equal(t, adminID, rec.VerifiedBy)
}

func TestApproveRequiresAwaitingApproval(t *testing.T) {
	t.Run("no record", func(t *testing.T) {
		h := newHarness(t)
		r, err := h.engine.Approve(context.Background(), moderator, aliceID)
		require.NoError(t, err)
		assert.Equal(t, []string{msgUserNotVerifying}, r.For(ToActor))
		assert.Zero(t, h.store.writes())
	})

	for _, state := range models.AllStates {
		if state == models.StateAwaitApproval {
			continue
		}
		t.Run(state.String(), func(t *testing.T) {
			h := newHarness(t)
			before := h.at(state)

			r, err := h.engine.Approve(context.Background(), moderator, aliceID)
			require.NoError(t, err)

			assert.True(t, r.Rejected)
			assert.Equal(t, []string{msgUserNotAwaiting}, r.For(ToActor))
			assert.Empty(t, h.granter.granted)
			assert.Equal(t, before, h.store.get(t, aliceID))
		})
	}

	t.Run("already verified", func(t *testing.T) {
		h := newHarness(t)
		h.at(models.StateNone, func(m *models.Member) { m.IDVer = true })

		r, err := h.engine.Approve(context.Background(), moderator, aliceID)
		require.NoError(t, err)
		assert.Equal(t, []string{msgUserVerified}, r.For(ToActor))
	})
}

func TestReject(t *testing.T) {
	h := newHarness(t)
	h.at(models.StateAwaitApproval, func(m *models.Member) { m.IDMessage = "fwd-1" })

	r, err := h.engine.Reject(context.Background(), moderator, aliceID, "photo is blurry")
	require.NoError(t, err)

	require.Len(t, r.For(ToMember), 1)
	assert.Contains(t, r.For(ToMember)[0], "photo is blurry")
	assert.Equal(t, []string{"Rejected verification request from Alice (1001)."}, r.For(ToAdmins))

	rec := h.store.get(t, aliceID)
	assert.Equal(t, models.StateNone, rec.VerState)
	assert.False(t, rec.EmailVer)
	assert.False(t, rec.IDVer)
	assert.Empty(t, rec.IDMessage)

	r, err = h.engine.Begin(context.Background(), alice)
	require.NoError(t, err)
	assert.False(t, r.Rejected, "rejected member must be able to begin again")
}

func TestRejectValidation(t *testing.T) {
	h := newHarness(t)
	before := h.at(models.StateAwaitApproval)

	r, err := h.engine.Reject(context.Background(), moderator, aliceID, "  ")
	require.NoError(t, err)
	assert.Equal(t, []string{msgReasonRequired}, r.For(ToActor))
	assert.Equal(t, before, h.store.get(t, aliceID))

	h.at(models.StateAwaitID)
	r, err = h.engine.Reject(context.Background(), moderator, aliceID, "nope")
	require.NoError(t, err)
	assert.Equal(t, []string{msgUserNotAwaiting}, r.For(ToActor))
}

func TestResendID(t *testing.T) {
	h := newHarness(t)
	h.at(models.StateAwaitID)
	_, err := h.engine.SubmitIDAttachments(context.Background(), alice, []models.Attachment{photo})
	require.NoError(t, err)
	before := h.store.get(t, aliceID)

	r, err := h.engine.ResendID(context.Background(), moderator, aliceID)
	require.NoError(t, err)
	assert.False(t, r.Rejected)

	require.Len(t, h.board.posted, 2)
	assert.Equal(t, []models.Attachment{photo}, h.board.posted[1].Attachments)
	assert.Contains(t, h.board.posted[1].Caption, "Previously received")
	assert.Equal(t, before, h.store.get(t, aliceID))
}

func TestResendIDMissingForward(t *testing.T) {
	h := newHarness(t)
	h.at(models.StateAwaitApproval, func(m *models.Member) { m.IDMessage = "deleted" })

	r, err := h.engine.ResendID(context.Background(), moderator, aliceID)
	require.NoError(t, err)
	assert.Equal(t, []string{msgForwardMissing}, r.For(ToActor))
	assert.Empty(t, h.board.posted)

	boom := errors.New("db down")
	h.board.lookupErr = boom
	_, err = h.engine.ResendID(context.Background(), moderator, aliceID)
	assert.ErrorIs(t, err, boom)
}

func TestListPending(t *testing.T) {
	h := newHarness(t)

	r, err := h.engine.ListPending(context.Background(), moderator)
	require.NoError(t, err)
	assert.Equal(t, []string{msgNoPending}, r.For(ToActor))

	h.at(models.StateAwaitApproval)
	h.store.put(&models.Member{ID: 2002, Name: "Bob", VerState: models.StateAwaitCode})
	h.store.put(&models.Member{ID: 3003, Name: "Carol", VerState: models.StateAwaitApproval})

	r, err = h.engine.ListPending(context.Background(), moderator)
	require.NoError(t, err)
	require.Len(t, r.Pending, 2)
	assert.Equal(t, []string{"Members awaiting approval:\nAlice (1001)\nCarol (3003)"}, r.For(ToActor))
}

func TestManualVerify(t *testing.T) {
	t.Run("zid derives email", func(t *testing.T) {
		h := newHarness(t)
		h.at(models.StateAwaitCode)

		r, err := h.engine.ManualVerify(context.Background(), moderator, aliceID, ManualInput{Name: "Alice A", ZID: "z5242579"})
		require.NoError(t, err)
		assert.True(t, r.Granted)

		rec := h.store.get(t, aliceID)
		assert.True(t, rec.IDVer)
		assert.True(t, rec.EmailVer)
		assert.Equal(t, models.StateNone, rec.VerState)
		assert.Equal(t, "z5242579@student.unsw.edu.au", rec.Email)
		assert.Equal(t, "Alice A", rec.Name)
		assert.Equal(t, adminID, rec.VerifiedBy)
		assert.Zero(t, rec.EmailAttempts)
	})

	t.Run("email only creates record", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.engine.ManualVerify(context.Background(), moderator, aliceID, ManualInput{Email: "a@b.com"})
		require.NoError(t, err)

		rec := h.store.get(t, aliceID)
		assert.True(t, rec.IDVer)
		assert.Empty(t, rec.ZID)
		assert.Equal(t, "a@b.com", rec.Email)
	})

	for name, in := range map[string]ManualInput{
		"bad zid":   {ZID: "5242579", Email: "a@b.com"},
		"bad email": {Email: "a@b"},
		"nothing":   {},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)

			r, err := h.engine.ManualVerify(context.Background(), moderator, aliceID, in)
			require.NoError(t, err)
			assert.True(t, r.Rejected)
			assert.Zero(t, h.store.writes())
			assert.Empty(t, h.granter.granted)
		})
	}
}

func TestUnlock(t *testing.T) {
	h := newHarness(t)
	h.at(models.StateAwaitCode, func(m *models.Member) { m.EmailAttempts = testMaxAttempts })

	r, err := h.engine.Unlock(context.Background(), moderator, aliceID)
	require.NoError(t, err)
	assert.Equal(t, []string{msgAttemptsUnlocked}, r.For(ToMember))
	assert.Zero(t, h.store.get(t, aliceID).EmailAttempts)

	_, err = h.engine.ResendEmail(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, 1, h.mail.calls())

	h.at(models.StateAwaitApproval)
	r, err = h.engine.Unlock(context.Background(), moderator, aliceID)
	require.NoError(t, err)
	assert.Equal(t, []string{msgUserNotEmailing}, r.For(ToActor))
}

func TestRejoin(t *testing.T) {
	h := newHarness(t)

	r, err := h.engine.Rejoin(context.Background(), alice)
	require.NoError(t, err)
	assert.False(t, r.Granted)
	assert.Empty(t, r.Notifications)

	h.at(models.StateNone, func(m *models.Member) { m.IDVer = true })
	r, err = h.engine.Rejoin(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, r.Granted)
	assert.Empty(t, r.For(ToMember), "rejoin grant is silent towards the member")
	assert.Len(t, r.For(ToAdmins), 1)
	assert.Zero(t, h.store.writes())
}
