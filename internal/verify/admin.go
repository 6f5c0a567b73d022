package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/C4T-BuT-S4D/vouch/internal/models"
	"github.com/sirupsen/logrus"
)

// awaitingApproval checks the precondition shared by approve, reject and
// resend-id. It reports false after rejecting the reply.
func awaitingApproval(r *Reply, rec *models.Member) bool {
	switch {
	case rec == nil:
		r.reject(ToActor, msgUserNotVerifying)
	case rec.IDVer:
		r.reject(ToActor, msgUserVerified)
	case rec.VerState != models.StateAwaitApproval:
		r.reject(ToActor, msgUserNotAwaiting)
	default:
		return true
	}
	return false
}

func (e *Engine) Approve(ctx context.Context, admin Actor, memberID int64) (*Reply, error) {
	return e.run(ctx, "approve", memberID, func(log *logrus.Entry, r *Reply) error {
		rec, err := e.load(ctx, memberID)
		if err != nil {
			return err
		}
		if !awaitingApproval(r, rec) {
			return nil
		}

		log.Infof("approved by %d", admin.ID)
		if err := e.grantRank(ctx, r, memberID, rec.Name, PathApproval, false); err != nil {
			return err
		}

		return e.persist(ctx, r, memberID, &models.Patch{
			IDVer:      models.Set(true),
			VerState:   models.Set(models.StateNone),
			VerifiedBy: models.Set(admin.ID),
		})
	})
}

// Reject sends the member back to a state from which they can begin again.
func (e *Engine) Reject(ctx context.Context, admin Actor, memberID int64, reason string) (*Reply, error) {
	return e.run(ctx, "reject", memberID, func(log *logrus.Entry, r *Reply) error {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			r.reject(ToActor, msgReasonRequired)
			return nil
		}

		rec, err := e.load(ctx, memberID)
		if err != nil {
			return err
		}
		if !awaitingApproval(r, rec) {
			return nil
		}

		log.Infof("rejected by %d: %s", admin.ID, reason)
		if err := e.persist(ctx, r, memberID, &models.Patch{
			VerState:  models.Set(models.StateNone),
			EmailVer:  models.Set(false),
			IDMessage: models.Set(""),
			VerTime:   models.Set(e.now()),
		}); err != nil {
			return err
		}

		r.toMember(fmt.Sprintf(
			"Your verification request has been denied for the following reason(s): %s\n"+
				"You can start a new request by typing /verify.",
			reason,
		))
		r.toAdmins(fmt.Sprintf("Rejected verification request from %s.", mention(rec.Name, memberID)))
		return nil
	})
}

// ResendID reposts the identity attachments of a member awaiting approval.
func (e *Engine) ResendID(ctx context.Context, admin Actor, memberID int64) (*Reply, error) {
	return e.run(ctx, "resend_id", memberID, func(log *logrus.Entry, r *Reply) error {
		rec, err := e.load(ctx, memberID)
		if err != nil {
			return err
		}
		if !awaitingApproval(r, rec) {
			return nil
		}
		if rec.IDMessage == "" {
			r.reject(ToActor, msgForwardMissing)
			return nil
		}

		lookupCtx, cancel := e.external(ctx)
		attachments, err := e.board.LookupID(lookupCtx, rec.IDMessage)
		cancel()
		if errors.Is(err, ErrForwardNotFound) {
			log.Warnf("forward %s not found", rec.IDMessage)
			r.reject(ToActor, msgForwardMissing)
			return nil
		}
		if err != nil {
			return fmt.Errorf("looking up forwarded id: %w", err)
		}

		if _, err := e.forwardID(ctx, rec, rec.Name, attachments, true); err != nil {
			return err
		}
		log.Infof("resent id attachments on request of %d", admin.ID)
		return nil
	})
}

func (e *Engine) ListPending(ctx context.Context, _ Actor) (*Reply, error) {
	r := &Reply{}
	pending, err := e.store.ListMembersInState(ctx, models.StateAwaitApproval)
	if err != nil {
		return nil, fmt.Errorf("listing pending members: %w", err)
	}
	r.Pending = pending

	if len(pending) == 0 {
		r.toActor(msgNoPending)
		return r, nil
	}

	lines := []string{"Members awaiting approval:"}
	for _, m := range pending {
		lines = append(lines, mention(m.Name, m.ID))
	}
	r.toActor(strings.Join(lines, "\n"))
	return r, nil
}

// ManualVerify marks a member verified without the conversational flow. The
// email defaults to the student address when only a zID is given.
func (e *Engine) ManualVerify(ctx context.Context, admin Actor, memberID int64, in ManualInput) (*Reply, error) {
	return e.run(ctx, "manual_verify", memberID, func(log *logrus.Entry, r *Reply) error {
		name := strings.TrimSpace(in.Name)
		zid := NormalizeZID(in.ZID)
		email := strings.TrimSpace(in.Email)

		if zid != "" && !IsValidZID(zid) {
			r.reject(ToActor, msgManualZIDInvalid)
			return nil
		}
		if zid != "" && email == "" {
			email = e.StudentEmail(zid)
		}
		if !IsValidEmail(email) {
			r.reject(ToActor, msgManualEmailInvalid)
			return nil
		}
		if name != "" && !IsValidName(name) {
			r.reject(ToActor, msgManualNameInvalid)
			return nil
		}

		if err := e.grantRank(ctx, r, memberID, name, PathManual, false); err != nil {
			return err
		}

		rec := models.NewMember(memberID, e.now())
		rec.Name = name
		rec.ZID = zid
		rec.Email = email
		rec.EmailVer = true
		rec.IDVer = true
		rec.VerifiedBy = admin.ID
		if err := e.store.SetMember(ctx, rec); err != nil {
			return fmt.Errorf("setting member: %w", err)
		}
		r.Record = rec

		log.Infof("manually verified by %d", admin.ID)
		return nil
	})
}

// Unlock resets the email attempt counter of a member stuck at the cap.
func (e *Engine) Unlock(ctx context.Context, admin Actor, memberID int64) (*Reply, error) {
	return e.run(ctx, "unlock", memberID, func(log *logrus.Entry, r *Reply) error {
		rec, err := e.load(ctx, memberID)
		if err != nil {
			return err
		}

		switch {
		case rec == nil || !rec.Verifying():
			r.reject(ToActor, msgUserNotVerifying)
			return nil
		case rec.IDVer:
			r.reject(ToActor, msgUserVerified)
			return nil
		}
		switch rec.VerState {
		case models.StateAwaitZID, models.StateAwaitEmail, models.StateAwaitCode:
		default:
			r.reject(ToActor, msgUserNotEmailing)
			return nil
		}

		if err := e.persist(ctx, r, memberID, &models.Patch{
			EmailAttempts: models.Set(0),
		}); err != nil {
			return err
		}

		log.Infof("email attempts reset by %d", admin.ID)
		r.toMember(msgAttemptsUnlocked)
		r.toActor(fmt.Sprintf("Reset email attempts for %s.", mention(rec.Name, memberID)))
		return nil
	})
}

// Rejoin silently re-grants the rank to a previously verified member who
// joined the group again. Unverified members are left alone.
func (e *Engine) Rejoin(ctx context.Context, member Actor) (*Reply, error) {
	return e.run(ctx, "rejoin", member.ID, func(log *logrus.Entry, r *Reply) error {
		rec, err := e.load(ctx, member.ID)
		if err != nil {
			return err
		}
		if rec == nil || !rec.IDVer {
			return nil
		}

		name := displayName(member.Name, rec.Name)
		if err := e.grantRank(ctx, r, member.ID, name, PathRejoin, true); err != nil {
			return err
		}
		log.Info("re-granted rank on rejoin")
		r.toAdmins(fmt.Sprintf(
			"%s was previously verified, and has automatically been granted the verified rank upon (re)joining the server.",
			mention(name, member.ID),
		))
		return nil
	})
}

func (e *Engine) forwardID(
	ctx context.Context,
	rec *models.Member,
	name string,
	attachments []models.Attachment,
	resend bool,
) (string, error) {
	prefix := "Received"
	if resend {
		prefix = "Previously received"
	}
	caption := fmt.Sprintf(
		"%s attachment(s) from %s. Please verify that the name on the ID is \"%s\", "+
			"then type /approve %d or /reject %d <reason>.",
		prefix,
		mention(name, rec.ID),
		rec.Name,
		rec.ID,
		rec.ID,
	)

	fwdCtx, cancel := e.external(ctx)
	defer cancel()

	ref, err := e.board.ForwardID(fwdCtx, rec.ID, caption, attachments)
	if err != nil {
		return "", fmt.Errorf("forwarding id to admins: %w", err)
	}
	return ref, nil
}
