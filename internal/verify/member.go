package verify

import (
	"context"
	"fmt"

	"github.com/C4T-BuT-S4D/vouch/internal/models"
	"github.com/sirupsen/logrus"
)

// Begin starts verification for the member. A member verified in the past is
// granted the rank again without repeating the workflow.
func (e *Engine) Begin(ctx context.Context, member Actor) (*Reply, error) {
	return e.run(ctx, "begin", member.ID, func(log *logrus.Entry, r *Reply) error {
		rec, err := e.load(ctx, member.ID)
		if err != nil {
			return err
		}

		switch {
		case rec != nil && rec.IDVer:
			log.Info("member was already verified, granting rank")
			return e.grantRank(ctx, r, member.ID, displayName(member.Name, rec.Name), PathRegrant, false)

		case rec != nil && rec.Verifying():
			r.reject(ToMember, msgAlreadyVerifying)
			return nil
		}

		fresh := models.NewMember(member.ID, e.now())
		fresh.VerState = models.StateAwaitName
		if err := e.store.SetMember(ctx, fresh); err != nil {
			return fmt.Errorf("creating member: %w", err)
		}
		r.Record = fresh

		r.toMember(msgRequestName)
		return nil
	})
}

// Restart sends a mid-workflow member back to the name question. The email
// attempt counter is kept.
func (e *Engine) Restart(ctx context.Context, member Actor) (*Reply, error) {
	return e.run(ctx, "restart", member.ID, func(_ *logrus.Entry, r *Reply) error {
		rec, err := e.load(ctx, member.ID)
		if err != nil {
			return err
		}

		switch {
		case rec == nil:
			r.reject(ToMember, msgNotVerifying)
			return nil
		case rec.IDVer:
			r.reject(ToMember, msgAlreadyVerified)
			return nil
		case !rec.Verifying():
			r.reject(ToMember, msgNotVerifying)
			return nil
		}

		if err := e.persist(ctx, r, member.ID, &models.Patch{
			VerState: models.Set(models.StateAwaitName),
			VerTime:  models.Set(e.now()),
		}); err != nil {
			return err
		}

		r.toMember(msgRequestName)
		return nil
	})
}

// HandleInput routes a message from the member to the handler of their
// current state. Members without an active session are ignored.
func (e *Engine) HandleInput(ctx context.Context, member Actor, in Input) (*Reply, error) {
	return e.submit(ctx, "input", member, nil, in)
}

func (e *Engine) SubmitName(ctx context.Context, member Actor, name string) (*Reply, error) {
	return e.submit(ctx, "submit_name", member, models.Set(models.StateAwaitName), Input{Text: name})
}

func (e *Engine) SubmitUNSWAnswer(ctx context.Context, member Actor, answer string) (*Reply, error) {
	return e.submit(ctx, "submit_unsw", member, models.Set(models.StateAwaitUNSW), Input{Text: answer})
}

func (e *Engine) SubmitZID(ctx context.Context, member Actor, zid string) (*Reply, error) {
	return e.submit(ctx, "submit_zid", member, models.Set(models.StateAwaitZID), Input{Text: zid})
}

func (e *Engine) SubmitEmail(ctx context.Context, member Actor, email string) (*Reply, error) {
	return e.submit(ctx, "submit_email", member, models.Set(models.StateAwaitEmail), Input{Text: email})
}

func (e *Engine) SubmitCode(ctx context.Context, member Actor, code string) (*Reply, error) {
	return e.submit(ctx, "submit_code", member, models.Set(models.StateAwaitCode), Input{Text: code})
}

func (e *Engine) SubmitIDAttachments(ctx context.Context, member Actor, attachments []models.Attachment) (*Reply, error) {
	return e.submit(ctx, "submit_id", member, models.Set(models.StateAwaitID), Input{Attachments: attachments})
}

// ResendEmail sends the code again to the email already on record.
func (e *Engine) ResendEmail(ctx context.Context, member Actor) (*Reply, error) {
	return e.run(ctx, "resend_email", member.ID, func(log *logrus.Entry, r *Reply) error {
		rec, err := e.load(ctx, member.ID)
		if err != nil {
			return err
		}

		switch {
		case rec == nil:
			r.reject(ToMember, msgNotVerifying)
			return nil
		case rec.IDVer:
			r.reject(ToMember, msgAlreadyVerified)
			return nil
		case !rec.Verifying():
			r.reject(ToMember, msgNotVerifying)
			return nil
		case rec.VerState != models.StateAwaitCode:
			r.reject(ToMember, msgNothingToResend)
			return nil
		}

		patch, err := e.sendCode(ctx, log, r, rec, rec.Email, &models.Patch{})
		if err != nil {
			return err
		}
		return e.persist(ctx, r, member.ID, patch)
	})
}

// submit runs the state handler for the member's current state. When expect
// is set, input for any other state is ignored.
func (e *Engine) submit(
	ctx context.Context,
	op string,
	member Actor,
	expect *models.VerState,
	in Input,
) (*Reply, error) {
	return e.run(ctx, op, member.ID, func(log *logrus.Entry, r *Reply) error {
		rec, err := e.load(ctx, member.ID)
		if err != nil {
			return err
		}
		if rec == nil || rec.IDVer || !rec.Verifying() {
			log.Debug("member is not being verified, ignoring input")
			return nil
		}
		if expect != nil && rec.VerState != *expect {
			log.Debugf("member is in state %s, ignoring input for %s", rec.VerState, *expect)
			return nil
		}

		handler, ok := stateHandlers[rec.VerState]
		if !ok {
			return fmt.Errorf("no handler for state %q", rec.VerState)
		}

		log = log.WithField("state", rec.VerState.String())
		patch, err := handler(e, ctx, log, r, rec, member, in)
		if err != nil {
			return err
		}
		return e.persist(ctx, r, member.ID, patch)
	})
}
