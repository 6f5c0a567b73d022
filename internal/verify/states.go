package verify

import (
	"context"
	"strings"

	"github.com/C4T-BuT-S4D/vouch/internal/models"
	"github.com/sirupsen/logrus"
)

// stateHandler validates input for one state. It returns the patch to persist,
// or nil when the input was rejected and the record must stay as it is.
type stateHandler func(
	e *Engine,
	ctx context.Context,
	log *logrus.Entry,
	r *Reply,
	rec *models.Member,
	member Actor,
	in Input,
) (*models.Patch, error)

var stateHandlers = map[models.VerState]stateHandler{
	models.StateAwaitName:     (*Engine).onName,
	models.StateAwaitUNSW:     (*Engine).onUNSW,
	models.StateAwaitZID:      (*Engine).onZID,
	models.StateAwaitEmail:    (*Engine).onEmail,
	models.StateAwaitCode:     (*Engine).onCode,
	models.StateAwaitID:       (*Engine).onID,
	models.StateAwaitApproval: (*Engine).onApproval,
}

func (e *Engine) onName(_ context.Context, _ *logrus.Entry, r *Reply, _ *models.Member, _ Actor, in Input) (*models.Patch, error) {
	name := strings.TrimSpace(in.Text)
	if !IsValidName(name) {
		r.reject(ToMember, msgNameInvalid)
		return nil, nil
	}

	r.toMember(msgRequestUNSW)
	return &models.Patch{
		Name:     models.Set(name),
		VerState: models.Set(models.StateAwaitUNSW),
	}, nil
}

func (e *Engine) onUNSW(_ context.Context, _ *logrus.Entry, r *Reply, _ *models.Member, _ Actor, in Input) (*models.Patch, error) {
	yes, ok := parseYesNo(in.Text)
	if !ok {
		r.reject(ToMember, msgYesNoInvalid)
		return nil, nil
	}

	if yes {
		r.toMember(msgRequestZID)
		return &models.Patch{VerState: models.Set(models.StateAwaitZID)}, nil
	}

	// A zID left over from before a restart must not mark the member as
	// affiliated.
	r.toMember(msgRequestEmail)
	return &models.Patch{
		ZID:      models.Set(""),
		VerState: models.Set(models.StateAwaitEmail),
	}, nil
}

func (e *Engine) onZID(ctx context.Context, log *logrus.Entry, r *Reply, rec *models.Member, _ Actor, in Input) (*models.Patch, error) {
	zid := NormalizeZID(in.Text)
	if !IsValidZID(zid) {
		r.reject(ToMember, msgZIDInvalid)
		return nil, nil
	}

	email := e.StudentEmail(zid)
	return e.sendCode(ctx, log, r, rec, email, &models.Patch{
		ZID:   models.Set(zid),
		Email: models.Set(email),
	})
}

func (e *Engine) onEmail(ctx context.Context, log *logrus.Entry, r *Reply, rec *models.Member, _ Actor, in Input) (*models.Patch, error) {
	email := strings.TrimSpace(in.Text)
	if !IsValidEmail(email) {
		r.reject(ToMember, msgEmailInvalid)
		return nil, nil
	}

	return e.sendCode(ctx, log, r, rec, email, &models.Patch{
		Email: models.Set(email),
	})
}

func (e *Engine) onCode(ctx context.Context, log *logrus.Entry, r *Reply, rec *models.Member, member Actor, in Input) (*models.Patch, error) {
	if !e.oracle.Check(rec.ID, rec.Email, in.Text) {
		r.reject(ToMember, msgCodeInvalid)
		return nil, nil
	}

	patch := &models.Patch{
		EmailVer: models.Set(true),
		VerTime:  models.Set(e.now()),
	}

	if !rec.Affiliated() {
		log.Info("email verified, requesting id")
		patch.VerState = models.Set(models.StateAwaitID)
		r.toMember(msgRequestID)
		return patch, nil
	}

	log.Info("affiliated member verified email, granting rank")
	if err := e.grantRank(ctx, r, rec.ID, displayName(member.Name, rec.Name), PathEmail, false); err != nil {
		return nil, err
	}
	patch.IDVer = models.Set(true)
	patch.VerState = models.Set(models.StateNone)
	return patch, nil
}

func (e *Engine) onID(ctx context.Context, log *logrus.Entry, r *Reply, rec *models.Member, member Actor, in Input) (*models.Patch, error) {
	if len(in.Attachments) == 0 {
		r.reject(ToMember, msgIDMissing)
		return nil, nil
	}

	ref, err := e.forwardID(ctx, rec, displayName(member.Name, rec.Name), in.Attachments, false)
	if err != nil {
		return nil, err
	}
	log.Infof("forwarded %d attachment(s) to admins as %s", len(in.Attachments), ref)

	r.toMember(msgIDForwarded)
	return &models.Patch{
		IDMessage: models.Set(ref),
		VerState:  models.Set(models.StateAwaitApproval),
	}, nil
}

func (e *Engine) onApproval(_ context.Context, _ *logrus.Entry, r *Reply, _ *models.Member, _ Actor, _ Input) (*models.Patch, error) {
	r.toMember(msgAwaitingReview)
	return nil, nil
}

func displayName(names ...string) string {
	for _, n := range names {
		if n != "" {
			return n
		}
	}
	return ""
}
