package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/C4T-BuT-S4D/vouch/internal/metrics"
	"github.com/C4T-BuT-S4D/vouch/internal/models"
	"github.com/sirupsen/logrus"
)

// sendCode emails a one-time code to the member. On success it extends patch
// with the consumed attempt and the move to StateAwaitCode. It returns a nil
// patch when the attempt cap is reached or delivery failed, in which case the
// record must not change.
func (e *Engine) sendCode(
	ctx context.Context,
	log *logrus.Entry,
	r *Reply,
	rec *models.Member,
	email string,
	patch *models.Patch,
) (*models.Patch, error) {
	if rec.EmailAttempts >= e.cfg.MaxEmailAttempts {
		log.Warnf("email attempts exhausted (%d/%d)", rec.EmailAttempts, e.cfg.MaxEmailAttempts)
		metrics.Emails.WithLabelValues("exhausted").Inc()
		r.reject(ToMember, msgTooManyEmails)
		return nil, nil
	}

	code := e.oracle.Derive(rec.ID, email)
	body := fmt.Sprintf("Your verification code is %s\n\nReply to the bot with this code to continue.", code)

	sendCtx, cancel := e.external(ctx)
	defer cancel()

	if err := e.mail.Send(sendCtx, email, e.cfg.MailSubject, body); err != nil {
		if !errors.Is(err, ErrDeliveryFault) && !errors.Is(err, context.DeadlineExceeded) {
			metrics.Emails.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("sending code email: %w", err)
		}
		log.Warnf("email to %s failed: %v", email, err)
		metrics.Emails.WithLabelValues("fault").Inc()
		r.reject(ToMember, msgEmailFailed)
		return nil, nil
	}

	log.Infof("sent code email to %s (attempt %d/%d)", email, rec.EmailAttempts+1, e.cfg.MaxEmailAttempts)
	metrics.Emails.WithLabelValues("sent").Inc()

	patch.EmailAttempts = models.Set(rec.EmailAttempts + 1)
	patch.VerState = models.Set(models.StateAwaitCode)
	r.toMember(msgRequestCode)
	return patch, nil
}
