// Package verify implements the member verification workflow: the per-member
// state machine, the rate-limited one-time code email step, administrator
// overrides and the rank grant that ends a successful verification.
//
// Every entry point serializes on the member it touches, computes a single
// patch in memory and persists it through the Store. External calls (email,
// rank grant, admin chat) run before the patch is written, under a bounded
// timeout, so a failed call leaves the record untouched.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/C4T-BuT-S4D/vouch/internal/metrics"
	"github.com/C4T-BuT-S4D/vouch/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrDeliveryFault is returned by a Dispatcher when the email could not be
	// delivered to the recipient, e.g. a bounce or a rejected address.
	ErrDeliveryFault = errors.New("email delivery fault")

	// ErrForwardNotFound is returned by an AdminBoard when a previously
	// forwarded identity message can no longer be resolved.
	ErrForwardNotFound = errors.New("forwarded id message not found")
)

type Store interface {
	GetMember(ctx context.Context, memberID int64) (*models.Member, error)
	SetMember(ctx context.Context, member *models.Member) error
	UpdateMember(ctx context.Context, memberID int64, patch *models.Patch) error
	ListMembersInState(ctx context.Context, state models.VerState) ([]*models.Member, error)
}

type Dispatcher interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

type CodeOracle interface {
	Derive(memberID int64, email string) string
	Check(memberID int64, email, submitted string) bool
}

type RankGranter interface {
	GrantRank(ctx context.Context, memberID int64) error
}

// AdminBoard posts identity attachments to the administrator chat.
type AdminBoard interface {
	ForwardID(ctx context.Context, memberID int64, caption string, attachments []models.Attachment) (string, error)
	LookupID(ctx context.Context, ref string) ([]models.Attachment, error)
}

type Config struct {
	MaxEmailAttempts    int
	ExternalCallTimeout time.Duration
	StudentEmailDomain  string
	MailSubject         string
}

// Actor is whoever invoked an operation: the member themselves or an
// administrator.
type Actor struct {
	ID   int64
	Name string
}

func (a Actor) Mention() string {
	return mention(a.Name, a.ID)
}

type Input struct {
	Text        string
	Attachments []models.Attachment
}

type ManualInput struct {
	Name  string
	ZID   string
	Email string
}

type Engine struct {
	cfg     Config
	store   Store
	mail    Dispatcher
	oracle  CodeOracle
	granter RankGranter
	board   AdminBoard

	locks *memberLocks
	now   func() time.Time
}

func New(
	cfg Config,
	store Store,
	mail Dispatcher,
	oracle CodeOracle,
	granter RankGranter,
	board AdminBoard,
) *Engine {
	if cfg.StudentEmailDomain == "" {
		cfg.StudentEmailDomain = DefaultStudentEmailDomain
	}
	if cfg.MailSubject == "" {
		cfg.MailSubject = "Server verification"
	}
	if cfg.ExternalCallTimeout <= 0 {
		cfg.ExternalCallTimeout = 10 * time.Second
	}
	return &Engine{
		cfg:     cfg,
		store:   store,
		mail:    mail,
		oracle:  oracle,
		granter: granter,
		board:   board,
		locks:   newMemberLocks(),
		now:     time.Now,
	}
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// StudentEmail returns the email address derived from a zID.
func (e *Engine) StudentEmail(zid string) string {
	return fmt.Sprintf("%s@%s", zid, e.cfg.StudentEmailDomain)
}

// run wraps one operation on a member: it takes the member lock, logs and
// records metrics.
func (e *Engine) run(
	ctx context.Context,
	op string,
	memberID int64,
	fn func(log *logrus.Entry, r *Reply) error,
) (*Reply, error) {
	start := time.Now()
	unlock := e.locks.lock(memberID)
	defer unlock()

	log := logrus.WithFields(logrus.Fields{
		"op":        op,
		"member_id": memberID,
	})
	log.Debug("invoke")

	r := &Reply{MemberID: memberID}
	err := fn(log, r)
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.Operations.WithLabelValues(op, metrics.OutcomeError).Inc()
		log.Errorf("failed: %v", err)
		return nil, err
	case r.Rejected:
		metrics.Operations.WithLabelValues(op, metrics.OutcomeRejected).Inc()
		log.Debugf("rejected: %s", r.Reason)
	default:
		metrics.Operations.WithLabelValues(op, metrics.OutcomeOK).Inc()
		log.Debug("success")
	}
	return r, nil
}

// load fetches a member, returning nil without error when the member has no
// record yet.
func (e *Engine) load(ctx context.Context, memberID int64) (*models.Member, error) {
	rec, err := e.store.GetMember(ctx, memberID)
	if errors.Is(err, models.ErrMemberNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading member: %w", err)
	}
	return rec, nil
}

func (e *Engine) persist(ctx context.Context, r *Reply, memberID int64, patch *models.Patch) error {
	if patch.Empty() {
		return nil
	}
	if err := e.store.UpdateMember(ctx, memberID, patch); err != nil {
		return fmt.Errorf("persisting member: %w", err)
	}
	r.Patch = patch
	return nil
}

func (e *Engine) external(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.ExternalCallTimeout)
}

func mention(name string, id int64) string {
	if name == "" {
		return fmt.Sprintf("member %d", id)
	}
	return fmt.Sprintf("%s (%d)", name, id)
}
