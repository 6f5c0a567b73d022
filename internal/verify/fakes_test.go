package verify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/C4T-BuT-S4D/vouch/internal/codes"
	"github.com/C4T-BuT-S4D/vouch/internal/models"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	members map[int64]*models.Member
	sets    int
	updates int
}

func newMemStore() *memStore {
	return &memStore{members: make(map[int64]*models.Member)}
}

func (s *memStore) GetMember(_ context.Context, memberID int64) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberID]
	if !ok {
		return nil, fmt.Errorf("getting member %d: %w", memberID, models.ErrMemberNotFound)
	}
	return m.Clone(), nil
}

func (s *memStore) SetMember(_ context.Context, member *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.members[member.ID] = member.Clone()
	return nil
}

func (s *memStore) UpdateMember(_ context.Context, memberID int64, patch *models.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberID]
	if !ok {
		return fmt.Errorf("updating member %d: %w", memberID, models.ErrMemberNotFound)
	}
	s.updates++
	patch.Apply(m)
	return nil
}

func (s *memStore) ListMembersInState(_ context.Context, state models.VerState) ([]*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Member
	for _, m := range s.members {
		if m.VerState == state && !m.IDVer {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) put(m *models.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m.Clone()
}

func (s *memStore) get(t *testing.T, id int64) *models.Member {
	t.Helper()
	m, err := s.GetMember(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (s *memStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets + s.updates
}

type sentMail struct {
	Recipient string
	Subject   string
	Body      string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, recipient, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeGranter struct {
	mu      sync.Mutex
	granted []int64
	err     error
}

func (g *fakeGranter) GrantRank(_ context.Context, memberID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.granted = append(g.granted, memberID)
	return nil
}

type forward struct {
	MemberID    int64
	Caption     string
	Attachments []models.Attachment
}

type fakeBoard struct {
	mu        sync.Mutex
	forwards  map[string]forward
	posted    []forward
	lookupErr error
}

func (b *fakeBoard) ForwardID(_ context.Context, memberID int64, caption string, attachments []models.Attachment) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.forwards == nil {
		b.forwards = make(map[string]forward)
	}
	ref := fmt.Sprintf("fwd-%d", len(b.posted)+1)
	f := forward{MemberID: memberID, Caption: caption, Attachments: attachments}
	b.forwards[ref] = f
	b.posted = append(b.posted, f)
	return ref, nil
}

func (b *fakeBoard) LookupID(_ context.Context, ref string) ([]models.Attachment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lookupErr != nil {
		return nil, b.lookupErr
	}
	f, ok := b.forwards[ref]
	if !ok {
		return nil, ErrForwardNotFound
	}
	return f.Attachments, nil
}

const (
	testMaxAttempts = 3
	aliceID         = int64(1001)
	adminID         = int64(9)
)

var (
	alice     = Actor{ID: aliceID, Name: "Alice"}
	moderator = Actor{ID: adminID, Name: "Admin"}
	photo     = models.Attachment{Kind: models.AttachmentPhoto, FileID: "photo-1"}
)

type harness struct {
	engine  *Engine
	store   *memStore
	mail    *fakeMailer
	granter *fakeGranter
	board   *fakeBoard
	oracle  *codes.Oracle
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   newMemStore(),
		mail:    &fakeMailer{},
		granter: &fakeGranter{},
		board:   &fakeBoard{},
		oracle:  codes.New([]byte("test-salt"), 0),
		now:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	h.engine = New(Config{
		MaxEmailAttempts:    testMaxAttempts,
		ExternalCallTimeout: time.Second,
	}, h.store, h.mail, h.oracle, h.granter, h.board).WithClock(func() time.Time { return h.now })
	return h
}

// at seeds a member record in the given state.
func (h *harness) at(state models.VerState, mutate ...func(*models.Member)) *models.Member {
	m := models.NewMember(aliceID, h.now.Add(-time.Hour))
	m.Name = "Alice"
	m.VerState = state
	switch state {
	case models.StateAwaitCode, models.StateAwaitID, models.StateAwaitApproval:
		m.Email = "a@b.com"
		m.EmailAttempts = 1
	}
	if state == models.StateAwaitID || state == models.StateAwaitApproval {
		m.EmailVer = true
	}
	for _, fn := range mutate {
		fn(m)
	}
	h.store.put(m)
	return m
}
