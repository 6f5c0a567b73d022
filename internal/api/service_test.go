package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/C4T-BuT-S4D/vouch/internal/config"
	"github.com/C4T-BuT-S4D/vouch/internal/models"
	"github.com/C4T-BuT-S4D/vouch/internal/verify"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v4"
)

const testToken = "secret-token"

type call struct {
	Op       string
	Admin    verify.Actor
	MemberID int64
	Reason   string
	Manual   verify.ManualInput
}

type fakeEngine struct {
	calls []call
	reply *verify.Reply
	err   error
}

func (f *fakeEngine) record(c call) (*verify.Reply, error) {
	f.calls = append(f.calls, c)
	if f.err != nil {
		return nil, f.err
	}
	r := *f.reply
	r.MemberID = c.MemberID
	return &r, nil
}

func (f *fakeEngine) Approve(_ context.Context, admin verify.Actor, id int64) (*verify.Reply, error) {
	return f.record(call{Op: "approve", Admin: admin, MemberID: id})
}

func (f *fakeEngine) Reject(_ context.Context, admin verify.Actor, id int64, reason string) (*verify.Reply, error) {
	return f.record(call{Op: "reject", Admin: admin, MemberID: id, Reason: reason})
}

func (f *fakeEngine) ResendID(_ context.Context, admin verify.Actor, id int64) (*verify.Reply, error) {
	return f.record(call{Op: "resend_id", Admin: admin, MemberID: id})
}

func (f *fakeEngine) ListPending(_ context.Context, admin verify.Actor) (*verify.Reply, error) {
	return f.record(call{Op: "pending", Admin: admin})
}

func (f *fakeEngine) ManualVerify(_ context.Context, admin verify.Actor, id int64, in verify.ManualInput) (*verify.Reply, error) {
	return f.record(call{Op: "manual", Admin: admin, MemberID: id, Manual: in})
}

func (f *fakeEngine) Unlock(_ context.Context, admin verify.Actor, id int64) (*verify.Reply, error) {
	return f.record(call{Op: "unlock", Admin: admin, MemberID: id})
}

type fakeDelivery struct {
	delivered []*verify.Reply
}

func (d *fakeDelivery) Deliver(_ context.Context, actorChat telebot.Recipient, r *verify.Reply) error {
	if actorChat != nil {
		return errors.New("api replies have no actor chat")
	}
	d.delivered = append(d.delivered, r)
	return nil
}

type testServer struct {
	e        *echo.Echo
	engine   *fakeEngine
	delivery *fakeDelivery
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		e:        echo.New(),
		engine:   &fakeEngine{reply: &verify.Reply{}},
		delivery: &fakeDelivery{},
	}
	NewService(&config.Config{APIToken: testToken}, ts.engine, ts.delivery).Register(ts.e)
	return ts
}

func (ts *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) replyResponse {
	t.Helper()
	var resp replyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsExposed(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/pending", "", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/pending", "", "")
	assert.NotEqual(t, http.StatusOK, rec.Code)

	assert.Empty(t, ts.engine.calls)
}

func TestMemberRoutes(t *testing.T) {
	tests := []struct {
		path string
		body string
		want call
	}{
		{
			path: "/api/members/1001/approve",
			body: `{"admin_id": 9, "admin_name": "Admin"}`,
			want: call{Op: "approve", Admin: verify.Actor{ID: 9, Name: "Admin"}, MemberID: 1001},
		},
		{
			path: "/api/members/1001/reject",
			body: `{"admin_id": 9, "reason": "blurry"}`,
			want: call{Op: "reject", Admin: verify.Actor{ID: 9}, MemberID: 1001, Reason: "blurry"},
		},
		{
			path: "/api/members/1001/resend-id",
			want: call{Op: "resend_id", MemberID: 1001},
		},
		{
			path: "/api/members/1001/manual",
			body: `{"zid": "z5242579", "name": "Alice"}`,
			want: call{Op: "manual", MemberID: 1001, Manual: verify.ManualInput{ZID: "z5242579", Name: "Alice"}},
		},
		{
			path: "/api/members/1001/unlock",
			want: call{Op: "unlock", MemberID: 1001},
		},
	}

	for _, tt := range tests {
		t.Run(tt.want.Op, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(http.MethodPost, tt.path, tt.body, testToken)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			require.Len(t, ts.engine.calls, 1)
			assert.Equal(t, tt.want, ts.engine.calls[0])
			assert.Len(t, ts.delivery.delivered, 1)
			assert.Equal(t, int64(1001), decode(t, rec).MemberID)
		})
	}
}

func TestInvalidMemberID(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/members/abc/approve", "", testToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.engine.calls)
}

func TestRejectedReply(t *testing.T) {
	ts := newTestServer(t)
	ts.engine.reply = &verify.Reply{Rejected: true, Reason: "not awaiting approval"}

	rec := ts.do(http.MethodPost, "/api/members/5/approve", "", testToken)
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Rejected)
	assert.Equal(t, "not awaiting approval", resp.Reason)
}

func TestEngineError(t *testing.T) {
	ts := newTestServer(t)
	ts.engine.err = errors.New("db down")

	rec := ts.do(http.MethodPost, "/api/members/5/unlock", "", testToken)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
	assert.Empty(t, ts.delivery.delivered)
}

func TestListPending(t *testing.T) {
	ts := newTestServer(t)
	ts.engine.reply = &verify.Reply{Pending: []*models.Member{
		{ID: 1001, Name: "Alice", VerState: models.StateAwaitApproval},
	}}

	rec := ts.do(http.MethodGet, "/api/pending", "", testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []memberResponse{{ID: 1001, Name: "Alice", VerState: "await_approval"}}, decode(t, rec).Pending)
}
