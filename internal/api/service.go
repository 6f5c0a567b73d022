package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/C4T-BuT-S4D/vouch/internal/config"
	"github.com/C4T-BuT-S4D/vouch/internal/verify"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v4"
)

// Engine is the administrator surface of the verification engine.
type Engine interface {
	Approve(ctx context.Context, admin verify.Actor, memberID int64) (*verify.Reply, error)
	Reject(ctx context.Context, admin verify.Actor, memberID int64, reason string) (*verify.Reply, error)
	ResendID(ctx context.Context, admin verify.Actor, memberID int64) (*verify.Reply, error)
	ListPending(ctx context.Context, admin verify.Actor) (*verify.Reply, error)
	ManualVerify(ctx context.Context, admin verify.Actor, memberID int64, in verify.ManualInput) (*verify.Reply, error)
	Unlock(ctx context.Context, admin verify.Actor, memberID int64) (*verify.Reply, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, actorChat telebot.Recipient, r *verify.Reply) error
}

type Service struct {
	config   *config.Config
	engine   Engine
	delivery Deliverer
}

func NewService(cfg *config.Config, engine Engine, delivery Deliverer) *Service {
	return &Service{
		config:   cfg,
		engine:   engine,
		delivery: delivery,
	}
}

// Register mounts the routes. Everything under /api requires the bearer token.
func (s *Service) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/api", middleware.KeyAuth(func(key string, _ echo.Context) (bool, error) {
		return subtle.ConstantTimeCompare([]byte(key), []byte(s.config.APIToken)) == 1, nil
	}))
	g.GET("/pending", s.HandleListPending())
	g.POST("/members/:id/approve", s.HandleApprove())
	g.POST("/members/:id/reject", s.HandleReject())
	g.POST("/members/:id/resend-id", s.HandleResendID())
	g.POST("/members/:id/manual", s.HandleManualVerify())
	g.POST("/members/:id/unlock", s.HandleUnlock())
}

type adminRequest struct {
	AdminID   int64  `json:"admin_id"`
	AdminName string `json:"admin_name"`
}

func (r adminRequest) actor() verify.Actor {
	return verify.Actor{ID: r.AdminID, Name: r.AdminName}
}

type rejectRequest struct {
	adminRequest
	Reason string `json:"reason"`
}

type manualRequest struct {
	adminRequest
	Name  string `json:"name"`
	ZID   string `json:"zid"`
	Email string `json:"email"`
}

type memberResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	VerState string `json:"ver_state"`
}

type replyResponse struct {
	MemberID      int64                 `json:"member_id"`
	Rejected      bool                  `json:"rejected"`
	Reason        string                `json:"reason,omitempty"`
	Granted       bool                  `json:"granted"`
	Notifications []verify.Notification `json:"notifications"`
	Pending       []memberResponse      `json:"pending,omitempty"`
}

func (s *Service) HandleListPending() echo.HandlerFunc {
	return func(c echo.Context) error {
		reply, err := s.engine.ListPending(c.Request().Context(), verify.Actor{})
		return s.respond(c, reply, err)
	}
}

func (s *Service) HandleApprove() echo.HandlerFunc {
	return s.memberHandler(func(c echo.Context, id int64) (*verify.Reply, error) {
		var req adminRequest
		if err := c.Bind(&req); err != nil {
			return nil, err
		}
		return s.engine.Approve(c.Request().Context(), req.actor(), id)
	})
}

func (s *Service) HandleReject() echo.HandlerFunc {
	return s.memberHandler(func(c echo.Context, id int64) (*verify.Reply, error) {
		var req rejectRequest
		if err := c.Bind(&req); err != nil {
			return nil, err
		}
		return s.engine.Reject(c.Request().Context(), req.actor(), id, req.Reason)
	})
}

func (s *Service) HandleResendID() echo.HandlerFunc {
	return s.memberHandler(func(c echo.Context, id int64) (*verify.Reply, error) {
		var req adminRequest
		if err := c.Bind(&req); err != nil {
			return nil, err
		}
		return s.engine.ResendID(c.Request().Context(), req.actor(), id)
	})
}

func (s *Service) HandleManualVerify() echo.HandlerFunc {
	return s.memberHandler(func(c echo.Context, id int64) (*verify.Reply, error) {
		var req manualRequest
		if err := c.Bind(&req); err != nil {
			return nil, err
		}
		return s.engine.ManualVerify(c.Request().Context(), req.actor(), id, verify.ManualInput{
			Name:  req.Name,
			ZID:   req.ZID,
			Email: req.Email,
		})
	})
}

func (s *Service) HandleUnlock() echo.HandlerFunc {
	return s.memberHandler(func(c echo.Context, id int64) (*verify.Reply, error) {
		var req adminRequest
		if err := c.Bind(&req); err != nil {
			return nil, err
		}
		return s.engine.Unlock(c.Request().Context(), req.actor(), id)
	})
}

func (s *Service) memberHandler(fn func(c echo.Context, id int64) (*verify.Reply, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
		}

		reply, err := fn(c, id)
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		}
		return s.respond(c, reply, err)
	}
}

func (s *Service) respond(c echo.Context, reply *verify.Reply, err error) error {
	if err != nil {
		logrus.Errorf("admin api %s failed: %v", c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	if err := s.delivery.Deliver(c.Request().Context(), nil, reply); err != nil {
		logrus.Errorf("failed to deliver notifications: %v", err)
	}

	resp := replyResponse{
		MemberID:      reply.MemberID,
		Rejected:      reply.Rejected,
		Reason:        reply.Reason,
		Granted:       reply.Granted,
		Notifications: reply.Notifications,
	}
	for _, m := range reply.Pending {
		resp.Pending = append(resp.Pending, memberResponse{
			ID:       m.ID,
			Name:     m.Name,
			Email:    m.Email,
			VerState: m.VerState.String(),
		})
	}

	status := http.StatusOK
	if reply.Rejected {
		status = http.StatusConflict
	}
	return c.JSON(status, resp)
}
