package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/model"
	"github.com/iliyamo/canteen-ledger/internal/service"
	"github.com/iliyamo/canteen-ledger/internal/session"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth     *service.AuthService
	Sessions *session.Manager
	Logger   *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, sessions *session.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Sessions: sessions, Logger: logger}
}

// ----- DTOs -----

// loginReq accepts the identifier under either name; older clients send
// the email-or-warName value as "email".
type loginReq struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type registerReq struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
	WarName  string `json:"warName"`
	Rank     string `json:"rank"`
	Company  string `json:"company"`
	Phone    string `json:"phone"`
}

type forgotReq struct {
	Email string `json:"email" validate:"required"`
}

type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type sessionResp struct {
	User model.SessionUser `json:"user"`
}

// Login checks credentials and issues the session cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return respond(c, h.Logger, err)
	}
	ident := req.Identifier
	if strings.TrimSpace(ident) == "" {
		ident = req.Email
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Auth.Login(ctx, ident, req.Password)
	if err != nil {
		return respond(c, h.Logger, err)
	}
	su := u.Session()
	if err := h.Sessions.Issue(c, su); err != nil {
		return respond(c, h.Logger, apperr.Internal(err))
	}
	return c.JSON(http.StatusOK, sessionResp{User: su})
}

// Register creates a regular user and signs them in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return respond(c, h.Logger, err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Auth.Register(ctx, service.Registration{
		Email:    req.Email,
		Password: req.Password,
		WarName:  req.WarName,
		Rank:     req.Rank,
		Company:  req.Company,
		Phone:    req.Phone,
	})
	if err != nil {
		return respond(c, h.Logger, err)
	}
	su := u.Session()
	if err := h.Sessions.Issue(c, su); err != nil {
		return respond(c, h.Logger, apperr.Internal(err))
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "user": su})
}

// ForgotPassword issues a one-hour reset token.  The token is returned in
// the response body; there is no mail delivery.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := bind(c, &req); err != nil {
		return respond(c, h.Logger, err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	tok, err := h.Auth.ForgotPassword(ctx, req.Email)
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"token":     tok.Raw,
		"expiresAt": tok.Exp,
		"message":   "reset token generated",
	})
}

// ResetPassword consumes a reset token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bind(c, &req); err != nil {
		return respond(c, h.Logger, err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "password updated"})
}

// Session returns the identity carried by the cookie.
func (h *AuthHandler) Session(c echo.Context) error {
	s := session.FromContext(c)
	if s == nil {
		return respond(c, h.Logger, apperr.Unauthorized("unauthorized"))
	}
	return c.JSON(http.StatusOK, s)
}

// Logout expires the session cookie.  It succeeds without a session.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.Sessions.Clear(c)
	return c.JSON(http.StatusOK, success())
}
