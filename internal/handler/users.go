package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/ledger"
	"github.com/iliyamo/canteen-ledger/internal/model"
	"github.com/iliyamo/canteen-ledger/internal/service"
	"github.com/iliyamo/canteen-ledger/internal/session"
)

// UserHandler serves the user listing and profiles.
type UserHandler struct {
	Users  *service.UserService
	Logger *zap.Logger
}

func NewUserHandler(users *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{Users: users, Logger: logger}
}

// profileReq uses pointers so absent fields are left untouched.
type profileReq struct {
	WarName   *string `json:"warName"`
	Rank      *string `json:"rank"`
	Company   *string `json:"company"`
	Phone     *string `json:"phone"`
	PixKey    *string `json:"pixKey"`
	PixQrCode *string `json:"pixQrCode"`
}

// List handles GET /users?order=&company=&rank= for admins.  Each user's
// total only counts consumption of the calling admin's products.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.Users.ListWithTotals(ctx, session.FromContext(c), service.UserListQuery{
		Order:   ledger.ParseOrder(c.QueryParam("order")),
		Company: c.QueryParam("company"),
		Rank:    c.QueryParam("rank"),
	})
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /users/:id.
func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	d, err := h.Users.Detail(ctx, session.FromContext(c), c.Param("id"))
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Update handles PUT /users/:id.
func (h *UserHandler) Update(c echo.Context) error {
	var req profileReq
	if err := bind(c, &req); err != nil {
		return respond(c, h.Logger, err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, session.FromContext(c), c.Param("id"), model.ProfileUpdate{
		WarName:   req.WarName,
		Rank:      req.Rank,
		Company:   req.Company,
		Phone:     req.Phone,
		PixKey:    req.PixKey,
		PixQrCode: req.PixQrCode,
	})
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, u)
}
