package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/service"
	"github.com/iliyamo/canteen-ledger/internal/session"
)

// AdminHandler serves the tenant operations: debt clearing and reports.
type AdminHandler struct {
	Ledger *service.LedgerService
	Logger *zap.Logger
}

func NewAdminHandler(ledger *service.LedgerService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{Ledger: ledger, Logger: logger}
}

type clearReq struct {
	UserID string `json:"userId" validate:"required"`
}

type deleteConsumptionReq struct {
	ConsumptionID string `json:"consumptionId" validate:"required"`
}

// ClearDebt handles POST /admin/consumptions.  Clearing a user who owes
// nothing still succeeds and still notifies.
func (h *AdminHandler) ClearDebt(c echo.Context) error {
	var req clearReq
	if err := bind(c, &req); err != nil {
		return respond(c, h.Logger, err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Ledger.ClearDebt(ctx, session.FromContext(c), req.UserID)
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"cleared":        res.Cleared,
		"notificationId": res.NotificationID,
	})
}

// DeleteConsumption handles DELETE /admin/consumptions.
func (h *AdminHandler) DeleteConsumption(c echo.Context) error {
	var req deleteConsumptionReq
	if err := bind(c, &req); err != nil {
		return respond(c, h.Logger, err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Ledger.DeleteConsumption(ctx, session.FromContext(c), req.ConsumptionID); err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, success())
}

// Profit handles GET /admin/profit.
func (h *AdminHandler) Profit(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.Ledger.Profit(ctx, session.FromContext(c))
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ProductsSold handles GET /admin/products-sold.
func (h *AdminHandler) ProductsSold(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.Ledger.ProductsSold(ctx, session.FromContext(c))
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Pix handles GET /admin/pix?adminId=, the payment details of one admin.
func (h *AdminHandler) Pix(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.Ledger.BillingInfo(ctx, session.FromContext(c), c.QueryParam("adminId"))
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}
