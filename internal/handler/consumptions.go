package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/service"
	"github.com/iliyamo/canteen-ledger/internal/session"
)

// ConsumptionHandler records and lists the caller's consumption.
type ConsumptionHandler struct {
	Consumptions *service.ConsumptionService
	Logger       *zap.Logger
}

func NewConsumptionHandler(consumptions *service.ConsumptionService, logger *zap.Logger) *ConsumptionHandler {
	return &ConsumptionHandler{Consumptions: consumptions, Logger: logger}
}

type itemReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// consumptionReq is either a single item ({productId, quantity}) or a cart
// ({items: [...]}).  userId is honoured for admins only.
type consumptionReq struct {
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Items     []itemReq `json:"items"`
}

// List handles GET /consumptions.
func (h *ConsumptionHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	lines, err := h.Consumptions.List(ctx, session.FromContext(c))
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, lines)
}

// Create handles POST /consumptions.  A single item answers like a plain
// create; a cart answers with per-item results and 201, 207 or the
// failure status.
func (h *ConsumptionHandler) Create(c echo.Context) error {
	var req consumptionReq
	if err := bind(c, &req); err != nil {
		return respond(c, h.Logger, err)
	}
	cart := len(req.Items) > 0
	items := make([]service.ConsumptionItem, 0, len(req.Items)+1)
	if cart {
		for _, it := range req.Items {
			items = append(items, service.ConsumptionItem{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	} else if req.ProductID != "" {
		items = append(items, service.ConsumptionItem{ProductID: req.ProductID, Quantity: req.Quantity})
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Consumptions.Record(ctx, session.FromContext(c), req.UserID, items)
	if err != nil {
		return respond(c, h.Logger, err)
	}
	if !cart {
		r := res.Results[0]
		if err := r.Err(); err != nil {
			return respond(c, h.Logger, err)
		}
		return c.JSON(http.StatusCreated, r.Consumption)
	}
	if res.Created == 0 {
		if ae := apperr.From(res.Results[0].Err()); ae.HTTPCode >= http.StatusInternalServerError {
			return respond(c, h.Logger, ae)
		}
	}
	return c.JSON(res.Status(), res)
}
