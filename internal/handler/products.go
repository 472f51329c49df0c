package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/service"
	"github.com/iliyamo/canteen-ledger/internal/session"
)

// ProductHandler serves the product catalogue.
type ProductHandler struct {
	Products *service.ProductService
	Logger   *zap.Logger
}

func NewProductHandler(products *service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{Products: products, Logger: logger}
}

// productReq creates a product, or updates one when id is present.
type productReq struct {
	ID        string           `json:"id"`
	Name      string           `json:"name" validate:"required"`
	Price     *decimal.Decimal `json:"price" validate:"required"`
	Available *bool            `json:"available"`
	ImageURL  string           `json:"imageUrl"`
}

// List handles GET /products?includeUnavailable=true.  The body is a
// tagged union: {"kind":"Flat","items":[...]} for an admin's own catalogue,
// {"kind":"GroupedByAdmin","groups":{...}} for everyone else.
func (h *ProductHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.Products.List(ctx, session.FromContext(c), c.QueryParam("includeUnavailable") == "true")
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Save handles POST /products.  201 on create, 200 on update.
func (h *ProductHandler) Save(c echo.Context) error {
	var req productReq
	if err := bind(c, &req); err != nil {
		return respond(c, h.Logger, err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	p, created, err := h.Products.Save(ctx, session.FromContext(c), service.ProductInput{
		ID:        req.ID,
		Name:      req.Name,
		Price:     *req.Price,
		Available: req.Available,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		return respond(c, h.Logger, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, p)
}

// Delete handles DELETE /products?id=.
func (h *ProductHandler) Delete(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Products.Delete(ctx, session.FromContext(c), c.QueryParam("id")); err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, success())
}
