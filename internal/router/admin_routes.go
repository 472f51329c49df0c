package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/canteen-ledger/internal/authz"
	"github.com/iliyamo/canteen-ledger/internal/handler"
	"github.com/iliyamo/canteen-ledger/internal/middleware"
)

// RegisterProducts registers the catalogue.  Listing is public and its
// shape depends on the caller; writes are admin-only and owner-scoped.
func RegisterProducts(e *echo.Echo, h *handler.ProductHandler) {
	e.GET("/products", h.List)
	e.POST("/products", h.Save, middleware.Require(authz.ManageProduct))
	e.DELETE("/products", h.Delete, middleware.Require(authz.ManageProduct))
}

// RegisterAdmin registers tenant operations under /admin.  Billing info is
// readable by any signed-in user so debtors know how to pay.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler) {
	g := e.Group("/admin", middleware.Require(authz.ViewSelf))
	g.GET("/pix", h.Pix)

	admin := middleware.Require(authz.ViewTenantReport)
	g.POST("/consumptions", h.ClearDebt, admin)
	g.DELETE("/consumptions", h.DeleteConsumption, admin)
	g.GET("/profit", h.Profit, admin)
	g.GET("/products-sold", h.ProductsSold, admin)
}
