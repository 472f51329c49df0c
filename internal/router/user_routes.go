package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/canteen-ledger/internal/authz"
	"github.com/iliyamo/canteen-ledger/internal/handler"
	"github.com/iliyamo/canteen-ledger/internal/middleware"
)

// RegisterUsers registers profile endpoints.  All of them need a session;
// the listing additionally needs an admin.  Per-user access (self or
// admin) is decided by the service once the target id is known.
func RegisterUsers(e *echo.Echo, h *handler.UserHandler) {
	g := e.Group("/users", middleware.Require(authz.ViewSelf))
	g.GET("", h.List, middleware.Require(authz.ListUsers))
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
}

// RegisterConsumptions registers the caller's own consumption endpoints.
func RegisterConsumptions(e *echo.Echo, h *handler.ConsumptionHandler) {
	g := e.Group("/consumptions", middleware.Require(authz.ViewSelf))
	g.GET("", h.List)
	g.POST("", h.Create)
}

// RegisterNotifications registers the caller's inbox.
func RegisterNotifications(e *echo.Echo, h *handler.NotificationHandler) {
	g := e.Group("/notifications", middleware.Require(authz.ViewSelf))
	g.GET("", h.List)
	g.PUT("", h.MarkRead)
	g.PUT("/:id", h.MarkOneRead)
	g.DELETE("", h.Clear)
}
