package router // package router wires handlers and middleware onto echo

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/handler"
	"github.com/iliyamo/canteen-ledger/internal/metrics"
	"github.com/iliyamo/canteen-ledger/internal/middleware"
	"github.com/iliyamo/canteen-ledger/internal/session"
)

// Handlers groups every HTTP handler the API exposes.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Products      *handler.ProductHandler
	Consumptions  *handler.ConsumptionHandler
	Admin         *handler.AdminHandler
	Notifications *handler.NotificationHandler
}

// Options carries the cross-cutting pieces shared by all routes.  Metrics
// and LoginLimiter are optional.
type Options struct {
	Sessions     *session.Manager
	Metrics      *metrics.Metrics
	LoginLimiter echo.MiddlewareFunc
	Logger       *zap.Logger
}

// New builds an echo instance with the global middleware chain and every
// route registered.  Session resolution runs on all requests; each route
// group decides whether an anonymous caller is acceptable.
func New(h Handlers, opt Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(opt.Logger))
	if opt.Metrics != nil {
		e.Use(opt.Metrics.Middleware())
	}
	e.Use(middleware.LoadSession(opt.Sessions))

	RegisterRoutes(e, opt.Metrics)
	RegisterAuth(e, h.Auth, opt.LoginLimiter)
	RegisterUsers(e, h.Users)
	RegisterProducts(e, h.Products)
	RegisterConsumptions(e, h.Consumptions)
	RegisterAdmin(e, h.Admin)
	RegisterNotifications(e, h.Notifications)
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints:
// the liveness probe and, when metrics are enabled, the scrape endpoint.
func RegisterRoutes(e *echo.Echo, m *metrics.Metrics) {
	e.GET("/healthz", handler.Health)
	if m != nil {
		e.GET("/metrics", m.Handler())
	}
}

// RegisterAuth registers the /auth endpoints.  None of them requires a
// session; login is guarded by limiter when one is given.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	if limiter != nil {
		g.POST("/login", a.Login, limiter)
	} else {
		g.POST("/login", a.Login)
	}
	g.POST("/register", a.Register)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	g.GET("/session", a.Session)
	g.POST("/logout", a.Logout)
}
