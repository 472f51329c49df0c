package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/authz"
	"github.com/iliyamo/canteen-ledger/internal/session"
)

// LoadSession resolves the session cookie and stores the result on the
// echo context for handlers (session.FromContext).  A missing or invalid
// cookie leaves the request anonymous; it is never rejected here.
func LoadSession(mgr *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session.WithUser(c, mgr.Read(c))
			return next(c)
		}
	}
}

// Require aborts the request unless the resolved session may perform
// action on no particular target.  It runs after LoadSession and answers
// 401 for anonymous callers, 403 otherwise.
func Require(action authz.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := authz.Authorize(session.FromContext(c), action, authz.None); err != nil {
				var ae *apperr.Error
				if errors.As(err, &ae) {
					return c.JSON(ae.HTTPCode, echo.Map{"error": ae.Message})
				}
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// sessionUserID returns the caller's id for keys and logs, or "anon".
func sessionUserID(c echo.Context) string {
	if s := session.FromContext(c); s != nil {
		return s.ID
	}
	return "anon"
}
