package session

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/canteen-ledger/internal/model"
)

const contextKey = "session"

// WithUser attaches the resolved session to the request context.  A nil
// session is stored as absent.
func WithUser(c echo.Context, u *model.SessionUser) {
	if u == nil {
		return
	}
	c.Set(contextKey, u)
}

// FromContext returns the session resolved for this request, or nil.
func FromContext(c echo.Context) *model.SessionUser {
	u, _ := c.Get(contextKey).(*model.SessionUser)
	return u
}
