package session

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/canteen-ledger/internal/model"
)

const (
	// CookieName is the single cookie that carries the session token.
	CookieName = "inventory_session"
	// MaxAge is the client-side session lifetime: 30 days.
	MaxAge = 60 * 60 * 24 * 30
)

// Manager moves session tokens in and out of the HTTP cookie.
type Manager struct {
	codec  *Codec
	secure bool
}

// NewManager builds a Manager.  secure marks the cookie Secure and should be
// on whenever the service is served over TLS.
func NewManager(codec *Codec, secure bool) *Manager {
	return &Manager{codec: codec, secure: secure}
}

// Issue signs u and sets the session cookie.  Only the identity subset of
// the user is serialized.
func (m *Manager) Issue(c echo.Context, u model.SessionUser) error {
	token, err := m.codec.Encode(u)
	if err != nil {
		return err
	}
	c.SetCookie(m.cookie(token, MaxAge))
	return nil
}

// Read returns the session carried by the request cookie, or nil.
func (m *Manager) Read(c echo.Context) *model.SessionUser {
	ck, err := c.Cookie(CookieName)
	if err != nil || ck == nil {
		return nil
	}
	return m.codec.Decode(ck.Value)
}

// Clear expires the session cookie immediately.
func (m *Manager) Clear(c echo.Context) {
	// net/http writes "Max-Age=0" for any negative MaxAge.
	c.SetCookie(m.cookie("", -1))
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	ck := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.secure,
		MaxAge:   maxAge,
	}
	if maxAge > 0 {
		ck.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	} else {
		ck.Expires = time.Unix(0, 0)
	}
	return ck
}
