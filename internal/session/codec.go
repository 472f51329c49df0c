// Package session issues, reads and clears the client-held session token
// and authenticates credentials.  Sessions are not stored server-side: the
// cookie carries {id, email, warName, isAdmin} signed with HMAC-SHA256, so
// the payload is readable but any modification invalidates it.
//
// The cookie value is an HS256 JWT rather than bare base64 JSON; its
// payload segment is the base64url-encoded JSON session object, and
// clients must treat the whole value as opaque.
package session

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/canteen-ledger/internal/model"
)

// Claim names.  These are the only claims a session token carries.
const (
	claimID      = "id"
	claimEmail   = "email"
	claimWarName = "warName"
	claimIsAdmin = "isAdmin"
)

// Codec turns a SessionUser into a signed token and back.
type Codec struct {
	secret []byte
}

// NewCodec panics on an empty secret; an unsigned session would let any
// client claim admin rights.
func NewCodec(secret string) *Codec {
	if secret == "" {
		panic("session: empty secret")
	}
	return &Codec{secret: []byte(secret)}
}

// Encode serializes exactly the four identity fields into an HS256 JWT.
// No expiry claim is set; lifetime is governed by the cookie Max-Age.
func (c *Codec) Encode(u model.SessionUser) (string, error) {
	claims := jwt.MapClaims{
		claimID:      u.ID,
		claimEmail:   u.Email,
		claimWarName: u.WarName,
		claimIsAdmin: u.IsAdmin,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode returns the session carried by token, or nil when the token is
// empty, malformed, wrongly signed or structurally invalid.  It never fails
// loudly: an unreadable session is simply no session.
func (c *Codec) Decode(token string) *model.SessionUser {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	tok, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	return fromClaims(claims)
}

// fromClaims validates the payload shape: three non-empty strings and a
// strictly boolean isAdmin.
func fromClaims(m map[string]interface{}) *model.SessionUser {
	id, ok := nonEmpty(m[claimID])
	if !ok {
		return nil
	}
	email, ok := nonEmpty(m[claimEmail])
	if !ok {
		return nil
	}
	warName, ok := nonEmpty(m[claimWarName])
	if !ok {
		return nil
	}
	isAdmin, ok := m[claimIsAdmin].(bool)
	if !ok {
		return nil
	}
	return &model.SessionUser{ID: id, Email: email, WarName: warName, IsAdmin: isAdmin}
}

func nonEmpty(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
