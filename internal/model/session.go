package model

// SessionUser is the identity carried by the session cookie.  It is the
// only user data that ever leaves the server without a datastore read.
type SessionUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	WarName string `json:"warName"`
	IsAdmin bool   `json:"isAdmin"`
}
