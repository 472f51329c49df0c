package model

import "time"

// User represents an account record as stored in the `users` table.  Admins
// are tenants: they own products and collect the debt recorded against them.
//
// Fields:
//
//	ID               – UUID primary key.
//	Email            – unique, stored lower-cased.
//	WarName          – unique display/login alias, compared case-insensitively.
//	Rank, Company    – free-form profile data.
//	Phone            – unique contact number.
//	PasswordHash     – bcrypt hash; nil for accounts without a usable password.
//	IsAdmin          – tenant flag.
//	PixKey, PixQrCode – billing details shown to users who owe this admin.
//	ResetToken       – pending password-reset token and its expiry.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	WarName          string     `json:"warName"`
	Rank             string     `json:"rank"`
	Company          string     `json:"company,omitempty"`
	Phone            string     `json:"phone"`
	PasswordHash     *string    `json:"-"`
	IsAdmin          bool       `json:"isAdmin"`
	PixKey           *string    `json:"pixKey,omitempty"`
	PixQrCode        *string    `json:"pixQrCode,omitempty"`
	ResetToken       *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// HasPassword reports whether a credential can be checked for this user.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Session returns the identity subset carried by the session cookie.
func (u *User) Session() SessionUser {
	return SessionUser{ID: u.ID, Email: u.Email, WarName: u.WarName, IsAdmin: u.IsAdmin}
}

// ProfileUpdate lists the mutable profile fields.  Nil means "leave as is".
type ProfileUpdate struct {
	WarName   *string
	Rank      *string
	Company   *string
	Phone     *string
	PixKey    *string
	PixQrCode *string
}

// TouchesBilling reports whether the update sets tenant billing fields.
func (p ProfileUpdate) TouchesBilling() bool {
	return p.PixKey != nil || p.PixQrCode != nil
}

// AdminRef is the public view of a tenant attached to products and debts.
type AdminRef struct {
	ID        string  `json:"id"`
	WarName   string  `json:"warName"`
	PixKey    *string `json:"pixKey,omitempty"`
	PixQrCode *string `json:"pixQrCode,omitempty"`
}
