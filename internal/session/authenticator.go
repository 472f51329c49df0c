package session

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/canteen-ledger/internal/model"
	"github.com/iliyamo/canteen-ledger/internal/repository"
)

// Credential failures.  They are kept apart for logging; callers decide how
// much of the distinction to expose.
var (
	ErrNotFound      = errors.New("user not found")
	ErrNoCredential  = errors.New("user has no password set")
	ErrBadCredential = errors.New("password mismatch")
)

// UserLookup finds the account an identifier refers to.  The identifier is
// already trimmed and lower-cased; implementations must prefer an email
// match over a warName match.
type UserLookup interface {
	FindByIdentifier(ctx context.Context, identifier string) (*model.User, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier interface {
	Verify(hash, plain string) bool
}

// Authenticator validates credentials against the user store.
type Authenticator struct {
	users    UserLookup
	verifier PasswordVerifier
}

func NewAuthenticator(users UserLookup, verifier PasswordVerifier) *Authenticator {
	return &Authenticator{users: users, verifier: verifier}
}

// NormalizeIdentifier trims and lower-cases an email or warName for lookup.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Authenticate resolves identifier (email or warName, case-insensitive) and
// checks password.  The returned user never carries its password hash.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, password string) (*model.User, error) {
	ident := NormalizeIdentifier(identifier)
	if ident == "" {
		return nil, ErrNotFound
	}
	u, err := a.users.FindByIdentifier(ctx, ident)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !u.HasPassword() {
		return nil, ErrNoCredential
	}
	if !a.verifier.Verify(*u.PasswordHash, password) {
		return nil, ErrBadCredential
	}
	out := *u
	out.PasswordHash = nil
	out.ResetToken = nil
	out.ResetTokenExpiry = nil
	return &out, nil
}
