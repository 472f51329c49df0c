package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/canteen-ledger/internal/model"
	"github.com/iliyamo/canteen-ledger/internal/repository"
	"github.com/iliyamo/canteen-ledger/internal/utils"
)

// fakeLookup mirrors the repository rule: email match first, then warName.
type fakeLookup struct {
	users []*model.User
	err   error
	seen  []string
}

func (f *fakeLookup) FindByIdentifier(_ context.Context, ident string) (*model.User, error) {
	f.seen = append(f.seen, ident)
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if strings.ToLower(u.Email) == ident {
			return u, nil
		}
	}
	for _, u := range f.users {
		if strings.ToLower(u.WarName) == ident {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func hashed(t *testing.T, plain string) *string {
	t.Helper()
	h, err := utils.HashPassword(plain, bcrypt.MinCost)
	require.NoError(t, err)
	return &h
}

func TestAuthenticate(t *testing.T) {
	testUser := &model.User{ID: "user-1", Email: "test@example.com", WarName: "TestUser", PasswordHash: hashed(t, "password123")}
	guest := &model.User{ID: "guest-1", Email: "guest@example.com", WarName: "Guest"}
	// warName collides with testUser's email; the email match must still win.
	impostor := &model.User{ID: "user-2", Email: "other@example.com", WarName: "test@example.com", PasswordHash: hashed(t, "password123")}

	lookup := &fakeLookup{users: []*model.User{impostor, testUser, guest}}
	auth := NewAuthenticator(lookup, utils.Hasher{Cost: bcrypt.MinCost})
	ctx := context.Background()

	t.Run("email is trimmed and lower-cased", func(t *testing.T) {
		u, err := auth.Authenticate(ctx, "  TEST@EXAMPLE.COM  ", "password123")
		require.NoError(t, err)
		assert.Equal(t, "user-1", u.ID)
		assert.Nil(t, u.PasswordHash)
		assert.Equal(t, "test@example.com", lookup.seen[len(lookup.seen)-1])
	})

	t.Run("warName matches case-insensitively", func(t *testing.T) {
		u, err := auth.Authenticate(ctx, "testuser", "password123")
		require.NoError(t, err)
		assert.Equal(t, "user-1", u.ID)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := auth.Authenticate(ctx, "nobody", "password123")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("blank identifier", func(t *testing.T) {
		_, err := auth.Authenticate(ctx, "   ", "password123")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("account without password", func(t *testing.T) {
		_, err := auth.Authenticate(ctx, "guest", "anything")
		assert.ErrorIs(t, err, ErrNoCredential)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := auth.Authenticate(ctx, "test@example.com", "nope")
		assert.ErrorIs(t, err, ErrBadCredential)
	})

	t.Run("stored record keeps its hash", func(t *testing.T) {
		assert.NotNil(t, testUser.PasswordHash)
	})
}

func TestAuthenticatePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	auth := NewAuthenticator(&fakeLookup{err: boom}, utils.Hasher{Cost: bcrypt.MinCost})
	_, err := auth.Authenticate(context.Background(), "x", "y")
	assert.ErrorIs(t, err, boom)
}
