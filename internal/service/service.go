// Package service holds the business operations behind each route.  Every
// operation takes the caller's session explicitly, asks package authz
// before touching a store, and returns *apperr.Error values that handlers
// render without further interpretation.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/model"
	"github.com/iliyamo/canteen-ledger/internal/queue"
	"github.com/iliyamo/canteen-ledger/internal/repository"
)

// UserStore is the persistence surface services need for users.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	FindByIdentifier(ctx context.Context, ident string) (*model.User, error)
	GetByResetToken(ctx context.Context, tokenHash string) (*model.User, error)
	ListNonAdmins(ctx context.Context) ([]*model.User, error)
	UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) error
	SetResetToken(ctx context.Context, id, tokenHash string, exp time.Time) error
	UpdatePassword(ctx context.Context, id, hash string) error
	SetAdmin(ctx context.Context, id string, admin bool) error
}

// ProductStore persists products.  Update and Delete are scoped to the
// product's AdminID.
type ProductStore interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id string) (*model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id, adminID string) error
	List(ctx context.Context, f model.ProductFilter) ([]model.ProductWithAdmin, error)
}

// ConsumptionStore persists consumptions and reads them back as joined lines.
type ConsumptionStore interface {
	Create(ctx context.Context, c *model.Consumption) error
	ListLines(ctx context.Context, f model.LineFilter) ([]model.ConsumptionLine, error)
	GetLine(ctx context.Context, id string) (*model.ConsumptionLine, error)
	Delete(ctx context.Context, id, adminID string) error
	ClearDebt(ctx context.Context, userID, adminID string, n *model.Notification) (int64, error)
}

// NotificationStore persists per-user notifications.
type NotificationStore interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Notification, int, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
	MarkOneRead(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

// EventPublisher emits domain events after their transaction committed.
type EventPublisher interface {
	PublishDebtCleared(ctx context.Context, ev queue.DebtClearedEvent) error
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// storeErr translates repository failures into application errors.
// notFound is the message used when the row does not exist.
func storeErr(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperr.Conflict("email already registered")
	case errors.Is(err, repository.ErrDuplicatePhone):
		return apperr.Conflict("phone already registered")
	case errors.Is(err, repository.ErrDuplicateWarName):
		return apperr.Conflict("warName already taken")
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict("conflicting state")
	case errors.Is(err, repository.ErrForbidden):
		return apperr.Forbidden("forbidden")
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Internal(err)
}
