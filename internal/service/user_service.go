package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/authz"
	"github.com/iliyamo/canteen-ledger/internal/ledger"
	"github.com/iliyamo/canteen-ledger/internal/model"
)

// UserService serves profiles and the admin's debtor listing.
type UserService struct {
	users  UserStore
	lines  ConsumptionStore
	logger *zap.Logger
}

func NewUserService(users UserStore, lines ConsumptionStore, logger *zap.Logger) *UserService {
	return &UserService{users: users, lines: lines, logger: logger}
}

// UserListQuery holds the presentation options of the admin listing.
type UserListQuery struct {
	Order   ledger.Order
	Company string
	Rank    string
}

// ListWithTotals returns every non-admin user with the debt owed to the
// calling admin.
func (s *UserService) ListWithTotals(ctx context.Context, sess *model.SessionUser, q UserListQuery) ([]ledger.UserDebt, error) {
	if err := authz.Authorize(sess, authz.ListUsers, authz.None); err != nil {
		return nil, err
	}
	users, err := s.users.ListNonAdmins(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	lines, err := s.lines.ListLines(ctx, model.LineFilter{AdminID: sess.ID})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := ledger.Filter(ledger.AdminTotals(users, lines, sess.ID), q.Company, q.Rank)
	ledger.Sort(out, q.Order)
	return out, nil
}

// UserDetail is a profile with its consumption history and debt summary.
type UserDetail struct {
	*model.User
	Consumptions []model.ConsumptionLine `json:"consumptions"`
	Debts        ledger.Dashboard        `json:"debts"`
}

// Detail returns a user's profile and consumptions.  An admin looking at
// someone else only sees lines against its own products.
func (s *UserService) Detail(ctx context.Context, sess *model.SessionUser, id string) (*UserDetail, error) {
	if err := authz.Authorize(sess, authz.ViewProfile, authz.User(id)); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "user not found")
	}
	filter := model.LineFilter{UserID: id}
	if sess.IsAdmin && sess.ID != id {
		filter.AdminID = sess.ID
	}
	lines, err := s.lines.ListLines(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	u.PasswordHash = nil
	return &UserDetail{User: u, Consumptions: lines, Debts: ledger.UserDebts(lines)}, nil
}

// UpdateProfile applies upd to user id.  Billing fields require an admin
// session even on the caller's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, sess *model.SessionUser, id string, upd model.ProfileUpdate) (*model.User, error) {
	if err := authz.Authorize(sess, authz.UpdateProfile, authz.User(id)); err != nil {
		return nil, err
	}
	if upd.TouchesBilling() {
		if err := authz.Authorize(sess, authz.SetBillingInfo, authz.User(id)); err != nil {
			return nil, err
		}
	}
	for _, f := range []**string{&upd.WarName, &upd.Rank, &upd.Company, &upd.Phone} {
		if *f == nil {
			continue
		}
		v := strings.TrimSpace(**f)
		*f = &v
	}
	if (upd.WarName != nil && *upd.WarName == "") || (upd.Phone != nil && *upd.Phone == "") {
		return nil, apperr.Validation("warName and phone cannot be empty")
	}
	if err := s.users.UpdateProfile(ctx, id, upd); err != nil {
		return nil, storeErr(err, "user not found")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "user not found")
	}
	u.PasswordHash = nil
	s.logger.Info("profile updated", zap.String("user_id", id), zap.String("by", sess.ID))
	return u, nil
}
