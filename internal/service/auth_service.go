package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/metrics"
	"github.com/iliyamo/canteen-ledger/internal/model"
	"github.com/iliyamo/canteen-ledger/internal/repository"
	"github.com/iliyamo/canteen-ledger/internal/session"
	"github.com/iliyamo/canteen-ledger/internal/utils"
)

// AuthService handles login, registration and the password reset flow.
type AuthService struct {
	users    UserStore
	auth     *session.Authenticator
	hasher   PasswordHasher
	resetTTL time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewAuthService(users UserStore, hasher PasswordHasher, resetTTL time.Duration, logger *zap.Logger, m *metrics.Metrics) *AuthService {
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &AuthService{
		users:    users,
		auth:     session.NewAuthenticator(users, hasher),
		hasher:   hasher,
		resetTTL: resetTTL,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Login checks credentials.  The three credential failures stay
// distinguishable to the client ("user not found", "invalid credentials",
// "wrong password"), matching the product's long-standing behaviour.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*model.User, error) {
	if strings.TrimSpace(identifier) == "" || password == "" {
		s.metrics.LoginAttempt(metrics.LoginInvalid)
		return nil, apperr.Validation("identifier and password are required")
	}
	u, err := s.auth.Authenticate(ctx, identifier, password)
	switch {
	case err == nil:
		s.metrics.LoginAttempt(metrics.LoginSuccess)
		return u, nil
	case errors.Is(err, session.ErrNotFound):
		s.metrics.LoginAttempt(metrics.LoginNotFound)
		return nil, apperr.Unauthorized("user not found")
	case errors.Is(err, session.ErrNoCredential):
		s.metrics.LoginAttempt(metrics.LoginNoCredential)
		s.logger.Info("login for account without password", zap.String("identifier", session.NormalizeIdentifier(identifier)))
		return nil, apperr.Unauthorized("invalid credentials")
	case errors.Is(err, session.ErrBadCredential):
		s.metrics.LoginAttempt(metrics.LoginBadCredential)
		return nil, apperr.Unauthorized("wrong password")
	}
	s.metrics.LoginAttempt(metrics.LoginError)
	return nil, apperr.Internal(err)
}

// Registration is the self-service sign-up payload.
type Registration struct {
	Email    string
	Password string
	WarName  string
	Rank     string
	Company  string
	Phone    string
}

func (r Registration) normalized() Registration {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.WarName = strings.TrimSpace(r.WarName)
	r.Rank = strings.TrimSpace(r.Rank)
	r.Company = strings.TrimSpace(r.Company)
	r.Phone = strings.TrimSpace(r.Phone)
	return r
}

func (r Registration) validate() error {
	if r.Email == "" || r.Password == "" || r.WarName == "" || r.Rank == "" || r.Company == "" || r.Phone == "" {
		return apperr.Validation("all fields are required")
	}
	if len(r.Password) < utils.MinPasswordLength {
		return apperr.Validation("password must be at least 6 characters")
	}
	return nil
}

// Register creates a regular user.  Duplicate email, phone or warName
// yield a Conflict error.
func (s *AuthService) Register(ctx context.Context, r Registration) (*model.User, error) {
	r = r.normalized()
	if err := r.validate(); err != nil {
		return nil, err
	}
	return s.create(ctx, r, false)
}

func (s *AuthService) create(ctx context.Context, r Registration, admin bool) (*model.User, error) {
	hash, err := s.hasher.Hash(r.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	u := &model.User{
		Email:        r.Email,
		WarName:      r.WarName,
		Rank:         r.Rank,
		Company:      r.Company,
		Phone:        r.Phone,
		PasswordHash: &hash,
		IsAdmin:      admin,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, storeErr(err, "user not found")
	}
	u.PasswordHash = nil
	return u, nil
}

// ForgotPassword issues a reset token for email.  The raw token is
// returned to the caller; only its hash is stored.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (utils.ResetToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return utils.ResetToken{}, apperr.Validation("email is required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return utils.ResetToken{}, storeErr(err, "email not found")
	}
	tok, err := utils.NewResetToken(s.resetTTL)
	if err != nil {
		return utils.ResetToken{}, apperr.Internal(err)
	}
	if err := s.users.SetResetToken(ctx, u.ID, utils.HashToken(tok.Raw), tok.Exp); err != nil {
		return utils.ResetToken{}, storeErr(err, "email not found")
	}
	s.logger.Info("password reset requested", zap.String("user_id", u.ID))
	return tok, nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return apperr.Validation("token and new password are required")
	}
	if len(newPassword) < utils.MinPasswordLength {
		return apperr.Validation("password must be at least 6 characters")
	}
	u, err := s.users.GetByResetToken(ctx, utils.HashToken(token))
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Validation("invalid or expired token")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if u.ResetTokenExpiry == nil || !s.now().Before(*u.ResetTokenExpiry) {
		return apperr.Validation("invalid or expired token")
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return storeErr(err, "user not found")
	}
	s.logger.Info("password reset", zap.String("user_id", u.ID))
	return nil
}

// SeedAdmin creates an admin account, or promotes the existing account
// registered under the same email.  created reports which happened.
func (s *AuthService) SeedAdmin(ctx context.Context, r Registration) (u *model.User, created bool, err error) {
	r = r.normalized()
	existing, err := s.users.GetByEmail(ctx, r.Email)
	switch {
	case err == nil:
		if err := s.users.SetAdmin(ctx, existing.ID, true); err != nil {
			return nil, false, storeErr(err, "user not found")
		}
		existing.IsAdmin = true
		existing.PasswordHash = nil
		return existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, apperr.Internal(err)
	}
	if err := r.validate(); err != nil {
		return nil, false, err
	}
	u, err = s.create(ctx, r, true)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}
