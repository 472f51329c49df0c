package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/canteen-ledger/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, email, war_name, `rank`, company, phone, password_hash, is_admin, " +
	"pix_key, pix_qr_code, reset_token, reset_token_expiry, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u                               model.User
		hash, pixKey, pixQr, resetToken sql.NullString
		resetExpiry                     sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.Email, &u.WarName, &u.Rank, &u.Company, &u.Phone, &hash, &u.IsAdmin,
		&pixKey, &pixQr, &resetToken, &resetExpiry, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.PasswordHash = nullString(hash)
	u.PixKey = nullString(pixKey)
	u.PixQrCode = nullString(pixQr)
	u.ResetToken = nullString(resetToken)
	if resetExpiry.Valid {
		t := resetExpiry.Time
		u.ResetTokenExpiry = &t
	}
	return &u, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r *UserRepo) getOne(ctx context.Context, where string, args ...any) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// Create inserts u.  Email is normalized and an id is generated when empty.
// Unique violations come back as ErrDuplicateEmail/Phone/WarName.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, war_name, `rank`, company, phone, password_hash, is_admin, pix_key, pix_qr_code, created_at, updated_at) "+
			"VALUES (?,?,?,?,?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.WarName, u.Rank, u.Company, u.Phone, u.PasswordHash, u.IsAdmin, u.PixKey, u.PixQrCode, now, now)
	if err != nil {
		return duplicateUser(err)
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// FindByIdentifier matches ident against email or warName, both compared
// lower-cased.  An email match outranks a warName match; remaining ties go
// to the lowest id.
func (r *UserRepo) FindByIdentifier(ctx context.Context, ident string) (*model.User, error) {
	ident = strings.ToLower(strings.TrimSpace(ident))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE LOWER(email) = ? OR LOWER(war_name) = ? "+
			"ORDER BY (LOWER(email) = ?) DESC, id LIMIT 1",
		ident, ident, ident)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetByResetToken fetches the user holding the given reset token hash.
// Expiry is checked by the caller.
func (r *UserRepo) GetByResetToken(ctx context.Context, tokenHash string) (*model.User, error) {
	return r.getOne(ctx, "reset_token = ?", tokenHash)
}

// ListNonAdmins returns every regular user ordered by warName.
func (r *UserRepo) ListNonAdmins(ctx context.Context) ([]*model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE is_admin = FALSE ORDER BY war_name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateProfile applies the non-nil fields of upd.  An empty update is a
// no-op.  It returns ErrNotFound when id does not exist.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) error {
	var (
		sets []string
		args []any
	)
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("war_name", upd.WarName)
	add("`rank`", upd.Rank)
	add("company", upd.Company)
	add("phone", upd.Phone)
	add("pix_key", upd.PixKey)
	add("pix_qr_code", upd.PixQrCode)
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := r.DB.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return duplicateUser(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetToken stores a reset token hash and its expiry.
func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, exp time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token = ?, reset_token_expiry = ?, updated_at = ? WHERE id = ?",
		tokenHash, exp.UTC(), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new hash and drops any pending reset token.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, reset_token = NULL, reset_token_expiry = NULL, updated_at = ? WHERE id = ?",
		hash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAdmin flips the tenant flag.
func (r *UserRepo) SetAdmin(ctx context.Context, id string, admin bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?", admin, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
