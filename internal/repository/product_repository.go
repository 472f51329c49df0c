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

// ProductRepo encapsulates all queries against the products table.  Every
// mutation is scoped by admin_id so an admin can never touch another
// tenant's products, even if the service layer forgets to check.
type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// Create inserts p and fills in its id and timestamps.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	const q = "INSERT INTO products (id, admin_id, name, price, available, image_url, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)"
	if _, err := r.db.ExecContext(ctx, q, p.ID, p.AdminID, p.Name, p.Price, p.Available, p.ImageURL, now, now); err != nil {
		return err
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// GetByID fetches a product regardless of owner.  Services use it to tell
// "missing" (404) apart from "someone else's" (403).
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*model.Product, error) {
	const q = "SELECT id, admin_id, name, price, available, image_url, created_at, updated_at FROM products WHERE id = ?"
	var p model.Product
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.AdminID, &p.Name, &p.Price, &p.Available, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update rewrites the mutable fields of p if it belongs to p.AdminID.
// It returns ErrNotFound when no row matches (missing or not owned).
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	const q = `UPDATE products
	           SET name = ?, price = ?, available = ?, image_url = ?, updated_at = ?
	           WHERE id = ? AND admin_id = ?`
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, q, p.Name, p.Price, p.Available, p.ImageURL, now, p.ID, p.AdminID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

// Delete removes a product owned by adminID.  Products still referenced by
// consumption rows cannot be deleted and yield ErrConflict.
func (r *ProductRepo) Delete(ctx context.Context, id, adminID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ? AND admin_id = ?", id, adminID)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns products joined to their owning admin, ordered by admin
// then name.
func (r *ProductRepo) List(ctx context.Context, f model.ProductFilter) ([]model.ProductWithAdmin, error) {
	q := `SELECT p.id, p.admin_id, p.name, p.price, p.available, p.image_url, p.created_at, p.updated_at,
	             a.id, a.war_name, a.pix_key, a.pix_qr_code
	      FROM products p
	      JOIN users a ON a.id = p.admin_id`
	var (
		where []string
		args  []any
	)
	if f.AdminID != "" {
		where = append(where, "p.admin_id = ?")
		args = append(args, f.AdminID)
	}
	if !f.IncludeUnavailable {
		where = append(where, "p.available = TRUE")
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY a.war_name, p.name, p.id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ProductWithAdmin{}
	for rows.Next() {
		var (
			p            model.ProductWithAdmin
			pixKey, pixQ sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.AdminID, &p.Name, &p.Price, &p.Available, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
			&p.Admin.ID, &p.Admin.WarName, &pixKey, &pixQ); err != nil {
			return nil, err
		}
		p.Admin.PixKey = nullString(pixKey)
		p.Admin.PixQrCode = nullString(pixQ)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
