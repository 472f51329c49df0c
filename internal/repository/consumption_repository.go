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

// ConsumptionRepo stores consumption rows and reads them back joined to
// their product and the product's admin.  Debt is never stored; it is
// computed from these lines at read time.
type ConsumptionRepo struct {
	db *sql.DB
}

func NewConsumptionRepo(db *sql.DB) *ConsumptionRepo {
	return &ConsumptionRepo{db: db}
}

const lineSelect = `SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at,
       p.id, p.name, p.price, p.image_url,
       a.id, a.war_name, a.pix_key, a.pix_qr_code
FROM consumptions c
JOIN products p ON p.id = c.product_id
JOIN users a ON a.id = p.admin_id`

func scanLine(s rowScanner) (model.ConsumptionLine, error) {
	var (
		l            model.ConsumptionLine
		pixKey, pixQ sql.NullString
	)
	err := s.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.CreatedAt,
		&l.Product.ID, &l.Product.Name, &l.Product.Price, &l.Product.ImageURL,
		&l.Product.Admin.ID, &l.Product.Admin.WarName, &pixKey, &pixQ)
	if err != nil {
		return l, err
	}
	l.Product.Admin.PixKey = nullString(pixKey)
	l.Product.Admin.PixQrCode = nullString(pixQ)
	return l, nil
}

// Create inserts a consumption row.  A missing user or product surfaces as
// ErrNotFound through the foreign keys.
func (r *ConsumptionRepo) Create(ctx context.Context, c *model.Consumption) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO consumptions (id, user_id, product_id, quantity, created_at) VALUES (?,?,?,?,?)",
		c.ID, c.UserID, c.ProductID, c.Quantity, c.CreatedAt)
	if err != nil && mysqlCode(err) == mysqlNoReferencedRow {
		return ErrNotFound
	}
	return err
}

// ListLines returns joined consumption lines, newest first.  UserID and
// AdminID in f each narrow the result when set; AdminID matches the
// product's owner.
func (r *ConsumptionRepo) ListLines(ctx context.Context, f model.LineFilter) ([]model.ConsumptionLine, error) {
	q := lineSelect
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "c.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.AdminID != "" {
		where = append(where, "p.admin_id = ?")
		args = append(args, f.AdminID)
	}
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY c.created_at DESC, c.id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ConsumptionLine{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLine fetches one joined line by consumption id.
func (r *ConsumptionRepo) GetLine(ctx context.Context, id string) (*model.ConsumptionLine, error) {
	l, err := scanLine(r.db.QueryRowContext(ctx, lineSelect+"\nWHERE c.id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// Delete removes a single consumption row if its product belongs to
// adminID.  It returns ErrNotFound when no such row exists.
func (r *ConsumptionRepo) Delete(ctx context.Context, id, adminID string) error {
	const q = `DELETE c FROM consumptions c
	           JOIN products p ON p.id = c.product_id
	           WHERE c.id = ? AND p.admin_id = ?`
	res, err := r.db.ExecContext(ctx, q, id, adminID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearDebt deletes every consumption row of userID whose product belongs
// to adminID and records n, all in one transaction.  It returns the number
// of rows removed; zero is not an error and the notification is still
// written.
func (r *ConsumptionRepo) ClearDebt(ctx context.Context, userID, adminID string, n *model.Notification) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const qDelete = `DELETE c FROM consumptions c
	                 JOIN products p ON p.id = c.product_id
	                 WHERE c.user_id = ? AND p.admin_id = ?`
	res, err := tx.ExecContext(ctx, qDelete, userID, adminID)
	if err != nil {
		return 0, err
	}
	cleared, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := insertNotification(ctx, tx, n); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return cleared, nil
}
