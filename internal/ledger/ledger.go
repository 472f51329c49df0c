// Package ledger computes debt from consumption lines.  All functions are
// pure: they take lines already joined to product and admin and never
// touch the datastore.  Every figure is quantity × current price.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/canteen-ledger/internal/model"
)

// UserDebt is a regular user with the amount owed to one admin.
type UserDebt struct {
	*model.User
	Total decimal.Decimal `json:"total"`
}

// AdminTotals returns every non-admin user with the debt owed to adminID.
// Lines against other admins' products are ignored; users without
// matching lines get a zero total and are kept.
func AdminTotals(users []*model.User, lines []model.ConsumptionLine, adminID string) []UserDebt {
	owed := make(map[string]decimal.Decimal)
	for _, l := range lines {
		if l.Product.Admin.ID != adminID {
			continue
		}
		owed[l.UserID] = owed[l.UserID].Add(l.Amount())
	}

	out := make([]UserDebt, 0, len(users))
	for _, u := range users {
		if u.IsAdmin {
			continue
		}
		out = append(out, UserDebt{User: u, Total: owed[u.ID]})
	}
	return out
}

// AdminDebt is what a user owes one admin, with the billing details
// needed to pay it.
type AdminDebt struct {
	AdminID   string          `json:"adminId"`
	AdminName string          `json:"adminName"`
	PixKey    *string         `json:"pixKey,omitempty"`
	PixQrCode *string         `json:"pixQrCode,omitempty"`
	Total     decimal.Decimal `json:"total"`
}

// Dashboard is a user's debt grouped by admin plus the grand total.
type Dashboard struct {
	ByAdmin map[string]AdminDebt `json:"byAdmin"`
	Total   decimal.Decimal      `json:"total"`
}

// UserDebts groups lines by the admin owning each product.  Callers pass
// one user's lines; an empty input yields an empty map and zero total.
func UserDebts(lines []model.ConsumptionLine) Dashboard {
	d := Dashboard{ByAdmin: make(map[string]AdminDebt)}
	for _, l := range lines {
		admin := l.Product.Admin
		entry, ok := d.ByAdmin[admin.ID]
		if !ok {
			entry = AdminDebt{
				AdminID:   admin.ID,
				AdminName: admin.WarName,
				PixKey:    admin.PixKey,
				PixQrCode: admin.PixQrCode,
			}
		}
		amount := l.Amount()
		entry.Total = entry.Total.Add(amount)
		d.ByAdmin[admin.ID] = entry
		d.Total = d.Total.Add(amount)
	}
	return d
}

// ProfitSummary is an admin's outstanding revenue.
type ProfitSummary struct {
	TotalProfit       decimal.Decimal `json:"totalProfit"`
	TotalQuantitySold int             `json:"totalQuantitySold"`
}

// Profit sums the value and quantity of lines whose product belongs to
// adminID.
func Profit(lines []model.ConsumptionLine, adminID string) ProfitSummary {
	var s ProfitSummary
	for _, l := range lines {
		if l.Product.Admin.ID != adminID {
			continue
		}
		s.TotalProfit = s.TotalProfit.Add(l.Amount())
		s.TotalQuantitySold += l.Quantity
	}
	return s
}

// SoldProduct is the product subset shown in sales reports.
type SoldProduct struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl"`
}

// ProductSale aggregates all lines of one product.
type ProductSale struct {
	Product       SoldProduct     `json:"product"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalProfit   decimal.Decimal `json:"totalProfit"`
}

// ProductSales groups adminID's lines by product, highest revenue first.
// Ties keep first-seen order.
func ProductSales(lines []model.ConsumptionLine, adminID string) []ProductSale {
	index := make(map[string]int)
	out := []ProductSale{}
	for _, l := range lines {
		if l.Product.Admin.ID != adminID {
			continue
		}
		i, ok := index[l.Product.ID]
		if !ok {
			i = len(out)
			index[l.Product.ID] = i
			out = append(out, ProductSale{Product: SoldProduct{
				ID:       l.Product.ID,
				Name:     l.Product.Name,
				Price:    l.Product.Price,
				ImageURL: l.Product.ImageURL,
			}})
		}
		out[i].TotalQuantity += l.Quantity
		out[i].TotalProfit = out[i].TotalProfit.Add(l.Amount())
	}
	sortStable(out, func(a, b ProductSale) bool { return a.TotalProfit.GreaterThan(b.TotalProfit) })
	return out
}
