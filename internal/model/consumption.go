package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Consumption is a recorded line item: a user took Quantity units of a
// product.  Its value is always computed from the product's current price.
type Consumption struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConsumptionLine is a consumption joined to its product and that product's
// admin.  It is the input of every debt computation.
type ConsumptionLine struct {
	Consumption
	Product LineProduct `json:"product"`
}

// LineProduct is the product subset embedded in a consumption line.
type LineProduct struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl"`
	Admin    AdminRef        `json:"admin"`
}

// Amount is quantity × current price.
func (l ConsumptionLine) Amount() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineFilter narrows consumption line queries.  Empty fields do not filter.
type LineFilter struct {
	UserID  string
	AdminID string
}
