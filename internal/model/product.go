package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Prices are written as JSON numbers, not strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a consumable item owned by exactly one admin.  This struct
// corresponds to a row in the `products` table.
type Product struct {
	ID        string          `json:"id"`
	AdminID   string          `json:"adminId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
	ImageURL  string          `json:"imageUrl"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ProductWithAdmin is a product joined to its owning admin.
type ProductWithAdmin struct {
	Product
	Admin AdminRef `json:"admin"`
}

// ProductFilter narrows product listings.  An empty AdminID lists every
// tenant's products.
type ProductFilter struct {
	AdminID            string
	IncludeUnavailable bool
}
