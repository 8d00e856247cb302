package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products. Names are not required to be unique.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a catalog entry. It belongs to exactly one category.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category"`
	Rank         int             `json:"rank"`
	CreatedAt    time.Time       `json:"created_time"`
}

// ProductFilter narrows a product listing. Price bounds are strict.
type ProductFilter struct {
	PriceGT    *decimal.Decimal
	PriceLT    *decimal.Decimal
	CategoryID string
	Page       int
	PerPage    int
}

// ProductUpdate carries a partial product update; nil fields are kept.
type ProductUpdate struct {
	Name       *string
	Price      *decimal.Decimal
	CategoryID *string
	Rank       *int
}

// Apply copies the set fields of u onto p.
func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.CategoryID != nil {
		p.CategoryID = *u.CategoryID
	}
	if u.Rank != nil {
		p.Rank = *u.Rank
	}
}
