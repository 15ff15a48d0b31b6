package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. ID is assigned by the caller and never changes.
type Product struct {
	ID        string          `gorm:"primaryKey;size:64" json:"id"`
	Name      string          `gorm:"index;size:200;not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"price"`
	Stock     int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Category  string          `gorm:"index;size:100" json:"category"`
	MinStock  int             `gorm:"not null;default:0" json:"min_stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "products"
}

// IsLowStock reports whether the product is at or below its threshold.
func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// Value is price multiplied by units on hand.
func (p Product) Value() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Stock)))
}

// Customer buyer reference; GroupType drives discount eligibility
type Customer struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:200" json:"name"`
	GroupType string    `gorm:"index;size:50" json:"group_type"`
	CreatedAt time.Time `json:"created_at"`
}

func (Customer) TableName() string {
	return "customers"
}

// Supplier purchase counterpart
type Supplier struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:200" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (Supplier) TableName() string {
	return "suppliers"
}
