package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionSale     TransactionType = "sale"
	TransactionPurchase TransactionType = "purchase"
)

// Valid reports whether t is one of the two ledger types.
func (t TransactionType) Valid() bool {
	return t == TransactionSale || t == TransactionPurchase
}

// Delta converts a quantity into a signed stock change.
func (t TransactionType) Delta(quantity int) int {
	if t == TransactionSale {
		return -quantity
	}
	return quantity
}

// Transaction is an immutable ledger entry. PriceAtTime is the product price
// when the transaction executed and is never revalued.
type Transaction struct {
	ID          string          `gorm:"primaryKey;size:64" json:"id"`
	ProductID   string          `gorm:"index;size:64;not null" json:"product_id"`
	Quantity    int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	Type        TransactionType `gorm:"size:16;not null;index" json:"type"`
	CustomerID  *string         `gorm:"size:64" json:"customer_id"`
	SupplierID  *string         `gorm:"size:64" json:"supplier_id"`
	PriceAtTime decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"price_at_time"`
	Discount    float64         `gorm:"not null;default:0" json:"discount"`
	Timestamp   time.Time       `gorm:"index;not null" json:"timestamp"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Gross is price_at_time * quantity, before discount.
func (t Transaction) Gross() decimal.Decimal {
	return t.PriceAtTime.Mul(decimal.NewFromInt(int64(t.Quantity)))
}

// DiscountValue is the monetary discount. It is derived, never stored.
func (t Transaction) DiscountValue() decimal.Decimal {
	return DiscountValue(t.PriceAtTime, t.Quantity, t.Discount)
}

// Net is the gross amount less the discount value.
func (t Transaction) Net() decimal.Decimal {
	return t.Gross().Sub(t.DiscountValue())
}

// DiscountValue computes percent/100 * price * quantity.
func DiscountValue(price decimal.Decimal, quantity int, percent float64) decimal.Decimal {
	return decimal.NewFromFloat(percent).
		Div(decimal.NewFromInt(100)).
		Mul(price).
		Mul(decimal.NewFromInt(int64(quantity)))
}

// TransactionLog audit line written in the same unit of work as its Transaction
type TransactionLog struct {
	ID            int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	TransactionID string    `gorm:"uniqueIndex;size:64;not null" json:"transaction_id"`
	Message       string    `gorm:"size:500" json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

func (TransactionLog) TableName() string {
	return "transaction_logs"
}

// LogMessage renders the audit line for a ledger entry,
// e.g. "sale 10 x P001 @50 discount:0%".
func LogMessage(t *Transaction) string {
	return fmt.Sprintf("%s %d x %s @%s discount:%s%%",
		t.Type, t.Quantity, t.ProductID, t.PriceAtTime.String(),
		strconv.FormatFloat(t.Discount, 'f', -1, 64))
}
