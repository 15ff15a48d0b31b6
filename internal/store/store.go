// Package store defines the persistence contract used by the inventory engine.
// Implementations live in the gormstore, boltstore and memstore subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger/internal/domain"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Tx is the set of operations available inside a unit of work. The same set
// is available outside one, where every call commits on its own.
type Tx interface {
	// GetProduct loads a product. Inside Atomic the row stays locked against
	// other writers until the unit of work ends.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	InsertProduct(ctx context.Context, p *domain.Product) error
	// UpdateProduct writes every field of p.
	UpdateProduct(ctx context.Context, p *domain.Product) error
	// AdjustStock applies stock = stock + delta as one read-modify-write.
	AdjustStock(ctx context.Context, id string, delta int) error

	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	InsertTransactionLog(ctx context.Context, l *domain.TransactionLog) error

	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListDiscounts(ctx context.Context) ([]domain.Discount, error)
}

// ProductQuery filters and pages the catalog. Page is 1-based.
type ProductQuery struct {
	Page     int
	Limit    int
	Category string
	Q        string // case-insensitive name substring
}

func (q ProductQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// TransactionQuery filters the ledger. Zero values mean "no filter".
type TransactionQuery struct {
	ProductID string
	Type      domain.TransactionType
	From      time.Time
	To        time.Time
}

// Match reports whether t satisfies the query. Used by non-SQL backends.
func (q TransactionQuery) Match(t *domain.Transaction) bool {
	if q.ProductID != "" && t.ProductID != q.ProductID {
		return false
	}
	if q.Type != "" && t.Type != q.Type {
		return false
	}
	if !q.From.IsZero() && t.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && t.Timestamp.After(q.To) {
		return false
	}
	return true
}

// Store is the durable catalog plus ledger.
type Store interface {
	Tx

	// Atomic runs fn as one unit of work: every write made through tx commits
	// together or not at all, and products read through tx are isolated from
	// concurrent writers until fn returns.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	ListProducts(ctx context.Context, q ProductQuery) ([]domain.Product, int64, error)
	ListLowStock(ctx context.Context) ([]domain.Product, error)
	InventoryValue(ctx context.Context) (decimal.Decimal, error)
	// ListTransactions returns matching entries, newest first.
	ListTransactions(ctx context.Context, q TransactionQuery) ([]domain.Transaction, error)
	GetTransactionLog(ctx context.Context, transactionID string) (*domain.TransactionLog, error)
	CountLedger(ctx context.Context) (transactions int64, logs int64, err error)

	InsertDiscount(ctx context.Context, d *domain.Discount) error
	InsertCustomer(ctx context.Context, c *domain.Customer) error
	InsertSupplier(ctx context.Context, s *domain.Supplier) error

	Close() error
}
