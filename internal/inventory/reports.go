package inventory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/store"
)

const (
	uncategorized  = "Others"
	topProductsMax = 10
)

// Reports serves read-only views. Reads may observe any committed state.
type Reports struct {
	store       store.Store
	pageSize    int
	maxPageSize int
}

func NewReports(s store.Store, pageSize, maxPageSize int) *Reports {
	if pageSize <= 0 {
		pageSize = 10
	}
	if maxPageSize < pageSize {
		maxPageSize = pageSize
	}
	return &Reports{store: s, pageSize: pageSize, maxPageSize: maxPageSize}
}

type ProductPage struct {
	Data  []domain.Product `json:"data"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int64            `json:"total"`
}

// ListProducts returns one page of the catalog ordered by name. Category and
// name filters apply before paging, so Total counts matching products.
func (r *Reports) ListProducts(ctx context.Context, q store.ProductQuery) (*ProductPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = r.pageSize
	}
	if q.Limit > r.maxPageSize {
		q.Limit = r.maxPageSize
	}
	q.Category = strings.TrimSpace(q.Category)
	q.Q = strings.TrimSpace(q.Q)

	rows, total, err := r.store.ListProducts(ctx, q)
	if err != nil {
		return nil, domain.NewPersistenceError(err, "list products failed")
	}
	return &ProductPage{Data: rows, Page: q.Page, Limit: q.Limit, Total: total}, nil
}

func (r *Reports) ProductsByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	rows, _, err := r.store.ListProducts(ctx, store.ProductQuery{Category: strings.TrimSpace(category)})
	if err != nil {
		return nil, domain.NewPersistenceError(err, "list category %s failed", category)
	}
	return rows, nil
}

// InventoryValue is the sum of price * stock over all products.
func (r *Reports) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	v, err := r.store.InventoryValue(ctx)
	if err != nil {
		return decimal.Zero, domain.NewPersistenceError(err, "inventory value failed")
	}
	return v, nil
}

func (r *Reports) LowStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.store.ListLowStock(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError(err, "low stock query failed")
	}
	return rows, nil
}

// ProductHistory lists a product's transactions newest first, optionally
// bounded by from and to (zero means open). An unknown product has an empty
// history.
func (r *Reports) ProductHistory(ctx context.Context, productID string, from, to time.Time) ([]domain.Transaction, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.NewValidationError("productId required")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, domain.NewValidationError("from must not be after to")
	}
	rows, err := r.store.ListTransactions(ctx, store.TransactionQuery{ProductID: productID, From: from, To: to})
	if err != nil {
		return nil, domain.NewPersistenceError(err, "history of %s failed", productID)
	}
	return rows, nil
}

type MonthTotal struct {
	Month string          `json:"month"`
	Value decimal.Decimal `json:"value"`
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Value    decimal.Decimal `json:"value"`
}

type ProductTotal struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Value    decimal.Decimal `json:"totalValue"`
}

// SalesSummary aggregates sale transactions in a window. Values are gross
// (price_at_time * quantity); Net subtracts discounts.
type SalesSummary struct {
	Count          int             `json:"count"`
	Units          int             `json:"units"`
	Gross          decimal.Decimal `json:"gross"`
	Net            decimal.Decimal `json:"net"`
	QuantityMean   float64         `json:"quantityMean"`
	QuantityMedian float64         `json:"quantityMedian"`
	PerMonth       []MonthTotal    `json:"perMonth"`
	PerCategory    []CategoryTotal `json:"perCategory"`
	TopProducts    []ProductTotal  `json:"topProducts"`
}

func (r *Reports) SalesSummary(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, domain.NewValidationError("from must not be after to")
	}
	sales, err := r.store.ListTransactions(ctx, store.TransactionQuery{
		Type: domain.TransactionSale,
		From: from,
		To:   to,
	})
	if err != nil {
		return nil, domain.NewPersistenceError(err, "sales query failed")
	}
	products, _, err := r.store.ListProducts(ctx, store.ProductQuery{})
	if err != nil {
		return nil, domain.NewPersistenceError(err, "list products failed")
	}
	catalog := make(map[string]domain.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}

	summary := &SalesSummary{
		Gross:       decimal.Zero,
		Net:         decimal.Zero,
		PerMonth:    make([]MonthTotal, 0),
		PerCategory: make([]CategoryTotal, 0),
		TopProducts: make([]ProductTotal, 0),
	}
	months := make(map[string]decimal.Decimal)
	categories := make(map[string]decimal.Decimal)
	perProduct := make(map[string]*ProductTotal)
	quantities := make(stats.Float64Data, 0, len(sales))

	for _, t := range sales {
		gross := t.Gross()
		summary.Count++
		summary.Units += t.Quantity
		summary.Gross = summary.Gross.Add(gross)
		summary.Net = summary.Net.Add(t.Net())
		quantities = append(quantities, float64(t.Quantity))

		month := t.Timestamp.In(time.Local).Format("2006-01")
		months[month] = months[month].Add(gross)

		p, known := catalog[t.ProductID]
		category := p.Category
		if category == "" {
			category = uncategorized
		}
		categories[category] = categories[category].Add(gross)

		pt, ok := perProduct[t.ProductID]
		if !ok {
			name := t.ProductID
			if known {
				name = p.Name
			}
			pt = &ProductTotal{ID: t.ProductID, Name: name, Value: decimal.Zero}
			perProduct[t.ProductID] = pt
		}
		pt.Quantity += t.Quantity
		pt.Value = pt.Value.Add(gross)
	}

	if len(quantities) > 0 {
		summary.QuantityMean, _ = stats.Mean(quantities)
		summary.QuantityMedian, _ = stats.Median(quantities)
	}

	for m, v := range months {
		summary.PerMonth = append(summary.PerMonth, MonthTotal{Month: m, Value: v})
	}
	slices.SortFunc(summary.PerMonth, func(a, b MonthTotal) int {
		return strings.Compare(a.Month, b.Month)
	})

	for c, v := range categories {
		summary.PerCategory = append(summary.PerCategory, CategoryTotal{Category: c, Value: v})
	}
	slices.SortFunc(summary.PerCategory, func(a, b CategoryTotal) int {
		if c := b.Value.Cmp(a.Value); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})

	for _, pt := range perProduct {
		summary.TopProducts = append(summary.TopProducts, *pt)
	}
	slices.SortFunc(summary.TopProducts, func(a, b ProductTotal) int {
		if c := b.Value.Cmp(a.Value); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(summary.TopProducts) > topProductsMax {
		summary.TopProducts = summary.TopProducts[:topProductsMax]
	}
	return summary, nil
}
