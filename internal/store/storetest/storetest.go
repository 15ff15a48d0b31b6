// Package storetest holds behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run executes the contract suite against stores built by factory.
func Run(t *testing.T, factory func(t *testing.T) store.Store) {
	t.Run("ProductCRUD", func(t *testing.T) { testProductCRUD(t, factory(t)) })
	t.Run("AdjustStock", func(t *testing.T) { testAdjustStock(t, factory(t)) })
	t.Run("AtomicCommit", func(t *testing.T) { testAtomicCommit(t, factory(t)) })
	t.Run("AtomicRollback", func(t *testing.T) { testAtomicRollback(t, factory(t)) })
	t.Run("AtomicSerializesProduct", func(t *testing.T) { testAtomicSerializesProduct(t, factory(t)) })
	t.Run("ListProducts", func(t *testing.T) { testListProducts(t, factory(t)) })
	t.Run("Reports", func(t *testing.T) { testReports(t, factory(t)) })
	t.Run("Directory", func(t *testing.T) { testDirectory(t, factory(t)) })
}

func product(id, name, category string, price int64, stock, minStock int) *domain.Product {
	return &domain.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		Category: category,
		MinStock: minStock,
	}
}

func testProductCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.InsertProduct(ctx, product("P001", "Tinta Printer", "Office", 50, 100, 10)))
	err := s.InsertProduct(ctx, product("P001", "Duplicate", "", 1, 1, 0))
	assert.True(t, errors.Is(err, store.ErrDuplicate), "got %v", err)

	got, err := s.GetProduct(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, "Tinta Printer", got.Name)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 100, got.Stock)

	got.Name = "Tinta Printer Hitam"
	got.MinStock = 20
	require.NoError(t, s.UpdateProduct(ctx, got))

	again, err := s.GetProduct(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, "Tinta Printer Hitam", again.Name)
	assert.Equal(t, 20, again.MinStock)

	_, err = s.GetProduct(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
	err = s.UpdateProduct(ctx, product("missing", "x", "", 1, 1, 1))
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func testAdjustStock(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertProduct(ctx, product("P003", "Mouse Wireless", "Electronics", 120, 20, 5)))

	require.NoError(t, s.AdjustStock(ctx, "P003", -5))
	require.NoError(t, s.AdjustStock(ctx, "P003", 12))

	got, err := s.GetProduct(ctx, "P003")
	require.NoError(t, err)
	assert.Equal(t, 27, got.Stock)

	err = s.AdjustStock(ctx, "missing", 1)
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

var logSeq atomic.Int64

func ledgerEntry(id, productID string, qty int, typ domain.TransactionType, at time.Time) (*domain.Transaction, *domain.TransactionLog) {
	tr := &domain.Transaction{
		ID:          id,
		ProductID:   productID,
		Quantity:    qty,
		Type:        typ,
		PriceAtTime: decimal.NewFromInt(50),
		Timestamp:   at,
	}
	return tr, &domain.TransactionLog{
		ID:            logSeq.Add(1),
		TransactionID: id,
		Message:       domain.LogMessage(tr),
		Timestamp:     at,
	}
}

func testAtomicCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertProduct(ctx, product("P001", "Tinta Printer", "Office", 50, 10, 2)))

	at := time.Date(2025, 1, 5, 10, 15, 0, 0, time.UTC)
	err := s.Atomic(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, "P001")
		if err != nil {
			return err
		}
		if err := tx.AdjustStock(ctx, p.ID, -4); err != nil {
			return err
		}
		tr, l := ledgerEntry("T001", p.ID, 4, domain.TransactionSale, at)
		if err := tx.InsertTransaction(ctx, tr); err != nil {
			return err
		}
		return tx.InsertTransactionLog(ctx, l)
	})
	require.NoError(t, err)

	got, err := s.GetProduct(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock)

	txs, logs, err := s.CountLedger(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, txs)
	assert.EqualValues(t, 1, logs)

	l, err := s.GetTransactionLog(ctx, "T001")
	require.NoError(t, err)
	assert.Equal(t, "sale 4 x P001 @50 discount:0%", l.Message)
}

var errSoldOut = errors.New("sold out")

// Concurrent check-then-decrement units on one product must never oversell.
func testAtomicSerializesProduct(t *testing.T, s store.Store) {
	ctx := context.Background()
	const stock, buyers = 20, 50
	require.NoError(t, s.InsertProduct(ctx, product("P001", "Tinta Printer", "Office", 50, stock, 2)))

	at := time.Date(2025, 1, 5, 10, 15, 0, 0, time.UTC)
	var sold, rejected atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Atomic(ctx, func(tx store.Tx) error {
				p, err := tx.GetProduct(ctx, "P001")
				if err != nil {
					return err
				}
				if p.Stock < 1 {
					return errSoldOut
				}
				if err := tx.AdjustStock(ctx, p.ID, -1); err != nil {
					return err
				}
				tr, l := ledgerEntry("C"+strconv.Itoa(i), p.ID, 1, domain.TransactionSale, at)
				if err := tx.InsertTransaction(ctx, tr); err != nil {
					return err
				}
				return tx.InsertTransactionLog(ctx, l)
			})
			switch {
			case err == nil:
				sold.Add(1)
			case errors.Is(err, errSoldOut):
				rejected.Add(1)
			default:
				t.Errorf("buyer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, stock, sold.Load())
	assert.EqualValues(t, buyers-stock, rejected.Load())

	got, err := s.GetProduct(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	txs, logs, err := s.CountLedger(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, stock, txs)
	assert.EqualValues(t, stock, logs)
}

func testAtomicRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertProduct(ctx, product("P001", "Tinta Printer", "Office", 50, 10, 2)))

	boom := errors.New("log write failed")
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	err := s.Atomic(ctx, func(tx store.Tx) error {
		if err := tx.AdjustStock(ctx, "P001", -3); err != nil {
			return err
		}
		tr, _ := ledgerEntry("T002", "P001", 3, domain.TransactionSale, at)
		if err := tx.InsertTransaction(ctx, tr); err != nil {
			return err
		}
		return boom
	})
	assert.True(t, errors.Is(err, boom), "got %v", err)

	got, err := s.GetProduct(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)

	txs, logs, err := s.CountLedger(ctx)
	require.NoError(t, err)
	assert.Zero(t, txs)
	assert.Zero(t, logs)

	// a rolled back id can be reused
	require.NoError(t, s.Atomic(ctx, func(tx store.Tx) error {
		tr, l := ledgerEntry("T002", "P001", 1, domain.TransactionPurchase, at)
		if err := tx.InsertTransaction(ctx, tr); err != nil {
			return err
		}
		return tx.InsertTransactionLog(ctx, l)
	}))
}

func testListProducts(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, p := range []*domain.Product{
		product("P002", "Kertas A4", "Office", 3, 500, 50),
		product("P003", "Mouse Wireless", "Electronics", 120, 20, 5),
		product("P005", "Bolpoin", "Office", 1, 1000, 100),
		product("P008", "Mousepad", "Accessories", 25, 60, 5),
		product("P010", "Headset", "Electronics", 220, 12, 3),
	} {
		require.NoError(t, s.InsertProduct(ctx, p))
	}

	rows, total, err := s.ListProducts(ctx, store.ProductQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bolpoin", rows[0].Name)
	assert.Equal(t, "Headset", rows[1].Name)

	rows, _, err = s.ListProducts(ctx, store.ProductQuery{Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mousepad", rows[0].Name)

	rows, total, err = s.ListProducts(ctx, store.ProductQuery{Page: 1, Limit: 10, Category: "Electronics"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"Headset", "Mouse Wireless"}, names(rows))

	rows, total, err = s.ListProducts(ctx, store.ProductQuery{Page: 1, Limit: 10, Q: "MOUSE"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"Mouse Wireless", "Mousepad"}, names(rows))
}

func names(rows []domain.Product) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out
}

func testReports(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertProduct(ctx, product("P001", "Tinta Printer", "Office", 50, 10, 10)))
	require.NoError(t, s.InsertProduct(ctx, product("P004", "Keyboard Mechanical", "Electronics", 350, 15, 3)))

	value, err := s.InventoryValue(ctx)
	require.NoError(t, err)
	assert.True(t, value.Equal(decimal.NewFromInt(50*10+350*15)), "got %s", value)

	low, err := s.ListLowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tinta Printer"}, names(low))

	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"T1", "T2", "T3"} {
		tr, l := ledgerEntry(id, "P001", 1, domain.TransactionSale, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.InsertTransaction(ctx, tr))
		require.NoError(t, s.InsertTransactionLog(ctx, l))
	}
	tr, l := ledgerEntry("T4", "P004", 2, domain.TransactionPurchase, base)
	require.NoError(t, s.InsertTransaction(ctx, tr))
	require.NoError(t, s.InsertTransactionLog(ctx, l))

	history, err := s.ListTransactions(ctx, store.TransactionQuery{ProductID: "P001"})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "T3", history[0].ID)
	assert.Equal(t, "T1", history[2].ID)

	windowed, err := s.ListTransactions(ctx, store.TransactionQuery{
		From: base.Add(30 * time.Minute),
		To:   base.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "T2", windowed[0].ID)

	purchases, err := s.ListTransactions(ctx, store.TransactionQuery{Type: domain.TransactionPurchase})
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, "T4", purchases[0].ID)
}

func testDirectory(t *testing.T, s store.Store) {
	ctx := context.Background()
	office, vip := "Office", "vip"

	require.NoError(t, s.InsertDiscount(ctx, &domain.Discount{Name: "Bulk Office 10%", Category: &office, MinQty: 100, Percent: 10}))
	require.NoError(t, s.InsertDiscount(ctx, &domain.Discount{Name: "VIP 5%", MinQty: 1, Percent: 5, CustomerGroup: &vip}))
	err := s.InsertDiscount(ctx, &domain.Discount{Name: "VIP 5%", MinQty: 1, Percent: 5})
	assert.True(t, errors.Is(err, store.ErrDuplicate), "got %v", err)

	rules, err := s.ListDiscounts(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	require.NoError(t, s.InsertCustomer(ctx, &domain.Customer{ID: "C002", Name: "CV. Maju Jaya", GroupType: "vip"}))
	c, err := s.GetCustomer(ctx, "C002")
	require.NoError(t, err)
	assert.Equal(t, "vip", c.GroupType)

	_, err = s.GetCustomer(ctx, "C404")
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)

	require.NoError(t, s.InsertSupplier(ctx, &domain.Supplier{ID: "S001", Name: "Distributor OfficeMart"}))
	err = s.InsertSupplier(ctx, &domain.Supplier{ID: "S001", Name: "again"})
	assert.True(t, errors.Is(err, store.ErrDuplicate), "got %v", err)
}
