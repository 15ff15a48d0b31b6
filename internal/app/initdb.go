package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/store"
	"go.uber.org/zap"
)

func ptr(s string) *string { return &s }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var seedProducts = []domain.Product{
	{ID: "P001", Name: "Tinta Printer", Price: money("50"), Stock: 100, Category: "Office", MinStock: 10},
	{ID: "P002", Name: "Kertas A4", Price: money("3"), Stock: 500, Category: "Office", MinStock: 50},
	{ID: "P003", Name: "Mouse Wireless", Price: money("120"), Stock: 20, Category: "Electronics", MinStock: 5},
	{ID: "P004", Name: "Keyboard Mechanical", Price: money("350"), Stock: 15, Category: "Electronics", MinStock: 3},
	{ID: "P005", Name: "Bolpoin", Price: money("0.75"), Stock: 1000, Category: "Office", MinStock: 100},
	{ID: "P006", Name: "Stapler", Price: money("15"), Stock: 80, Category: "Office", MinStock: 10},
	{ID: "P007", Name: "Charger USB-C", Price: money("80"), Stock: 40, Category: "Electronics", MinStock: 5},
	{ID: "P008", Name: "Mousepad", Price: money("25"), Stock: 60, Category: "Accessories", MinStock: 5},
	{ID: "P009", Name: "Notebook A5", Price: money("6.5"), Stock: 200, Category: "Office", MinStock: 20},
	{ID: "P010", Name: "Headset", Price: money("220"), Stock: 12, Category: "Electronics", MinStock: 3},
}

var seedDiscounts = []domain.Discount{
	{Name: "Bulk Office 10%", Category: ptr("Office"), MinQty: 100, Percent: 10},
	{Name: "VIP 5%", MinQty: 1, Percent: 5, CustomerGroup: ptr("vip")},
	{Name: "Electronics Promo 7%", Category: ptr("Electronics"), MinQty: 5, Percent: 7},
}

var seedCustomers = []domain.Customer{
	{ID: "C001", Name: "PT. Sukses Makmur", GroupType: "regular"},
	{ID: "C002", Name: "CV. Maju Jaya", GroupType: "vip"},
	{ID: "C003", Name: "Toko Alat Tulis", GroupType: "regular"},
}

var seedSuppliers = []domain.Supplier{
	{ID: "S001", Name: "Distributor OfficeMart"},
	{ID: "S002", Name: "Distributor Elektronik"},
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// Historical ledger entries across 2025. Stock levels above already reflect them.
var seedTransactions = []domain.Transaction{
	{ID: "T001", ProductID: "P001", Quantity: 10, Type: domain.TransactionSale, CustomerID: ptr("C001"), PriceAtTime: money("50"), Timestamp: at("2025-01-05T10:15:00Z")},
	{ID: "T002", ProductID: "P002", Quantity: 200, Type: domain.TransactionSale, CustomerID: ptr("C003"), PriceAtTime: money("3"), Timestamp: at("2025-01-10T09:00:00Z")},
	{ID: "T003", ProductID: "P003", Quantity: 5, Type: domain.TransactionSale, CustomerID: ptr("C001"), PriceAtTime: money("120"), Discount: 7, Timestamp: at("2025-02-14T12:30:00Z")},
	{ID: "T004", ProductID: "P004", Quantity: 2, Type: domain.TransactionSale, CustomerID: ptr("C002"), PriceAtTime: money("350"), Discount: 5, Timestamp: at("2025-02-20T15:45:00Z")},
	{ID: "T005", ProductID: "P005", Quantity: 300, Type: domain.TransactionSale, CustomerID: ptr("C003"), PriceAtTime: money("0.75"), Timestamp: at("2025-03-03T08:00:00Z")},
	{ID: "T006", ProductID: "P003", Quantity: 20, Type: domain.TransactionPurchase, SupplierID: ptr("S002"), PriceAtTime: money("100"), Timestamp: at("2025-04-01T07:00:00Z")},
	{ID: "T007", ProductID: "P007", Quantity: 8, Type: domain.TransactionSale, CustomerID: ptr("C001"), PriceAtTime: money("80"), Timestamp: at("2025-05-10T11:20:00Z")},
	{ID: "T008", ProductID: "P010", Quantity: 4, Type: domain.TransactionSale, CustomerID: ptr("C002"), PriceAtTime: money("220"), Discount: 5, Timestamp: at("2025-06-05T13:00:00Z")},
	{ID: "T009", ProductID: "P009", Quantity: 50, Type: domain.TransactionSale, CustomerID: ptr("C003"), PriceAtTime: money("6.5"), Timestamp: at("2025-07-12T09:30:00Z")},
	{ID: "T010", ProductID: "P002", Quantity: 1000, Type: domain.TransactionPurchase, SupplierID: ptr("S001"), PriceAtTime: money("2.5"), Timestamp: at("2025-08-01T06:00:00Z")},
}

func ignoreDuplicate(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	return err
}

// SeedData loads the sample catalog, rules, directory and 2025 history.
// Records that already exist are left untouched, so it is safe to rerun.
func (a *Application) SeedData(ctx context.Context) error {
	var inserted int
	for _, p := range seedProducts {
		p := p
		err := a.store.InsertProduct(ctx, &p)
		if err == nil {
			inserted++
		}
		if err = ignoreDuplicate(err); err != nil {
			return err
		}
	}
	for _, d := range seedDiscounts {
		d := d
		if err := ignoreDuplicate(a.store.InsertDiscount(ctx, &d)); err != nil {
			return err
		}
	}
	for _, c := range seedCustomers {
		c := c
		if err := ignoreDuplicate(a.store.InsertCustomer(ctx, &c)); err != nil {
			return err
		}
	}
	for _, s := range seedSuppliers {
		s := s
		if err := ignoreDuplicate(a.store.InsertSupplier(ctx, &s)); err != nil {
			return err
		}
	}

	node := a.node
	for _, t := range seedTransactions {
		t := t
		err := a.store.Atomic(ctx, func(tx store.Tx) error {
			if err := tx.InsertTransaction(ctx, &t); err != nil {
				return err
			}
			return tx.InsertTransactionLog(ctx, &domain.TransactionLog{
				ID:            node.Generate().Int64(),
				TransactionID: t.ID,
				Message:       domain.LogMessage(&t),
				Timestamp:     t.Timestamp,
			})
		})
		if err = ignoreDuplicate(err); err != nil {
			return err
		}
	}

	zap.L().Info("seed data loaded",
		zap.Int("new_products", inserted),
		zap.Int("transactions", len(seedTransactions)),
		zap.String("namespace", "app"))
	return nil
}
