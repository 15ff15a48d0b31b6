package inventory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/store"
	"github.com/stockledger/stockledger/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.LowStockEvent
}

func (r *recorder) PublishLowStock(evt domain.LowStockEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) Events() []domain.LowStockEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.LowStockEvent(nil), r.events...)
}

func strPtr(s string) *string { return &s }

func testNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func newTestEngine(t *testing.T, s store.Store) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	return NewEngine(s, rec, testNode(t)), rec
}

func mustProduct(t *testing.T, s store.Store, id, category string, price int64, stock, minStock int) {
	t.Helper()
	require.NoError(t, s.InsertProduct(context.Background(), &domain.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		Category: category,
		MinStock: minStock,
	}))
}

func seedDiscounts(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InsertDiscount(ctx, &domain.Discount{Name: "Bulk Office 10%", Category: strPtr("Office"), MinQty: 100, Percent: 10}))
	require.NoError(t, s.InsertDiscount(ctx, &domain.Discount{Name: "VIP 5%", MinQty: 1, Percent: 5, CustomerGroup: strPtr("vip")}))
	require.NoError(t, s.InsertDiscount(ctx, &domain.Discount{Name: "Electronics Promo 7%", Category: strPtr("Electronics"), MinQty: 5, Percent: 7}))
	require.NoError(t, s.InsertCustomer(ctx, &domain.Customer{ID: "C001", Name: "Toko Sinar", GroupType: "regular"}))
	require.NoError(t, s.InsertCustomer(ctx, &domain.Customer{ID: "C002", Name: "CV. Maju Jaya", GroupType: "vip"}))
}

func TestCreateTransactionEmitsLowStock(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mustProduct(t, s, "P", "", 50, 10, 10)
	e, rec := newTestEngine(t, s)

	res, err := e.CreateTransaction(ctx, TransactionRequest{ID: "T1", ProductID: "P", Quantity: 1, Type: domain.TransactionSale})
	require.NoError(t, err)
	assert.Equal(t, 9, res.Stock)
	assert.Zero(t, res.DiscountPercent)
	assert.True(t, res.PriceAtTime.Equal(decimal.NewFromInt(50)))
	require.NotNil(t, res.LowStock)
	assert.Equal(t, 9, res.LowStock.Stock)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "P", events[0].ProductID)
	assert.Equal(t, 9, events[0].Stock)
	assert.Equal(t, 10, events[0].MinStock)

	p, err := s.GetProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 9, p.Stock)
}

func TestCreateTransactionBestDiscount(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seedDiscounts(t, s)
	mustProduct(t, s, "P001", "Office", 50, 200, 10)
	e, rec := newTestEngine(t, s)

	res, err := e.CreateTransaction(ctx, TransactionRequest{
		ID: "T100", ProductID: "P001", Quantity: 150, Type: domain.TransactionSale, CustomerID: "C002",
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.DiscountPercent)
	assert.True(t, res.DiscountValue.Equal(decimal.NewFromInt(750)), "got %s", res.DiscountValue)
	assert.Equal(t, 50, res.Stock)
	assert.Empty(t, rec.Events())

	l, err := s.GetTransactionLog(ctx, "T100")
	require.NoError(t, err)
	assert.Equal(t, "sale 150 x P001 @50 discount:10%", l.Message)
	assert.NotZero(t, l.ID)

	txs, err := s.ListTransactions(ctx, store.TransactionQuery{ProductID: "P001"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].CustomerID)
	assert.Equal(t, "C002", *txs[0].CustomerID)
	assert.Nil(t, txs[0].SupplierID)
	assert.Equal(t, 10.0, txs[0].Discount)
}

func TestCreateTransactionDiscountGroups(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seedDiscounts(t, s)
	mustProduct(t, s, "P003", "Electronics", 120, 100, 5)
	mustProduct(t, s, "P009", "Office", 6, 100, 5)
	e, _ := newTestEngine(t, s)

	cases := []struct {
		name     string
		req      TransactionRequest
		expected float64
	}{
		{"vip small office order", TransactionRequest{ID: "A", ProductID: "P009", Quantity: 2, CustomerID: "C002"}, 5},
		{"regular small office order", TransactionRequest{ID: "B", ProductID: "P009", Quantity: 2, CustomerID: "C001"}, 0},
		{"unknown customer has no group", TransactionRequest{ID: "C", ProductID: "P009", Quantity: 2, CustomerID: "C404"}, 0},
		{"electronics promo beats vip", TransactionRequest{ID: "D", ProductID: "P003", Quantity: 5, CustomerID: "C002"}, 7},
		{"below electronics minimum", TransactionRequest{ID: "E", ProductID: "P003", Quantity: 4}, 0},
		{"purchase also resolves discount", TransactionRequest{ID: "F", ProductID: "P003", Quantity: 10, Type: domain.TransactionPurchase, SupplierID: "S001"}, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.CreateTransaction(ctx, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res.DiscountPercent)
		})
	}
}

func TestCreateTransactionInsufficientStock(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mustProduct(t, s, "P", "", 50, 3, 0)
	e, rec := newTestEngine(t, s)

	_, err := e.CreateTransaction(ctx, TransactionRequest{ID: "T1", ProductID: "P", Quantity: 5, Type: domain.TransactionSale})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock), "got %v", err)
	assert.Equal(t, domain.KindInsufficientStock, domain.KindOf(err))

	p, err := s.GetProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	txs, logs, err := s.CountLedger(ctx)
	require.NoError(t, err)
	assert.Zero(t, txs)
	assert.Zero(t, logs)
	assert.Empty(t, rec.Events())
}

func TestCreateTransactionValidation(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mustProduct(t, s, "P", "", 50, 10, 0)
	e, _ := newTestEngine(t, s)

	cases := []struct {
		name string
		req  TransactionRequest
		kind domain.ErrorKind
	}{
		{"missing id", TransactionRequest{ProductID: "P", Quantity: 1}, domain.KindValidation},
		{"missing product", TransactionRequest{ID: "T", Quantity: 1}, domain.KindValidation},
		{"zero quantity", TransactionRequest{ID: "T", ProductID: "P"}, domain.KindValidation},
		{"negative quantity", TransactionRequest{ID: "T", ProductID: "P", Quantity: -2}, domain.KindValidation},
		{"bad type", TransactionRequest{ID: "T", ProductID: "P", Quantity: 1, Type: "refund"}, domain.KindValidation},
		{"bad type before unknown product", TransactionRequest{ID: "T", ProductID: "X", Quantity: 1, Type: "refund"}, domain.KindValidation},
		{"unknown product", TransactionRequest{ID: "T", ProductID: "X", Quantity: 1}, domain.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.CreateTransaction(ctx, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, domain.KindOf(err), "got %v", err)
		})
	}

	txs, _, err := s.CountLedger(ctx)
	require.NoError(t, err)
	assert.Zero(t, txs)
}

func TestCreateTransactionDefaultsToSale(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mustProduct(t, s, "P", "", 50, 10, 0)
	e, _ := newTestEngine(t, s)

	res, err := e.CreateTransaction(ctx, TransactionRequest{ID: "T1", ProductID: "P", Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionSale, res.Type)
	assert.Equal(t, 6, res.Stock)
}

func TestCreateTransactionPurchaseIncreasesStock(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mustProduct(t, s, "P", "", 50, 2, 5)
	e, rec := newTestEngine(t, s)

	res, err := e.CreateTransaction(ctx, TransactionRequest{ID: "T1", ProductID: "P", Quantity: 10, Type: domain.TransactionPurchase, SupplierID: "S001"})
	require.NoError(t, err)
	assert.Equal(t, 12, res.Stock)
	assert.Nil(t, res.LowStock)
	assert.Empty(t, rec.Events())

	l, err := s.GetTransactionLog(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "purchase 10 x P @50 discount:0%", l.Message)
}

func TestCreateTransactionDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mustProduct(t, s, "P", "", 50, 10, 0)
	e, _ := newTestEngine(t, s)

	_, err := e.CreateTransaction(ctx, TransactionRequest{ID: "T1", ProductID: "P", Quantity: 1})
	require.NoError(t, err)

	_, err = e.CreateTransaction(ctx, TransactionRequest{ID: "T1", ProductID: "P", Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	p, err := s.GetProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 9, p.Stock)

	txs, logs, err := s.CountLedger(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, txs)
	assert.EqualValues(t, 1, logs)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mustProduct(t, s, "P", "", 5, 50, 0)
	e, _ := newTestEngine(t, s)

	const buyers = 100
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.CreateTransaction(ctx, TransactionRequest{
				ID:        "T" + strconv.Itoa(i),
				ProductID: "P",
				Quantity:  1,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, ok)
	assert.Equal(t, 50, rejected)

	p, err := s.GetProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)

	txs, logs, err := s.CountLedger(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 50, txs)
	assert.EqualValues(t, 50, logs)
}

type failingLogStore struct {
	*memstore.Store
}

func (s failingLogStore) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.Atomic(ctx, func(tx store.Tx) error {
		return fn(failingLogTx{tx})
	})
}

type failingLogTx struct {
	store.Tx
}

func (failingLogTx) InsertTransactionLog(context.Context, *domain.TransactionLog) error {
	return errors.New("disk full")
}

func TestLogFailureRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New()
	mustProduct(t, ms, "P", "", 50, 10, 0)
	e, rec := newTestEngine(t, failingLogStore{ms})

	_, err := e.CreateTransaction(ctx, TransactionRequest{ID: "T1", ProductID: "P", Quantity: 4})
	require.Error(t, err)
	assert.Equal(t, domain.KindPersistence, domain.KindOf(err))
	assert.ErrorContains(t, err, "disk full")

	p, err := ms.GetProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)

	txs, logs, err := ms.CountLedger(ctx)
	require.NoError(t, err)
	assert.Zero(t, txs)
	assert.Zero(t, logs)
	assert.Empty(t, rec.Events())
}

func TestUpdateStock(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mustProduct(t, s, "P", "", 50, 12, 10)
	e, rec := newTestEngine(t, s)

	p, err := e.UpdateStock(ctx, "P", 5, "")
	require.NoError(t, err)
	assert.Equal(t, 17, p.Stock)
	assert.Empty(t, rec.Events())

	p, err = e.UpdateStock(ctx, "P", 8, domain.TransactionSale)
	require.NoError(t, err)
	assert.Equal(t, 9, p.Stock)
	require.Len(t, rec.Events(), 1)

	_, err = e.UpdateStock(ctx, "P", 10, domain.TransactionSale)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock), "got %v", err)

	_, err = e.UpdateStock(ctx, "P", 0, "")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = e.UpdateStock(ctx, "", 1, "")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = e.UpdateStock(ctx, "P", 1, "refund")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = e.UpdateStock(ctx, "X", 1, "")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	p, err = s.GetProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 9, p.Stock)

	txs, logs, err := s.CountLedger(ctx)
	require.NoError(t, err)
	assert.Zero(t, txs)
	assert.Zero(t, logs)
}

func TestUpdateStockSharesBoundaryWithTransactions(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mustProduct(t, s, "P", "", 5, 40, 0)
	e, _ := newTestEngine(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = e.CreateTransaction(ctx, TransactionRequest{
				ID: "S" + strconv.Itoa(i), ProductID: "P", Quantity: 1,
			})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = e.UpdateStock(ctx, "P", 1, domain.TransactionSale)
		}()
	}
	wg.Wait()

	p, err := s.GetProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)

	txs, _, err := s.CountLedger(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, txs, int64(40))
}
