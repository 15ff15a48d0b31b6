// Package memstore keeps the catalog and ledger in process memory. It is used
// for tests and for running without a database (database.type: memory).
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/store"
	"golang.org/x/text/cases"
)

type productKey struct {
	name string
	id   string
}

func lessProductKey(a, b productKey) bool {
	if a.name != b.name {
		return a.name < b.name
	}
	return a.id < b.id
}

// Store is a store.Store held in memory. A single writer lock serialises all
// mutations, which satisfies the per-product isolation of Atomic.
type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	byName       *btree.BTreeG[productKey]
	transactions []domain.Transaction
	txIndex      map[string]int
	logs         map[string]domain.TransactionLog
	discounts    []domain.Discount
	customers    map[string]domain.Customer
	suppliers    map[string]domain.Supplier
	discountSeq  int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		products:  make(map[string]domain.Product),
		byName:    btree.NewG[productKey](16, lessProductKey),
		txIndex:   make(map[string]int),
		logs:      make(map[string]domain.TransactionLog),
		customers: make(map[string]domain.Customer),
		suppliers: make(map[string]domain.Supplier),
	}
}

// memTx applies writes directly to the store and journals how to revert them.
type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) record(fn func()) {
	if t.undo != nil {
		t.undo = append(t.undo, fn)
	}
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s, undo: make([]func(), 0, 4)}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) write(fn func(tx *memTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{s: s})
}

func (t *memTx) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := t.s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *memTx) InsertProduct(_ context.Context, p *domain.Product) error {
	if _, ok := t.s.products[p.ID]; ok {
		return errors.Wrapf(store.ErrDuplicate, "product %s", p.ID)
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	t.s.products[p.ID] = *p
	key := productKey{name: p.Name, id: p.ID}
	t.s.byName.ReplaceOrInsert(key)
	id := p.ID
	t.record(func() {
		delete(t.s.products, id)
		t.s.byName.Delete(key)
	})
	return nil
}

func (t *memTx) UpdateProduct(_ context.Context, p *domain.Product) error {
	old, ok := t.s.products[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now()
	t.s.products[p.ID] = *p
	oldKey, newKey := productKey{name: old.Name, id: old.ID}, productKey{name: p.Name, id: p.ID}
	if oldKey != newKey {
		t.s.byName.Delete(oldKey)
		t.s.byName.ReplaceOrInsert(newKey)
	}
	t.record(func() {
		t.s.products[old.ID] = old
		if oldKey != newKey {
			t.s.byName.Delete(newKey)
			t.s.byName.ReplaceOrInsert(oldKey)
		}
	})
	return nil
}

func (t *memTx) AdjustStock(_ context.Context, id string, delta int) error {
	p, ok := t.s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	old := p
	p.Stock += delta
	p.UpdatedAt = time.Now()
	t.s.products[id] = p
	t.record(func() { t.s.products[id] = old })
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr *domain.Transaction) error {
	if _, ok := t.s.txIndex[tr.ID]; ok {
		return errors.Wrapf(store.ErrDuplicate, "transaction %s", tr.ID)
	}
	t.s.transactions = append(t.s.transactions, *tr)
	t.s.txIndex[tr.ID] = len(t.s.transactions) - 1
	id := tr.ID
	t.record(func() {
		t.s.transactions = t.s.transactions[:len(t.s.transactions)-1]
		delete(t.s.txIndex, id)
	})
	return nil
}

func (t *memTx) InsertTransactionLog(_ context.Context, l *domain.TransactionLog) error {
	if _, ok := t.s.logs[l.TransactionID]; ok {
		return errors.Wrapf(store.ErrDuplicate, "transaction log %s", l.TransactionID)
	}
	t.s.logs[l.TransactionID] = *l
	id := l.TransactionID
	t.record(func() { delete(t.s.logs, id) })
	return nil
}

func (t *memTx) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	c, ok := t.s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (t *memTx) ListDiscounts(_ context.Context) ([]domain.Discount, error) {
	return slices.Clone(t.s.discounts), nil
}

// Tx methods on the store itself, each committing on its own.

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{s: s}).GetProduct(ctx, id)
}

func (s *Store) InsertProduct(ctx context.Context, p *domain.Product) error {
	return s.write(func(tx *memTx) error { return tx.InsertProduct(ctx, p) })
}

func (s *Store) UpdateProduct(ctx context.Context, p *domain.Product) error {
	return s.write(func(tx *memTx) error { return tx.UpdateProduct(ctx, p) })
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) error {
	return s.write(func(tx *memTx) error { return tx.AdjustStock(ctx, id, delta) })
}

func (s *Store) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	return s.write(func(tx *memTx) error { return tx.InsertTransaction(ctx, tr) })
}

func (s *Store) InsertTransactionLog(ctx context.Context, l *domain.TransactionLog) error {
	return s.write(func(tx *memTx) error { return tx.InsertTransactionLog(ctx, l) })
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{s: s}).GetCustomer(ctx, id)
}

func (s *Store) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{s: s}).ListDiscounts(ctx)
}

func (s *Store) ListProducts(_ context.Context, q store.ProductQuery) ([]domain.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		needle = ""
		fold   = cases.Fold()
		total  int64
		offset = q.Offset()
		rows   = make([]domain.Product, 0)
	)
	if q.Q != "" {
		needle = fold.String(q.Q)
	}
	s.byName.Ascend(func(k productKey) bool {
		p := s.products[k.id]
		if q.Category != "" && p.Category != q.Category {
			return true
		}
		if needle != "" && !strings.Contains(fold.String(p.Name), needle) {
			return true
		}
		total++
		if total > int64(offset) && (q.Limit <= 0 || len(rows) < q.Limit) {
			rows = append(rows, p)
		}
		return true
	})
	return rows, total, nil
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.Product, 0)
	s.byName.Ascend(func(k productKey) bool {
		if p := s.products[k.id]; p.IsLowStock() {
			rows = append(rows, p)
		}
		return true
	})
	return rows, nil
}

func (s *Store) InventoryValue(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, p := range s.products {
		total = total.Add(p.Value())
	}
	return total, nil
}

func (s *Store) ListTransactions(_ context.Context, q store.TransactionQuery) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.Transaction, 0)
	for i := range s.transactions {
		if q.Match(&s.transactions[i]) {
			rows = append(rows, s.transactions[i])
		}
	}
	slices.SortStableFunc(rows, func(a, b domain.Transaction) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return rows, nil
}

func (s *Store) GetTransactionLog(_ context.Context, transactionID string) (*domain.TransactionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[transactionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (s *Store) CountLedger(_ context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.transactions)), int64(len(s.logs)), nil
}

func (s *Store) InsertDiscount(_ context.Context, d *domain.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.discounts {
		if existing.Name == d.Name {
			return errors.Wrapf(store.ErrDuplicate, "discount %s", d.Name)
		}
	}
	s.discountSeq++
	d.ID = s.discountSeq
	d.CreatedAt = time.Now()
	s.discounts = append(s.discounts, *d)
	return nil
}

func (s *Store) InsertCustomer(_ context.Context, c *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[c.ID]; ok {
		return errors.Wrapf(store.ErrDuplicate, "customer %s", c.ID)
	}
	c.CreatedAt = time.Now()
	s.customers[c.ID] = *c
	return nil
}

func (s *Store) InsertSupplier(_ context.Context, sp *domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliers[sp.ID]; ok {
		return errors.Wrapf(store.ErrDuplicate, "supplier %s", sp.ID)
	}
	sp.CreatedAt = time.Now()
	s.suppliers[sp.ID] = *sp
	return nil
}

func (s *Store) Close() error {
	return nil
}
