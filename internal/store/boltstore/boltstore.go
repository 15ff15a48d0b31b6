// Package boltstore persists the catalog and ledger in a single bbolt file.
// bbolt allows one read-write transaction at a time, so Atomic units are
// fully serialised.
package boltstore

import (
	"context"
	"encoding/binary"
	"slices"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/store"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/text/cases"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	bucketProducts     = []byte("products")
	bucketTransactions = []byte("transactions")
	bucketLogs         = []byte("transaction_logs")
	bucketDiscounts    = []byte("discounts")
	bucketCustomers    = []byte("customers")
	bucketSuppliers    = []byte("suppliers")

	allBuckets = [][]byte{
		bucketProducts, bucketTransactions, bucketLogs,
		bucketDiscounts, bucketCustomers, bucketSuppliers,
	}
)

type Store struct {
	db *bolt.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt database %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "create bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type boltTx struct {
	tx *bolt.Tx
}

func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (s *Store) view(fn func(tx *boltTx) error) error {
	return s.db.View(func(tx *bolt.Tx) error { return fn(&boltTx{tx: tx}) })
}

func (s *Store) update(fn func(tx *boltTx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error { return fn(&boltTx{tx: tx}) })
}

func (t *boltTx) get(bucket []byte, key string, v interface{}) error {
	data := t.tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return store.ErrNotFound
	}
	return errors.Wrapf(json.Unmarshal(data, v), "decode %s/%s", bucket, key)
}

func (t *boltTx) put(bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s/%s", bucket, key)
	}
	return t.tx.Bucket(bucket).Put([]byte(key), data)
}

func (t *boltTx) insert(bucket []byte, key string, v interface{}) error {
	if t.tx.Bucket(bucket).Get([]byte(key)) != nil {
		return errors.Wrapf(store.ErrDuplicate, "%s/%s", bucket, key)
	}
	return t.put(bucket, key, v)
}

func (t *boltTx) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := t.get(bucketProducts, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *boltTx) InsertProduct(_ context.Context, p *domain.Product) error {
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	return t.insert(bucketProducts, p.ID, p)
}

func (t *boltTx) UpdateProduct(ctx context.Context, p *domain.Product) error {
	old, err := t.GetProduct(ctx, p.ID)
	if err != nil {
		return err
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now()
	return t.put(bucketProducts, p.ID, p)
}

func (t *boltTx) AdjustStock(ctx context.Context, id string, delta int) error {
	p, err := t.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	p.Stock += delta
	p.UpdatedAt = time.Now()
	return t.put(bucketProducts, id, p)
}

func (t *boltTx) InsertTransaction(_ context.Context, tr *domain.Transaction) error {
	return t.insert(bucketTransactions, tr.ID, tr)
}

func (t *boltTx) InsertTransactionLog(_ context.Context, l *domain.TransactionLog) error {
	return t.insert(bucketLogs, l.TransactionID, l)
}

func (t *boltTx) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	if err := t.get(bucketCustomers, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *boltTx) ListDiscounts(_ context.Context) ([]domain.Discount, error) {
	rows := make([]domain.Discount, 0)
	err := t.tx.Bucket(bucketDiscounts).ForEach(func(k, v []byte) error {
		var d domain.Discount
		if err := json.Unmarshal(v, &d); err != nil {
			return errors.Wrapf(err, "decode discount %d", binary.BigEndian.Uint64(k))
		}
		rows = append(rows, d)
		return nil
	})
	return rows, err
}

func (t *boltTx) products() ([]domain.Product, error) {
	rows := make([]domain.Product, 0)
	err := t.tx.Bucket(bucketProducts).ForEach(func(k, v []byte) error {
		var p domain.Product
		if err := json.Unmarshal(v, &p); err != nil {
			return errors.Wrapf(err, "decode product %s", k)
		}
		rows = append(rows, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(rows, func(a, b domain.Product) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return rows, nil
}

// Tx methods on the store itself, each committing on its own.

func (s *Store) GetProduct(ctx context.Context, id string) (p *domain.Product, err error) {
	err = s.view(func(tx *boltTx) error {
		p, err = tx.GetProduct(ctx, id)
		return err
	})
	return p, err
}

func (s *Store) InsertProduct(ctx context.Context, p *domain.Product) error {
	return s.update(func(tx *boltTx) error { return tx.InsertProduct(ctx, p) })
}

func (s *Store) UpdateProduct(ctx context.Context, p *domain.Product) error {
	return s.update(func(tx *boltTx) error { return tx.UpdateProduct(ctx, p) })
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) error {
	return s.update(func(tx *boltTx) error { return tx.AdjustStock(ctx, id, delta) })
}

func (s *Store) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	return s.update(func(tx *boltTx) error { return tx.InsertTransaction(ctx, tr) })
}

func (s *Store) InsertTransactionLog(ctx context.Context, l *domain.TransactionLog) error {
	return s.update(func(tx *boltTx) error { return tx.InsertTransactionLog(ctx, l) })
}

func (s *Store) GetCustomer(ctx context.Context, id string) (c *domain.Customer, err error) {
	err = s.view(func(tx *boltTx) error {
		c, err = tx.GetCustomer(ctx, id)
		return err
	})
	return c, err
}

func (s *Store) ListDiscounts(ctx context.Context) (rows []domain.Discount, err error) {
	err = s.view(func(tx *boltTx) error {
		rows, err = tx.ListDiscounts(ctx)
		return err
	})
	return rows, err
}

func (s *Store) ListProducts(_ context.Context, q store.ProductQuery) ([]domain.Product, int64, error) {
	var all []domain.Product
	err := s.view(func(tx *boltTx) (err error) {
		all, err = tx.products()
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	fold := cases.Fold()
	needle := fold.String(q.Q)
	matched := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if needle != "" && !strings.Contains(fold.String(p.Name), needle) {
			continue
		}
		matched = append(matched, p)
	}

	total := int64(len(matched))
	offset := q.Offset()
	if offset >= len(matched) {
		return []domain.Product{}, total, nil
	}
	matched = matched[offset:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.Product, error) {
	var all []domain.Product
	err := s.view(func(tx *boltTx) (err error) {
		all, err = tx.products()
		return err
	})
	if err != nil {
		return nil, err
	}
	rows := make([]domain.Product, 0)
	for _, p := range all {
		if p.IsLowStock() {
			rows = append(rows, p)
		}
	}
	return rows, nil
}

func (s *Store) InventoryValue(_ context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	err := s.view(func(tx *boltTx) error {
		all, err := tx.products()
		if err != nil {
			return err
		}
		for _, p := range all {
			total = total.Add(p.Value())
		}
		return nil
	})
	return total, err
}

func (s *Store) ListTransactions(_ context.Context, q store.TransactionQuery) ([]domain.Transaction, error) {
	rows := make([]domain.Transaction, 0)
	err := s.view(func(tx *boltTx) error {
		return tx.tx.Bucket(bucketTransactions).ForEach(func(k, v []byte) error {
			var t domain.Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return errors.Wrapf(err, "decode transaction %s", k)
			}
			if q.Match(&t) {
				rows = append(rows, t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(rows, func(a, b domain.Transaction) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return rows, nil
}

func (s *Store) GetTransactionLog(_ context.Context, transactionID string) (*domain.TransactionLog, error) {
	var l domain.TransactionLog
	err := s.view(func(tx *boltTx) error {
		return tx.get(bucketLogs, transactionID, &l)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) CountLedger(_ context.Context) (txs int64, logs int64, err error) {
	err = s.view(func(tx *boltTx) error {
		txs = int64(tx.tx.Bucket(bucketTransactions).Stats().KeyN)
		logs = int64(tx.tx.Bucket(bucketLogs).Stats().KeyN)
		return nil
	})
	return txs, logs, err
}

func (s *Store) InsertDiscount(ctx context.Context, d *domain.Discount) error {
	return s.update(func(tx *boltTx) error {
		existing, err := tx.ListDiscounts(ctx)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.Name == d.Name {
				return errors.Wrapf(store.ErrDuplicate, "discount %s", d.Name)
			}
		}
		b := tx.tx.Bucket(bucketDiscounts)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		d.ID = int64(seq)
		d.CreatedAt = time.Now()
		data, err := json.Marshal(d)
		if err != nil {
			return errors.Wrap(err, "encode discount")
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
}

func (s *Store) InsertCustomer(_ context.Context, c *domain.Customer) error {
	return s.update(func(tx *boltTx) error {
		c.CreatedAt = time.Now()
		return tx.insert(bucketCustomers, c.ID, c)
	})
}

func (s *Store) InsertSupplier(_ context.Context, sp *domain.Supplier) error {
	return s.update(func(tx *boltTx) error {
		sp.CreatedAt = time.Now()
		return tx.insert(bucketSuppliers, sp.ID, sp)
	})
}
