// Package gormstore is the PostgreSQL backed store.Store.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger/config"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/store"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Open connects to PostgreSQL using the database section of the config.
func Open(cfg config.DBConfig) (*Store, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)

	logLevel := logger.Warn
	if cfg.Debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newZapLogger(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConn)
	sqlDB.SetMaxIdleConns(cfg.IdleConn)
	sqlDB.SetConnMaxLifetime(time.Hour)

	zap.L().Info("postgres connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
		zap.String("namespace", "store"))
	return New(db), nil
}

// Store wraps a gorm handle. The embedded gormTx serves the single-statement
// Tx methods outside of Atomic.
type Store struct {
	gormTx
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{gormTx{db: db}}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates every table in domain.Tables.
func (s *Store) Migrate(debug bool) error {
	db := s.db
	if debug {
		db = db.Debug()
	}
	return errors.Wrap(db.Migrator().AutoMigrate(domain.Tables...), "auto migrate")
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Atomic runs fn in a database transaction. Products read through the tx
// are loaded with SELECT ... FOR UPDATE so concurrent units on the same
// product queue behind each other.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx, lock: true})
	})
}

type gormTx struct {
	db   *gorm.DB
	lock bool
}

func translate(err error, format string, args ...interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Wrapf(store.ErrDuplicate, format, args...)
	default:
		return errors.Wrapf(err, format, args...)
	}
}

func (t *gormTx) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	q := t.db.WithContext(ctx)
	if t.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p domain.Product
	if err := q.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err, "get product %s", id)
	}
	return &p, nil
}

func (t *gormTx) InsertProduct(ctx context.Context, p *domain.Product) error {
	return translate(t.db.WithContext(ctx).Create(p).Error, "product %s", p.ID)
}

func (t *gormTx) UpdateProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now()
	res := t.db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"name":       p.Name,
		"price":      p.Price,
		"stock":      p.Stock,
		"category":   p.Category,
		"min_stock":  p.MinStock,
		"updated_at": now,
	})
	if res.Error != nil {
		return translate(res.Error, "update product %s", p.ID)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

func (t *gormTx) AdjustStock(ctx context.Context, id string, delta int) error {
	res := t.db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", id).Updates(map[string]interface{}{
		"stock":      gorm.Expr("stock + ?", delta),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return translate(res.Error, "adjust stock %s", id)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *gormTx) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	return translate(t.db.WithContext(ctx).Create(tr).Error, "transaction %s", tr.ID)
}

func (t *gormTx) InsertTransactionLog(ctx context.Context, l *domain.TransactionLog) error {
	return translate(t.db.WithContext(ctx).Create(l).Error, "transaction log %s", l.TransactionID)
}

func (t *gormTx) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err, "get customer %s", id)
	}
	return &c, nil
}

func (t *gormTx) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	rows := make([]domain.Discount, 0)
	err := t.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	return rows, translate(err, "list discounts")
}

func (s *Store) ListProducts(ctx context.Context, q store.ProductQuery) ([]domain.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&domain.Product{})
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.Q != "" {
		query = query.Where("name ILIKE ?", "%"+q.Q+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count products")
	}

	rows := make([]domain.Product, 0)
	query = query.Order("name ASC, id ASC").Offset(q.Offset())
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, translate(err, "list products")
	}
	return rows, total, nil
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	rows := make([]domain.Product, 0)
	err := s.db.WithContext(ctx).
		Where("stock <= min_stock").
		Order("name ASC, id ASC").
		Find(&rows).Error
	return rows, translate(err, "list low stock")
}

func (s *Store) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.WithContext(ctx).Model(&domain.Product{}).
		Select("COALESCE(SUM(price * stock), 0)").
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "sum inventory value")
	}
	return total, nil
}

func (s *Store) ListTransactions(ctx context.Context, q store.TransactionQuery) ([]domain.Transaction, error) {
	query := s.db.WithContext(ctx).Model(&domain.Transaction{})
	if q.ProductID != "" {
		query = query.Where("product_id = ?", q.ProductID)
	}
	if q.Type != "" {
		query = query.Where("type = ?", q.Type)
	}
	if !q.From.IsZero() {
		query = query.Where("timestamp >= ?", q.From)
	}
	if !q.To.IsZero() {
		query = query.Where("timestamp <= ?", q.To)
	}
	rows := make([]domain.Transaction, 0)
	err := query.Order("timestamp DESC").Find(&rows).Error
	return rows, translate(err, "list transactions")
}

func (s *Store) GetTransactionLog(ctx context.Context, transactionID string) (*domain.TransactionLog, error) {
	var l domain.TransactionLog
	if err := s.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&l).Error; err != nil {
		return nil, translate(err, "get transaction log %s", transactionID)
	}
	return &l, nil
}

func (s *Store) CountLedger(ctx context.Context) (txs int64, logs int64, err error) {
	db := s.db.WithContext(ctx)
	if err = db.Model(&domain.Transaction{}).Count(&txs).Error; err != nil {
		return 0, 0, translate(err, "count transactions")
	}
	if err = db.Model(&domain.TransactionLog{}).Count(&logs).Error; err != nil {
		return 0, 0, translate(err, "count transaction logs")
	}
	return txs, logs, nil
}

func (s *Store) InsertDiscount(ctx context.Context, d *domain.Discount) error {
	return translate(s.db.WithContext(ctx).Create(d).Error, "discount %s", d.Name)
}

func (s *Store) InsertCustomer(ctx context.Context, c *domain.Customer) error {
	return translate(s.db.WithContext(ctx).Create(c).Error, "customer %s", c.ID)
}

func (s *Store) InsertSupplier(ctx context.Context, sp *domain.Supplier) error {
	return translate(s.db.WithContext(ctx).Create(sp).Error, "supplier %s", sp.ID)
}
