package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/store"
	"go.uber.org/zap"
)

// TransactionRequest is a stock-changing request. An empty Type means sale.
type TransactionRequest struct {
	ID         string                 `json:"id" mapstructure:"id"`
	ProductID  string                 `json:"productId" mapstructure:"productId"`
	Quantity   int                    `json:"quantity" mapstructure:"quantity"`
	Type       domain.TransactionType `json:"type" mapstructure:"type"`
	CustomerID string                 `json:"customerId" mapstructure:"customerId"`
	SupplierID string                 `json:"supplierId" mapstructure:"supplierId"`
}

// TransactionResult summarises a committed transaction.
type TransactionResult struct {
	TransactionID   string                 `json:"transactionId"`
	ProductID       string                 `json:"productId"`
	Quantity        int                    `json:"quantity"`
	Type            domain.TransactionType `json:"type"`
	DiscountPercent float64                `json:"discountPercent"`
	PriceAtTime     decimal.Decimal        `json:"priceAtTime"`
	DiscountValue   decimal.Decimal        `json:"discountValue"`
	Stock           int                    `json:"stock"`
	LowStock        *domain.LowStockEvent  `json:"lowStock,omitempty"`
}

// Engine applies stock-changing operations. Each operation runs inside one
// store.Atomic unit, which is also the per-product isolation boundary.
type Engine struct {
	store    store.Store
	notifier LowStockPublisher
	node     *snowflake.Node
	now      func() time.Time
}

func NewEngine(s store.Store, notifier LowStockPublisher, node *snowflake.Node) *Engine {
	if notifier == nil {
		notifier = nopPublisher{}
	}
	return &Engine{store: s, notifier: notifier, node: node, now: time.Now}
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

// CreateTransaction validates req, then atomically adjusts stock, records the
// transaction and writes its audit log. A low-stock event is emitted after
// commit if the product ends at or below its minimum.
func (e *Engine) CreateTransaction(ctx context.Context, req TransactionRequest) (*TransactionResult, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ID == "" || req.ProductID == "" || req.Quantity == 0 {
		return nil, domain.NewValidationError("transactionId, productId, quantity required")
	}
	if req.Quantity < 0 {
		return nil, domain.NewValidationError("quantity must be positive integer")
	}
	if req.Type == "" {
		req.Type = domain.TransactionSale
	}
	if !req.Type.Valid() {
		return nil, domain.NewValidationError("type must be sale or purchase")
	}

	var result TransactionResult
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, req.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.NewNotFoundError("product %s not found", req.ProductID)
		}
		if err != nil {
			return err
		}
		if req.Type == domain.TransactionSale && p.Stock < req.Quantity {
			return domain.NewInsufficientStockError("not enough stock for %s: have %d, need %d",
				p.ID, p.Stock, req.Quantity)
		}

		group, err := customerGroup(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		percent, err := NewDiscountResolver(tx).Resolve(ctx, p.Category, group, req.Quantity)
		if err != nil {
			return err
		}

		now := e.now()
		t := &domain.Transaction{
			ID:          req.ID,
			ProductID:   p.ID,
			Quantity:    req.Quantity,
			Type:        req.Type,
			CustomerID:  optional(req.CustomerID),
			SupplierID:  optional(req.SupplierID),
			PriceAtTime: p.Price,
			Discount:    percent,
			Timestamp:   now,
		}
		if err := tx.AdjustStock(ctx, p.ID, req.Type.Delta(req.Quantity)); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		if err := tx.InsertTransactionLog(ctx, &domain.TransactionLog{
			ID:            e.node.Generate().Int64(),
			TransactionID: t.ID,
			Message:       domain.LogMessage(t),
			Timestamp:     now,
		}); err != nil {
			return err
		}

		result = TransactionResult{
			TransactionID:   t.ID,
			ProductID:       t.ProductID,
			Quantity:        t.Quantity,
			Type:            t.Type,
			DiscountPercent: percent,
			PriceAtTime:     t.PriceAtTime,
			DiscountValue:   t.DiscountValue(),
			Stock:           p.Stock + req.Type.Delta(req.Quantity),
		}
		return nil
	})
	if err != nil {
		return nil, e.unitError(err, "transaction %s", req.ID)
	}

	zap.L().Info("transaction committed",
		zap.String("transaction_id", result.TransactionID),
		zap.String("product_id", result.ProductID),
		zap.String("type", string(result.Type)),
		zap.Int("quantity", result.Quantity),
		zap.Float64("discount", result.DiscountPercent),
		zap.String("discount_value", result.DiscountValue.String()),
		zap.String("namespace", "inventory"))

	if p := e.checkLowStock(ctx, result.ProductID); p != nil {
		result.Stock = p.Stock
		if p.IsLowStock() {
			evt := domain.NewLowStockEvent(p)
			result.LowStock = &evt
		}
	}
	return &result, nil
}

// UpdateStock adjusts stock without writing a ledger entry. An empty type
// means purchase. The updated product is returned.
func (e *Engine) UpdateStock(ctx context.Context, productID string, quantity int, typ domain.TransactionType) (*domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.NewValidationError("productId required")
	}
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity must be positive integer")
	}
	if typ == "" {
		typ = domain.TransactionPurchase
	}
	if !typ.Valid() {
		return nil, domain.NewValidationError("type must be sale or purchase")
	}

	var updated domain.Product
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, productID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.NewNotFoundError("product %s not found", productID)
		}
		if err != nil {
			return err
		}
		delta := typ.Delta(quantity)
		if p.Stock+delta < 0 {
			return domain.NewInsufficientStockError("stock cannot go negative for %s: have %d, change %d",
				p.ID, p.Stock, delta)
		}
		if err := tx.AdjustStock(ctx, p.ID, delta); err != nil {
			return err
		}
		updated = *p
		updated.Stock += delta
		return nil
	})
	if err != nil {
		return nil, e.unitError(err, "stock update %s", productID)
	}

	if p := e.checkLowStock(ctx, productID); p != nil {
		return p, nil
	}
	return &updated, nil
}

// checkLowStock re-reads the product after commit and publishes a low-stock
// event when needed. Failures are logged, the committed mutation stands.
func (e *Engine) checkLowStock(ctx context.Context, productID string) *domain.Product {
	p, err := e.store.GetProduct(ctx, productID)
	if err != nil {
		zap.L().Warn("post-commit product reload failed",
			zap.String("product_id", productID),
			zap.Error(err),
			zap.String("namespace", "inventory"))
		return nil
	}
	if p.IsLowStock() {
		e.notifier.PublishLowStock(domain.NewLowStockEvent(p))
	}
	return p
}

// unitError classifies an error returned from an aborted unit of work.
func (e *Engine) unitError(err error, format string, args ...interface{}) error {
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, store.ErrDuplicate):
		return domain.NewConflictError(err, format+" already exists", args...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.NewPersistenceError(err, format+" aborted", args...)
	default:
		zap.L().Error("unit of work failed",
			zap.String("op", fmt.Sprintf(format, args...)),
			zap.Error(err),
			zap.String("namespace", "inventory"))
		return domain.NewPersistenceError(err, format+" failed", args...)
	}
}

func customerGroup(ctx context.Context, tx store.Tx, customerID string) (*string, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return nil, nil
	}
	c, err := tx.GetCustomer(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.GroupType == "" {
		return nil, nil
	}
	return &c.GroupType, nil
}
