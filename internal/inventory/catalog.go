package inventory

import (
	"context"
	"math"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/store"
	"go.uber.org/zap"
)

// ProductInput is a new catalog entry.
type ProductInput struct {
	ID       string          `json:"id" mapstructure:"id"`
	Name     string          `json:"name" mapstructure:"name"`
	Price    decimal.Decimal `json:"price" mapstructure:"price"`
	Stock    int             `json:"stock" mapstructure:"stock"`
	Category string          `json:"category" mapstructure:"category"`
	MinStock int             `json:"min_stock" mapstructure:"min_stock"`
}

// ProductPatch holds the fields supplied to a partial update; nil fields keep
// their stored value.
type ProductPatch struct {
	Name     *string          `mapstructure:"name"`
	Price    *decimal.Decimal `mapstructure:"price"`
	Stock    *int             `mapstructure:"stock"`
	Category *string          `mapstructure:"category"`
	MinStock *int             `mapstructure:"min_stock"`
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func decimalHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != decimalType || from == decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case nil:
		return decimal.Zero, nil
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, err
		}
		return decimal.NewFromFloat(f), nil
	}
}

var errNotInteger = errors.New("must be an integer")

// integerHook keeps weak decoding from truncating into int fields: 1.5,
// "2.5" and booleans are rejected, 2.0 and "12" are accepted.
func integerHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}
	switch v := data.(type) {
	case bool:
		return nil, errNotInteger
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) || v != math.Trunc(v) {
			return nil, errNotInteger
		}
		return int64(v), nil
	case float32:
		f := float64(v)
		if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
			return nil, errNotInteger
		}
		return int64(f), nil
	case string:
		n, err := cast.ToInt64E(strings.TrimSpace(v))
		if err != nil {
			return nil, errNotInteger
		}
		return n, nil
	}
	return data, nil
}

// decodeWeak decodes a loosely typed JSON object, accepting numbers sent as
// strings ("10") and the reverse.
func decodeWeak(raw map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(decimalHook, integerHook),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.NewValidationError("invalid payload: %v", err)
	}
	return nil
}

func DecodeProductInput(raw map[string]interface{}) (ProductInput, error) {
	var in ProductInput
	err := decodeWeak(raw, &in)
	return in, err
}

func DecodeProductPatch(raw map[string]interface{}) (ProductPatch, error) {
	var patch ProductPatch
	err := decodeWeak(raw, &patch)
	return patch, err
}

func DecodeTransactionRequest(raw map[string]interface{}) (TransactionRequest, error) {
	var req TransactionRequest
	err := decodeWeak(raw, &req)
	return req, err
}

func validateProduct(p *domain.Product) error {
	if p.ID == "" || p.Name == "" {
		return domain.NewValidationError("productId and name required")
	}
	if p.Price.IsNegative() || p.Stock < 0 {
		return domain.NewValidationError("price and stock must be non-negative")
	}
	if p.MinStock < 0 {
		return domain.NewValidationError("min_stock must be non-negative")
	}
	return nil
}

// Catalog manages product records on top of the store.
type Catalog struct {
	store store.Store
}

func NewCatalog(s store.Store) *Catalog {
	return &Catalog{store: s}
}

func (c *Catalog) AddProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	p := &domain.Product{
		ID:       strings.TrimSpace(in.ID),
		Name:     strings.TrimSpace(in.Name),
		Price:    in.Price,
		Stock:    in.Stock,
		Category: strings.TrimSpace(in.Category),
		MinStock: in.MinStock,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	err := c.store.InsertProduct(ctx, p)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		zap.L().Warn("duplicate product rejected",
			zap.String("product_id", p.ID),
			zap.String("namespace", "inventory"))
		return nil, domain.NewConflictError(err, "product %s already exists", p.ID)
	case err != nil:
		zap.L().Error("insert product failed",
			zap.String("product_id", p.ID),
			zap.Error(err),
			zap.String("namespace", "inventory"))
		return nil, domain.NewPersistenceError(err, "add product %s failed", p.ID)
	}
	return p, nil
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := c.store.GetProduct(ctx, strings.TrimSpace(id))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, domain.NewNotFoundError("product %s not found", id)
	case err != nil:
		return nil, domain.NewPersistenceError(err, "get product %s failed", id)
	}
	return p, nil
}

// UpdateProduct merges patch over the stored record. It runs as one unit of
// work so it cannot interleave with a stock mutation of the same product.
func (c *Catalog) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	var updated *domain.Product
	err := c.store.Atomic(ctx, func(tx store.Tx) error {
		p, err := tx.GetProduct(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return domain.NewNotFoundError("product %s not found", id)
		}
		if err != nil {
			return err
		}
		if patch.Name != nil {
			p.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		if patch.Stock != nil {
			p.Stock = *patch.Stock
		}
		if patch.Category != nil {
			p.Category = strings.TrimSpace(*patch.Category)
		}
		if patch.MinStock != nil {
			p.MinStock = *patch.MinStock
		}
		if err := validateProduct(p); err != nil {
			return err
		}
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.NewPersistenceError(err, "update product %s failed", id)
	}
	return updated, nil
}

// AdjustStock applies a raw delta with no ledger entry and no validation of
// the resulting level. Callers check the result first.
func (c *Catalog) AdjustStock(ctx context.Context, id string, delta int) error {
	err := c.store.AdjustStock(ctx, id, delta)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.NewNotFoundError("product %s not found", id)
	case err != nil:
		return domain.NewPersistenceError(err, "adjust stock %s failed", id)
	}
	return nil
}
