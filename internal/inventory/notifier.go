package inventory

import (
	"github.com/asaskevich/EventBus"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/stockledger/stockledger/internal/domain"
	"go.uber.org/zap"
)

const TopicLowStock = "inventory:low_stock"

// LowStockSubscriber receives low-stock events. Subscribers run on the
// notifier's worker pool, never on the caller of the mutation.
type LowStockSubscriber func(evt domain.LowStockEvent)

// LowStockPublisher is what the engine needs from a notifier.
type LowStockPublisher interface {
	PublishLowStock(evt domain.LowStockEvent)
}

// Notifier fans low-stock events out to subscribers through an EventBus,
// dispatching each publish on a bounded non-blocking ants pool. When the pool
// is saturated the event is dropped and logged.
type Notifier struct {
	bus  EventBus.Bus
	pool *ants.Pool
}

var _ LowStockPublisher = (*Notifier)(nil)

func NewNotifier(workers int) (*Notifier, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			zap.L().Error("low stock subscriber panic",
				zap.Any("panic", p),
				zap.String("namespace", "inventory"))
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create notifier pool")
	}
	return &Notifier{bus: EventBus.New(), pool: pool}, nil
}

func (n *Notifier) Subscribe(fn LowStockSubscriber) error {
	return n.bus.Subscribe(TopicLowStock, fn)
}

func (n *Notifier) PublishLowStock(evt domain.LowStockEvent) {
	err := n.pool.Submit(func() {
		n.bus.Publish(TopicLowStock, evt)
	})
	if err != nil {
		zap.L().Warn("low stock event dropped",
			zap.String("product_id", evt.ProductID),
			zap.Error(err),
			zap.String("namespace", "inventory"))
	}
}

// Release stops the worker pool. Events published afterwards are dropped.
func (n *Notifier) Release() {
	n.pool.Release()
}

// LogLowStock is the default subscriber; it writes an alert line.
func LogLowStock(evt domain.LowStockEvent) {
	zap.L().Warn("LOW STOCK ALERT",
		zap.String("product_id", evt.ProductID),
		zap.String("name", evt.Name),
		zap.Int("stock", evt.Stock),
		zap.Int("min_stock", evt.MinStock),
		zap.String("namespace", "inventory"))
}

type nopPublisher struct{}

func (nopPublisher) PublishLowStock(domain.LowStockEvent) {}
