package domain

import "time"

// LowStockEvent is emitted after a committed mutation leaves a product at or
// below its minimum stock.
type LowStockEvent struct {
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	MinStock  int       `json:"min_stock"`
	At        time.Time `json:"at"`
}

func NewLowStockEvent(p *Product) LowStockEvent {
	return LowStockEvent{
		ProductID: p.ID,
		Name:      p.Name,
		Stock:     p.Stock,
		MinStock:  p.MinStock,
		At:        time.Now(),
	}
}
