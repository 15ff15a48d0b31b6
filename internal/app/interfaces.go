package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/stockledger/stockledger/config"
	"github.com/stockledger/stockledger/internal/inventory"
	"github.com/stockledger/stockledger/internal/store"
)

// StoreProvider provides the catalog and ledger store
type StoreProvider interface {
	Store() store.Store
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// InventoryProvider provides the inventory services
type InventoryProvider interface {
	Engine() *inventory.Engine
	Catalog() *inventory.Catalog
	Reports() *inventory.Reports
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// AppContext combines all provider interfaces for full application context
// Handlers should depend on specific providers or this combined interface
type AppContext interface {
	StoreProvider
	ConfigProvider
	InventoryProvider
	SchedulerProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	SeedData(ctx context.Context) error
	// SweepLowStock runs the low-stock sweep immediately and returns the number of products found
	SweepLowStock() int
}
