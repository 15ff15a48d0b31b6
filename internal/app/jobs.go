package app

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	if loc == nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	spec := a.appConfig.Inventory.LowStockSweep
	if spec != "" {
		_, err := a.sched.AddFunc(spec, func() {
			a.SweepLowStock()
		})
		if err != nil {
			zap.S().Errorf("init job error %s", err.Error())
		}
	}

	a.sched.Start()
}

// SweepLowStock logs a summary of every product at or below its minimum.
// Event-driven alerts only fire on mutations; the sweep also covers products
// that were created or edited below threshold.
func (a *Application) SweepLowStock() int {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	products, err := a.reports.LowStock(ctx)
	if err != nil {
		zap.L().Error("low stock sweep failed", zap.Error(err), zap.String("namespace", "app"))
		return 0
	}
	if len(products) == 0 {
		zap.L().Debug("low stock sweep: all products above minimum", zap.String("namespace", "app"))
		return 0
	}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	zap.L().Warn("low stock sweep",
		zap.Int("count", len(products)),
		zap.String("products", strings.Join(ids, ",")),
		zap.String("namespace", "app"))
	return len(products)
}
