package app

import (
	"context"
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/stockledger/stockledger/config"
	"github.com/stockledger/stockledger/internal/inventory"
	"github.com/stockledger/stockledger/internal/store"
	"github.com/stockledger/stockledger/internal/store/boltstore"
	"github.com/stockledger/stockledger/internal/store/gormstore"
	"github.com/stockledger/stockledger/internal/store/memstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Application struct {
	appConfig *config.AppConfig
	store     store.Store
	notifier  *inventory.Notifier
	engine    *inventory.Engine
	catalog   *inventory.Catalog
	reports   *inventory.Reports
	node      *snowflake.Node
	sched     *cron.Cron
}

// Ensure Application implements all interfaces
var (
	_ StoreProvider     = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ InventoryProvider = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) Store() store.Store {
	return a.store
}

func (a *Application) Engine() *inventory.Engine {
	return a.engine
}

func (a *Application) Catalog() *inventory.Catalog {
	return a.catalog
}

func (a *Application) Reports() *inventory.Reports {
	return a.reports
}

func (a *Application) Notifier() *inventory.Notifier {
	return a.notifier
}

// OverrideStore wires the application services on top of s (used in tests).
func (a *Application) OverrideStore(s store.Store) error {
	a.store = s
	return a.wire()
}

func initLogger(cfg *config.AppConfig) *zap.Logger {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	if !cfg.Logger.FileEnable {
		logger, err := zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
		return logger
	}

	lumberJackLogger := &lumberjack.Logger{
		Filename:   cfg.Logger.Filename,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
		Compress:   false,
	}
	core := zapcore.NewTee(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(lumberJackLogger),
			zapConfig.Level,
		),
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(os.Stdout),
			zapConfig.Level,
		),
	)
	return zap.New(core, zap.AddCaller())
}

func openStore(cfg *config.AppConfig) (store.Store, error) {
	switch cfg.Database.Type {
	case "postgres":
		return gormstore.Open(cfg.Database)
	case "bolt":
		return boltstore.Open(cfg.BoltPath())
	case "memory":
		return memstore.New(), nil
	default:
		return nil, errors.Errorf("unsupported database type %q", cfg.Database.Type)
	}
}

func (a *Application) Init(cfg *config.AppConfig) error {
	a.appConfig = cfg
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	if err := cfg.InitDirs(); err != nil {
		return err
	}
	zap.ReplaceGlobals(initLogger(cfg))

	a.store, err = openStore(cfg)
	if err != nil {
		return err
	}
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(cfg.Database.Debug); err != nil {
		return err
	}
	if err := a.wire(); err != nil {
		return err
	}

	if cfg.Inventory.Seed {
		if err := a.SeedData(context.Background()); err != nil {
			zap.L().Error("seed data failed", zap.Error(err))
		}
	}

	a.initJob()
	return nil
}

// wire builds the inventory services around the opened store.
func (a *Application) wire() error {
	cfg := a.appConfig
	if a.notifier != nil {
		a.notifier.Release()
	}
	notifier, err := inventory.NewNotifier(cfg.Inventory.NotifyWorkers)
	if err != nil {
		return err
	}
	if err := notifier.Subscribe(inventory.LogLowStock); err != nil {
		notifier.Release()
		return errors.Wrap(err, "subscribe low stock logger")
	}
	node, err := snowflake.NewNode(cfg.Inventory.Node)
	if err != nil {
		notifier.Release()
		return errors.Wrap(err, "create snowflake node")
	}

	a.notifier = notifier
	a.node = node
	a.engine = inventory.NewEngine(a.store, notifier, node)
	a.catalog = inventory.NewCatalog(a.store)
	a.reports = inventory.NewReports(a.store, cfg.Inventory.PageSize, cfg.Inventory.MaxPageSize)
	return nil
}

// MigrateDB creates the relational schema. Non-SQL backends need no migration.
func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			if err2, ok := err1.(error); ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	gs, ok := a.store.(*gormstore.Store)
	if !ok {
		return nil
	}
	return gs.Migrate(track)
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.notifier != nil {
		a.notifier.Release()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			zap.L().Error("close store", zap.Error(err))
		}
	}
	_ = zap.L().Sync()
}
