package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stockledger/stockledger/config"
	"github.com/stockledger/stockledger/internal/adminapi"
	"github.com/stockledger/stockledger/internal/app"
	"github.com/stockledger/stockledger/internal/webserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	conffile = flag.String("c", "", "config yaml file")
	initdb   = flag.Bool("initdb", false, "load the sample data set and exit")
	seed     = flag.Bool("seed", false, "load the sample data set on startup")
	h        = flag.Bool("h", false, "help usage")
)

func main() {
	flag.Parse()
	if *h {
		flag.Usage()
		return
	}

	cfg, err := config.LoadConfig(*conffile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *seed || *initdb {
		cfg.Inventory.Seed = true
	}

	application := app.NewApplication(cfg)
	if err := application.Init(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer application.Release()

	if *initdb {
		zap.L().Info("database initialized")
		return
	}

	webserver.Init(cfg)
	adminapi.Init(application)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webserver.Listen(cfg)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return webserver.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("admin api stopped", zap.Error(err))
	}
}
