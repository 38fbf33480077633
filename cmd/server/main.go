package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/vanshika/debtbook/internal/app"
	"github.com/vanshika/debtbook/internal/config"
	"github.com/vanshika/debtbook/internal/logging"
	"github.com/vanshika/debtbook/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	checks := server.Checks{"ledger": a.Ledger}
	if a.Graph != nil {
		checks["graph"] = server.GraphHealthService{Client: a.Graph}
	}

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           checks,
		API:              server.NewAPIHandlers(logger, a.Service, int32(cfg.Ledger.MinorDigits)),
		AllowedOrigins:   cfg.HTTP.AllowedOrigins(),
		AllowCredentials: true,
	})
	srv := server.New(logger, cfg.HTTP, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if cfg.Scheduler.Enabled {
		g.Go(func() error { return a.Scheduler.Run(gctx) })
	}

	exitCode := 0
	if err := g.Wait(); err != nil {
		logger.Error("server stopped unexpectedly", "error", err)
		exitCode = 1
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		logger.Warn("closing resources failed", "error", err)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
