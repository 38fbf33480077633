// Package app assembles the ledger, its stores and the scheduler from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vanshika/debtbook/internal/config"
	"github.com/vanshika/debtbook/internal/graph"
	"github.com/vanshika/debtbook/internal/identity"
	"github.com/vanshika/debtbook/internal/ledger"
	"github.com/vanshika/debtbook/internal/notify"
	"github.com/vanshika/debtbook/internal/scheduler"
	"github.com/vanshika/debtbook/internal/service"
	"github.com/vanshika/debtbook/internal/store/memory"
	"github.com/vanshika/debtbook/internal/store/postgres"
	"github.com/vanshika/debtbook/internal/store/sqlite"
	"github.com/vanshika/debtbook/internal/trust"
)

// backingStore is what the postgres and memory stores have in common.
type backingStore interface {
	ledger.Store
	identity.UserStore
	trust.Store
	scheduler.Watermarks
}

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config    config.Config
	Ledger    *ledger.Ledger
	Directory *identity.Directory
	Service   *service.DebtService
	Scheduler *scheduler.Scheduler
	Notifier  *notify.Async
	// Graph and TrustGraph are nil unless the trust backend is graph.
	Graph      graph.Client
	TrustGraph *trust.GraphStore
	// Pool is nil when the in-memory store is used.
	Pool *pgxpool.Pool

	logger  *slog.Logger
	closers []func(ctx context.Context) error
}

// Options overrides parts of the wiring.
type Options struct {
	// Transport replaces the configured notification transport.
	Transport notify.Port
}

// New connects the configured backends and builds every component.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	if err := a.build(ctx, opts); err != nil {
		if cerr := a.Close(context.Background()); cerr != nil {
			logger.Warn("cleanup after failed start", "error", cerr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg := a.Config

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	watermarks, err := a.openWatermarks(store)
	if err != nil {
		return err
	}

	trustStore, err := a.openTrust(ctx, store)
	if err != nil {
		return err
	}

	transport := opts.Transport
	if transport == nil {
		if transport, err = a.openTransport(); err != nil {
			return err
		}
	}
	a.Notifier = notify.NewAsync(transport, a.logger, notify.AsyncOptions{
		Workers: cfg.Telegram.NotifyWorkers,
		Buffer:  cfg.Telegram.NotifyBuffer,
		Timeout: cfg.Telegram.NotifyTimeout,
	})
	a.closers = append(a.closers, a.Notifier.Close)

	parserOpts, err := cfg.ParserOptions()
	if err != nil {
		return err
	}
	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		return err
	}

	a.Ledger = ledger.New(store, a.logger)
	a.Directory = identity.NewDirectory(store, a.logger)
	a.Service = service.NewDebtService(a.Ledger, a.Directory, trustStore, a.Notifier, service.Options{
		Parser:             parserOpts,
		AutoConfirmTrusted: cfg.Ledger.AutoConfirmTrusted,
	}, a.logger)
	a.Scheduler = scheduler.New(a.Ledger, a.Directory, watermarks, a.Notifier, schedCfg, a.logger)
	return nil
}

func (a *App) openStore(ctx context.Context) (backingStore, error) {
	if a.Config.Postgres.URL == "" {
		a.logger.Warn("DATABASE_URL not set, using the in-memory ledger store")
		return memory.New(), nil
	}

	pool, err := postgres.Connect(ctx, a.Config.Postgres.URL)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.closers = append(a.closers, func(context.Context) error {
		pool.Close()
		return nil
	})

	if a.Config.Postgres.MigrateOnStart {
		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			return nil, err
		}
		if len(applied) > 0 {
			a.logger.Info("applied migrations", "migrations", applied)
		}
	}
	return postgres.New(pool), nil
}

func (a *App) openWatermarks(store backingStore) (scheduler.Watermarks, error) {
	switch a.Config.Watermark.Backend {
	case config.BackendSQLite:
		ws, err := sqlite.Open(a.Config.Watermark.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return ws.Close() })
		return ws, nil
	case config.BackendPostgres:
		if a.Pool == nil {
			return nil, errors.New("watermark backend postgres requires DATABASE_URL")
		}
		return store, nil
	case config.BackendMemory:
		return store, nil
	}
	return nil, fmt.Errorf("unknown watermark backend %q", a.Config.Watermark.Backend)
}

func (a *App) openTrust(ctx context.Context, store backingStore) (trust.Store, error) {
	if a.Config.Trust.Backend != config.BackendGraph {
		return store, nil
	}
	g := a.Config.Graph
	client, err := graph.NewNeo4jClient(ctx, graph.Options{
		URI:            g.URI,
		Database:       g.Database,
		Username:       g.Username,
		Password:       g.Password,
		MaxConnections: g.MaxConnections,
	})
	if err != nil {
		return nil, fmt.Errorf("create graph client: %w", err)
	}
	a.Graph = client
	a.closers = append(a.closers, client.Close)
	a.TrustGraph = trust.NewGraphStore(client)
	return a.TrustGraph, nil
}

func (a *App) openTransport() (notify.Port, error) {
	digits := int32(a.Config.Ledger.MinorDigits)
	if a.Config.Telegram.Token == "" {
		a.logger.Info("BOT_TOKEN not set, notifications are logged only")
		return notify.NewLog(a.logger, digits), nil
	}
	bot, err := notify.NewBotAPI(a.Config.Telegram.Token)
	if err != nil {
		return nil, err
	}
	return notify.NewTelegram(bot, a.logger, digits), nil
}

// Close releases resources, draining queued notifications first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
