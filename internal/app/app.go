package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/layout"
	"storefront/internal/service"
	"storefront/internal/storage"
)

// App wires storage, services and background workers from a Config.
// Each front end (CLI, HTTP, MCP) builds one and talks to its services.
type App struct {
	cfg    *config.Config
	logger *log.Logger

	Layouts *service.LayoutService
	Sweep   *service.SweepService
	Catalog *service.CatalogService
	Watcher *service.PageWatcher

	mu      sync.Mutex
	closers []func(context.Context) error
	started bool
}

type stores struct {
	pages     domain.PageStore
	revisions domain.RevisionStore
	products  domain.ProductStore
	dbPath    string
}

// New opens the configured store and builds the services. Nothing runs in
// the background until StartBackground.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	a := &App{cfg: cfg, logger: logger}

	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	emitter := a.emitter(ctx)

	a.Layouts = service.NewLayoutService(st.pages, st.revisions, emitter, service.LayoutOptions{
		Engine:        layout.NewEngine(),
		BackfillDelay: cfg.Builder.BackfillDelay,
		DragGrace:     cfg.Builder.DragGrace,
		HistoryLimit:  cfg.Builder.HistoryLimit,
		Logger:        logger.WithPrefix("layout"),
	})
	a.Sweep = service.NewSweepService(st.pages, st.revisions, a.Layouts, emitter, service.SweepOptions{
		Concurrency:  cfg.Sweep.Concurrency,
		HistoryLimit: cfg.Builder.HistoryLimit,
		Logger:       logger.WithPrefix("sweep"),
	})
	a.Catalog = service.NewCatalogService(st.products)
	a.Watcher = service.NewPageWatcher(st.pages, a.Layouts, st.dbPath, cfg.Watch.Interval, logger.WithPrefix("watch"))

	return a, nil
}

func (a *App) openStores(ctx context.Context) (*stores, error) {
	dbCfg := a.cfg.Database
	if dbCfg.Driver == "mongodb" {
		m, err := storage.OpenMongo(ctx, dbCfg.DSN, dbCfg.Name)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, m.Close)
		a.logger.Debug("opened store", "driver", dbCfg.Driver, "database", dbCfg.Name)
		return &stores{pages: m, revisions: m, products: m}, nil
	}

	db, err := storage.Open(dbCfg.Driver, dbCfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })
	a.logger.Debug("opened store", "driver", db.Driver(), "path", db.Path())
	return &stores{
		pages:     storage.NewPageStore(db),
		revisions: storage.NewRevisionStore(db),
		products:  storage.NewProductStore(db),
		dbPath:    db.Path(),
	}, nil
}

// emitter logs every event and, when redis.addr is set, also publishes it.
// An unreachable Redis is reported and skipped.
func (a *App) emitter(ctx context.Context) service.EventEmitter {
	logEmitter := service.LogEmitter{Logger: a.logger.WithPrefix("event")}
	rc := a.cfg.Redis
	if rc.Addr == "" {
		return logEmitter
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Warn("redis unavailable, events stay local", "addr", rc.Addr, "err", err)
		client.Close()
		return logEmitter
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return service.Fanout{logEmitter, service.NewRedisEmitter(client, rc.Channel, a.logger.WithPrefix("redis"))}
}

// StartBackground starts the persistence writer, the page watcher and the
// scheduled sweep.
func (a *App) StartBackground(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	a.Layouts.Start(ctx)
	a.Watcher.Start(ctx)
	if err := a.Sweep.Start(ctx, a.cfg.Sweep.Schedule); err != nil {
		return err
	}
	a.started = true
	return nil
}

// Close stops background work, flushes pending layout writes and closes
// the store. It is safe to call without StartBackground.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		a.Sweep.Stop(ctx)
		a.Watcher.Stop()
	}
	a.Layouts.Shutdown(ctx)

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
