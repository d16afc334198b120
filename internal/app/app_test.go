package app_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir: dir,
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(dir, "storefront.db"),
		},
		Builder: config.BuilderConfig{
			BackfillDelay: 20 * time.Millisecond,
			DragGrace:     10 * time.Millisecond,
			HistoryLimit:  5,
		},
		Sweep: config.SweepConfig{Concurrency: 2},
		Watch: config.WatchConfig{Interval: 50 * time.Millisecond},
	}
}

func TestApp_PersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := a.StartBackground(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	page, err := a.Layouts.CreatePage(ctx, "Home")
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	if _, err := a.Layouts.Insert(ctx, page.ID, domain.BlockTypeBanner, nil, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := app.New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close(ctx)

	blocks, err := b.Layouts.Layout(ctx, page.ID)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Type() != domain.BlockTypeBanner {
		t.Fatalf("expected the banner to survive a restart, got %d blocks", len(blocks))
	}
}

func TestApp_SweepRunsWithoutSchedule(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close(ctx)
	if err := a.StartBackground(ctx); err != nil {
		t.Fatalf("start with empty schedule: %v", err)
	}

	report, err := a.Sweep.RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Scanned != 0 {
		t.Errorf("expected an empty store, scanned %d", report.Scanned)
	}
}

func TestApp_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"
	if _, err := app.New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
}

func TestApp_SeesForeignStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	// another process created the page directly in the database
	db, err := storage.Open("sqlite", cfg.Database.DSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = storage.NewPageStore(db).CreatePage(ctx, &domain.Page{ID: "shared", Name: "Shared"})
	db.Close()
	if err != nil {
		t.Fatalf("create page: %v", err)
	}

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close(ctx)
	if _, err := a.Layouts.GetPage(ctx, "shared"); err != nil {
		t.Errorf("expected the shared page, got %v", err)
	}
}
