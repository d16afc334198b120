package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"storefront/internal/domain"
	"storefront/internal/layout"
)

var ErrSweepRunning = errors.New("a backfill sweep is already running")

// errEditorOwns marks a page skipped because an open editor owns it.
var errEditorOwns = errors.New("page is open in an editor")

const sweepJobID = "backfill-sweep"

// ─────────────────────────────────────────────────────────────
// Sweep Service: scheduled backfill of stored layouts
// ─────────────────────────────────────────────────────────────

type SweepOptions struct {
	Concurrency  int
	HistoryLimit int
	Logger       *log.Logger
}

// SweepReport summarises one pass.
type SweepReport struct {
	Scanned    int `json:"scanned"`
	Backfilled int `json:"backfilled"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// SweepService rewrites stored layouts that are missing defaults, so pages
// nobody opens still converge. Pages with an open editor are left to it.
type SweepService struct {
	pages     domain.PageStore
	revisions domain.RevisionStore
	layouts   *LayoutService
	emitter   EventEmitter
	opts      SweepOptions
	logger    *log.Logger

	runningJobs jobGuard

	mu        sync.Mutex
	scheduler *cron.Cron
}

// NewSweepService creates a SweepService. layouts and revisions may be nil.
func NewSweepService(
	pages domain.PageStore,
	revisions domain.RevisionStore,
	layouts *LayoutService,
	emitter EventEmitter,
	opts SweepOptions,
) *SweepService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if emitter == nil {
		emitter = LogEmitter{Logger: opts.Logger}
	}
	return &SweepService{
		pages:     pages,
		revisions: revisions,
		layouts:   layouts,
		emitter:   emitter,
		opts:      opts,
		logger:    opts.Logger.With("job", sweepJobID),
	}
}

// RunOnce backfills every stored page that needs it. Individual page
// failures are counted, not returned.
func (s *SweepService) RunOnce(ctx context.Context) (SweepReport, error) {
	if !s.runningJobs.TryLock(sweepJobID) {
		return SweepReport{}, ErrSweepRunning
	}
	defer s.runningJobs.Unlock(sweepJobID)

	pages, err := s.pages.ListPages(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list pages: %w", err)
	}

	var backfilled, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, p := range pages {
		id := p.ID
		g.Go(func() error {
			changed, err := s.sweepPage(gctx, id)
			switch {
			case errors.Is(err, errEditorOwns):
				skipped.Add(1)
			case err != nil:
				failed.Add(1)
				s.logger.Warn("backfill page", "page", id, "err", err)
			case changed:
				backfilled.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	report := SweepReport{
		Scanned:    len(pages),
		Backfilled: int(backfilled.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	s.logger.Info("sweep finished", "scanned", report.Scanned, "backfilled", report.Backfilled,
		"skipped", report.Skipped, "failed", report.Failed)
	s.emitter.Emit(ctx, EventSweepFinished, report)
	return report, ctx.Err()
}

func (s *SweepService) sweepPage(ctx context.Context, pageID string) (bool, error) {
	if s.layouts != nil {
		release, ok := s.layouts.claimClosed(pageID)
		if !ok {
			return false, errEditorOwns
		}
		defer release()
	}

	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return false, err
	}
	stored := layout.ParseJSON(page.Layout)
	if !layout.MapNeedsBackfill(stored) {
		return false, nil
	}

	blocks, _ := layout.Backfill(layout.Decode(stored, layout.IDsFor(layout.Interactive)))
	raw, err := layout.EncodeJSON(blocks)
	if err != nil {
		return false, err
	}
	if err := s.pages.SaveLayout(ctx, pageID, raw); err != nil {
		return false, err
	}
	if s.revisions != nil {
		if _, err := s.revisions.PushRevision(ctx, pageID, "backfill sweep", raw, s.opts.HistoryLimit); err != nil {
			s.logger.Warn("push revision", "page", pageID, "err", err)
		}
	}
	s.logger.Debug("backfill applied", "page", pageID, "blocks", len(blocks))
	return true, nil
}

// ── Schedule ───────────────────────────────────────────────

// Start runs RunOnce on a cron schedule ("@every 1h", "0 3 * * *").
// An empty schedule disables the sweep.
func (s *SweepService) Start(ctx context.Context, schedule string) error {
	s.Stop(ctx)
	if schedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrSweepRunning) {
			s.logger.Error("sweep", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()

	s.mu.Lock()
	s.scheduler = c
	s.mu.Unlock()
	s.logger.Info("sweep scheduled", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running pass or ctx.
func (s *SweepService) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()

	if c != nil {
		c.Stop()
	}
	s.runningJobs.WaitAll(ctx)
}
