package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"storefront/internal/builder"
	"storefront/internal/domain"
	"storefront/internal/layout"
)

var ErrPageNotOpen = errors.New("page is not open in an editor")

// ─────────────────────────────────────────────────────────────
// Layout Service: pages, editing sessions and persistence
// ─────────────────────────────────────────────────────────────

type LayoutOptions struct {
	Engine        *layout.Engine
	BackfillDelay time.Duration
	DragGrace     time.Duration
	HistoryLimit  int
	Logger        *log.Logger
}

// LayoutChange is the payload of EventLayoutChanged.
type LayoutChange struct {
	PageID string `json:"pageId"`
	Reason string `json:"reason"`
	Blocks int    `json:"blocks"`
}

// SelectionChange is the payload of EventSelection. Block is nil when the
// selection was cleared.
type SelectionChange struct {
	PageID string              `json:"pageId"`
	Block  *domain.LayoutEntry `json:"block"`
}

// LayoutService owns one builder.Editor per open page and persists every
// layout the editors report. Pages that are not open are read straight
// from the store.
type LayoutService struct {
	pages     domain.PageStore
	revisions domain.RevisionStore // optional
	emitter   EventEmitter
	opts      LayoutOptions
	logger    *log.Logger

	mu      sync.Mutex
	editors map[string]*builder.Editor
	loading map[string]struct{}
	opening singleflight.Group
	writer  *layoutWriter

	// background rewrites of closed pages, see claimClosed
	pageJobs jobGuard
}

// NewLayoutService creates a LayoutService. revisions may be nil to
// disable history.
func NewLayoutService(
	pages domain.PageStore,
	revisions domain.RevisionStore,
	emitter EventEmitter,
	opts LayoutOptions,
) *LayoutService {
	if opts.Engine == nil {
		opts.Engine = layout.NewEngine()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if emitter == nil {
		emitter = LogEmitter{Logger: opts.Logger}
	}
	s := &LayoutService{
		pages:     pages,
		revisions: revisions,
		emitter:   emitter,
		opts:      opts,
		logger:    opts.Logger,
		editors:   make(map[string]*builder.Editor),
		loading:   make(map[string]struct{}),
	}
	s.writer = newLayoutWriter(s.persist, opts.Logger)
	return s
}

// Start runs the persistence writer until ctx is done or Shutdown.
func (s *LayoutService) Start(ctx context.Context) {
	s.writer.Start(ctx)
}

// Flush waits for every queued layout write.
func (s *LayoutService) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

// Shutdown closes all editors and drains the writer.
func (s *LayoutService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	editors := s.editors
	s.editors = make(map[string]*builder.Editor)
	s.mu.Unlock()

	for _, ed := range editors {
		ed.Close()
	}
	s.writer.Stop(ctx)
}

// ── Pages ──────────────────────────────────────────────────

func (s *LayoutService) CreatePage(ctx context.Context, name string) (*domain.Page, error) {
	if name == "" {
		name = "Untitled page"
	}
	p := &domain.Page{
		ID:     uuid.NewString(),
		Name:   name,
		Layout: json.RawMessage("{}"),
	}
	if err := s.pages.CreatePage(ctx, p); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return p, nil
}

func (s *LayoutService) ListPages(ctx context.Context) ([]domain.Page, error) {
	return s.pages.ListPages(ctx)
}

func (s *LayoutService) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	return s.pages.GetPage(ctx, id)
}

func (s *LayoutService) RenamePage(ctx context.Context, id, name string) error {
	return s.pages.RenamePage(ctx, id, name)
}

// DeletePage closes the page's editor, drops any queued write and removes
// the page with its history.
func (s *LayoutService) DeletePage(ctx context.Context, id string) error {
	s.Close(id)
	if err := s.writer.Flush(ctx); err != nil {
		s.logger.Warn("flush before delete", "page", id, "err", err)
	}
	if err := s.pages.DeletePage(ctx, id); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	s.writer.Forget(id)
	return nil
}

// ── Sessions ───────────────────────────────────────────────

// Open returns the page's editor, loading it on first use. Concurrent
// opens of the same page share one load.
func (s *LayoutService) Open(ctx context.Context, pageID string) (*builder.Editor, error) {
	if ed, ok := s.editor(pageID); ok {
		return ed, nil
	}
	v, err, _ := s.opening.Do(pageID, func() (any, error) {
		if ed, ok := s.editor(pageID); ok {
			return ed, nil
		}
		if err := s.reserve(ctx, pageID); err != nil {
			return nil, err
		}
		defer s.unreserve(pageID)

		page, err := s.pages.GetPage(ctx, pageID)
		if err != nil {
			return nil, err
		}

		// static ids, so ids handed out by Layout before the page was
		// opened still address the same blocks
		stored := layout.ParseJSON(page.Layout)
		blocks := layout.Decode(stored, layout.IDsFor(layout.Static))
		ed := builder.New(pageID, blocks, s.hooksFor(pageID), builder.Options{
			Engine:        s.opts.Engine,
			BackfillDelay: s.opts.BackfillDelay,
			DragGrace:     s.opts.DragGrace,
			Logger:        s.logger,
		})
		if layout.MapNeedsBackfill(stored) {
			ed.ScheduleBackfill()
		}

		s.mu.Lock()
		s.editors[pageID] = ed
		s.mu.Unlock()
		s.logger.Debug("editor opened", "page", pageID, "blocks", len(blocks))
		return ed, nil
	})
	if err != nil {
		return nil, fmt.Errorf("open page %q: %w", pageID, err)
	}
	return v.(*builder.Editor), nil
}

// reserve marks pageID as loading so no background job claims it, after
// waiting out a job that already holds it.
func (s *LayoutService) reserve(ctx context.Context, pageID string) error {
	for {
		s.mu.Lock()
		if !s.pageJobs.Held(pageID) {
			s.loading[pageID] = struct{}{}
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		if err := s.pageJobs.Wait(ctx, pageID); err != nil {
			return err
		}
	}
}

func (s *LayoutService) unreserve(pageID string) {
	s.mu.Lock()
	delete(s.loading, pageID)
	s.mu.Unlock()
}

// claimClosed reserves a page with no editor for a background rewrite.
// Opening the page waits until release is called. ok is false when the
// page is open, loading or already claimed.
func (s *LayoutService) claimClosed(pageID string) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, open := s.editors[pageID]; open {
		return nil, false
	}
	if _, loading := s.loading[pageID]; loading {
		return nil, false
	}
	if !s.pageJobs.TryLock(pageID) {
		return nil, false
	}
	return func() { s.pageJobs.Unlock(pageID) }, true
}

// Editor returns the open editor for pageID.
func (s *LayoutService) Editor(pageID string) (*builder.Editor, error) {
	ed, ok := s.editor(pageID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", pageID, ErrPageNotOpen)
	}
	return ed, nil
}

func (s *LayoutService) editor(pageID string) (*builder.Editor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ed, ok := s.editors[pageID]
	return ed, ok
}

// Close ends the page's editing session. Queued writes still land.
func (s *LayoutService) Close(pageID string) {
	s.mu.Lock()
	ed, ok := s.editors[pageID]
	delete(s.editors, pageID)
	s.mu.Unlock()
	if ok {
		ed.Close()
	}
}

func (s *LayoutService) IsOpen(pageID string) bool {
	_, ok := s.editor(pageID)
	return ok
}

// OpenPages lists the ids of pages with an editor, sorted.
func (s *LayoutService) OpenPages() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.editors))
	for id := range s.editors {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (s *LayoutService) hooksFor(pageID string) builder.Hooks {
	return builder.Hooks{
		OnLayoutChanged: func(m domain.LayoutMap, reason string, seq uint64) {
			raw, err := json.Marshal(m)
			if err != nil {
				s.logger.Error("encode layout", "page", pageID, "err", err)
				return
			}
			if !s.writer.Enqueue(pageID, raw, reason, seq) {
				return
			}
			s.emitter.Emit(context.Background(), EventLayoutChanged, LayoutChange{
				PageID: pageID,
				Reason: reason,
				Blocks: len(m),
			})
		},
		OnSelectedBlockChanged: func(b domain.Block) {
			change := SelectionChange{PageID: pageID}
			if b != nil {
				entry := layout.Encode([]domain.Block{b})["0"]
				entry.Position = b.Base().Position
				change.Block = &entry
			}
			s.emitter.Emit(context.Background(), EventSelection, change)
		},
		OnBlockDoubleClicked: func(stableID string) {
			s.emitter.Emit(context.Background(), EventDoubleClick, map[string]string{
				"pageId":   pageID,
				"stableId": stableID,
			})
		},
	}
}

// persist is the writer's save function.
func (s *LayoutService) persist(ctx context.Context, pageID string, w pendingWrite) error {
	if err := s.pages.SaveLayout(ctx, pageID, w.layout); err != nil {
		return err
	}
	if s.revisions != nil {
		if _, err := s.revisions.PushRevision(ctx, pageID, w.reason, w.layout, s.opts.HistoryLimit); err != nil {
			s.logger.Warn("push revision", "page", pageID, "err", err)
		}
	}
	s.emitter.Emit(ctx, EventLayoutSaved, map[string]string{"pageId": pageID, "reason": w.reason})
	return nil
}

// ── Reads ──────────────────────────────────────────────────

// Layout returns the page's blocks. An open editor is authoritative;
// otherwise the stored layout is decoded with deterministic ids and no
// session is created.
func (s *LayoutService) Layout(ctx context.Context, pageID string) ([]domain.Block, error) {
	if ed, ok := s.editor(pageID); ok {
		return ed.Blocks(), nil
	}
	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return layout.DecodeJSON(page.Layout, layout.IDsFor(layout.Static)), nil
}

// LayoutMap is Layout in its persisted form.
func (s *LayoutService) LayoutMap(ctx context.Context, pageID string) (domain.LayoutMap, error) {
	blocks, err := s.Layout(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return layout.Encode(blocks), nil
}

// ── Commands ───────────────────────────────────────────────

func (s *LayoutService) Insert(ctx context.Context, pageID string, t domain.BlockType, p *layout.Point, overrides layout.Patch) (layout.Result, error) {
	ed, err := s.Open(ctx, pageID)
	if err != nil {
		return layout.Result{}, err
	}
	return ed.Insert(t, p, overrides)
}

func (s *LayoutService) Delete(ctx context.Context, pageID, blockID string) (layout.Result, error) {
	ed, err := s.Open(ctx, pageID)
	if err != nil {
		return layout.Result{}, err
	}
	return ed.Delete(blockID)
}

func (s *LayoutService) Move(ctx context.Context, pageID, blockID string, dir layout.Direction) (layout.Result, error) {
	ed, err := s.Open(ctx, pageID)
	if err != nil {
		return layout.Result{}, err
	}
	return ed.Move(blockID, dir)
}

func (s *LayoutService) Update(ctx context.Context, pageID, blockID string, patch layout.Patch) (layout.Result, error) {
	ed, err := s.Open(ctx, pageID)
	if err != nil {
		return layout.Result{}, err
	}
	return ed.Update(blockID, patch)
}

func (s *LayoutService) Resize(ctx context.Context, pageID, blockID string, delta int) (layout.Result, error) {
	ed, err := s.Open(ctx, pageID)
	if err != nil {
		return layout.Result{}, err
	}
	return ed.Resize(blockID, delta)
}

func (s *LayoutService) SetHeight(ctx context.Context, pageID, blockID string, px int) (layout.Result, error) {
	ed, err := s.Open(ctx, pageID)
	if err != nil {
		return layout.Result{}, err
	}
	return ed.SetHeight(blockID, px)
}

func (s *LayoutService) Reorder(ctx context.Context, pageID, blockID string, to int) (layout.Result, error) {
	ed, err := s.Open(ctx, pageID)
	if err != nil {
		return layout.Result{}, err
	}
	return ed.Reorder(blockID, to)
}

func (s *LayoutService) Select(ctx context.Context, pageID, blockID string) (domain.Block, error) {
	ed, err := s.Open(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return ed.Select(blockID)
}

func (s *LayoutService) DoubleClick(ctx context.Context, pageID, blockID string) error {
	ed, err := s.Open(ctx, pageID)
	if err != nil {
		return err
	}
	return ed.DoubleClick(blockID)
}

// Drag operations need an editor that is already open; only BeginDrag
// starts a session.

// BeginDrag opens the page's editor if needed and picks up the block.
func (s *LayoutService) BeginDrag(ctx context.Context, pageID, blockID string) (builder.DragView, error) {
	ed, err := s.Open(ctx, pageID)
	if err != nil {
		return builder.DragView{}, err
	}
	if err := ed.StartDrag(blockID); err != nil {
		return builder.DragView{}, err
	}
	return ed.Drag(), nil
}

// Drag returns the drag session of an open page.
func (s *LayoutService) Drag(pageID string) (builder.DragView, error) {
	ed, err := s.Editor(pageID)
	if err != nil {
		return builder.DragView{}, err
	}
	return ed.Drag(), nil
}

func (s *LayoutService) StartDrag(pageID, blockID string) error {
	ed, err := s.Editor(pageID)
	if err != nil {
		return err
	}
	return ed.StartDrag(blockID)
}

func (s *LayoutService) UpdateDrag(pageID string, dest *int) (*layout.Hint, error) {
	ed, err := s.Editor(pageID)
	if err != nil {
		return nil, err
	}
	return ed.UpdateDrag(dest)
}

func (s *LayoutService) EndDrag(pageID string, dest *int) (builder.DropOutcome, error) {
	ed, err := s.Editor(pageID)
	if err != nil {
		return builder.DropCancelled, err
	}
	return ed.EndDrag(dest)
}

// Backfill runs the default backfill immediately and reports whether it
// changed anything.
func (s *LayoutService) Backfill(ctx context.Context, pageID string) (bool, error) {
	ed, err := s.Open(ctx, pageID)
	if err != nil {
		return false, err
	}
	return ed.BackfillNow(), nil
}

// ── History ────────────────────────────────────────────────

func (s *LayoutService) History(ctx context.Context, pageID string) ([]domain.Revision, error) {
	if s.revisions == nil {
		return []domain.Revision{}, nil
	}
	return s.revisions.ListRevisions(ctx, pageID)
}

// Restore makes a past revision the page's current layout. The restore is
// itself recorded as a new revision.
func (s *LayoutService) Restore(ctx context.Context, pageID, revisionID string) ([]domain.Block, error) {
	if s.revisions == nil {
		return nil, errors.New("restore: history is disabled")
	}
	rev, err := s.revisions.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if rev.PageID != pageID {
		return nil, fmt.Errorf("revision %s belongs to page %s, not %s", revisionID, rev.PageID, pageID)
	}
	blocks := layout.DecodeJSON(rev.Layout, layout.IDsFor(layout.Interactive))
	if err := s.replace(ctx, pageID, blocks, "restore "+revisionID); err != nil {
		return nil, err
	}
	return blocks, nil
}

// Import replaces the page's layout with m after strict validation.
func (s *LayoutService) Import(ctx context.Context, pageID string, m domain.LayoutMap) ([]domain.Block, error) {
	if err := layout.Validate(m); err != nil {
		return nil, err
	}
	if _, err := s.pages.GetPage(ctx, pageID); err != nil {
		return nil, err
	}
	blocks := layout.Decode(m, layout.IDsFor(layout.Interactive))
	if err := s.replace(ctx, pageID, blocks, "import"); err != nil {
		return nil, err
	}
	return blocks, nil
}

// replace swaps the page's sequence in its editor, if open, and saves it
// through the writer so it orders after any queued edits.
func (s *LayoutService) replace(ctx context.Context, pageID string, blocks []domain.Block, reason string) error {
	var seq uint64
	if ed, ok := s.editor(pageID); ok {
		seq = ed.Replace(layout.Clone(blocks))
	} else {
		seq = builder.NextSeq()
	}
	raw, err := layout.EncodeJSON(blocks)
	if err != nil {
		return err
	}
	s.writer.Enqueue(pageID, raw, reason, seq)
	if err := s.writer.Flush(ctx); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventLayoutChanged, LayoutChange{PageID: pageID, Reason: reason, Blocks: len(blocks)})
	return nil
}

// ── External changes ───────────────────────────────────────

// ExternalChange reloads an open editor when the stored layout differs
// from what this service last wrote. It reports whether a reload
// happened.
func (s *LayoutService) ExternalChange(ctx context.Context, pageID string) (bool, error) {
	ed, ok := s.editor(pageID)
	if !ok {
		return false, nil
	}
	// our own write is still in flight; the store is about to match us
	if s.writer.Pending(pageID) {
		return false, nil
	}
	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return false, err
	}
	if s.writer.WroteLast(pageID, page.Layout) {
		return false, nil
	}

	blocks := layout.DecodeJSON(page.Layout, layout.IDsFor(layout.Static))
	ed.Replace(blocks)
	s.writer.Forget(pageID)
	s.logger.Info("reloaded after external change", "page", pageID, "blocks", len(blocks))
	s.emitter.Emit(ctx, EventExternalChange, LayoutChange{PageID: pageID, Reason: "external", Blocks: len(blocks)})
	return true, nil
}
