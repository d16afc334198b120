package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/layout"
	"storefront/internal/service"
	"storefront/internal/storage"
)

const legacyLayout = `{
	"0": {"layoutType": "text", "position": 0, "content": "Hi", "textAlignment": "left"},
	"1": {"layoutType": "grid", "position": 1, "title": "Shop"}
}`

type fixture struct {
	pages     *storage.PageStore
	revisions *storage.RevisionStore
	products  *storage.ProductStore
	emitter   *service.MockEmitter
	svc       *service.LayoutService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "storefront.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		pages:     storage.NewPageStore(db),
		revisions: storage.NewRevisionStore(db),
		products:  storage.NewProductStore(db),
		emitter:   &service.MockEmitter{},
	}
	f.svc = service.NewLayoutService(f.pages, f.revisions, f.emitter, service.LayoutOptions{
		BackfillDelay: 20 * time.Millisecond,
		DragGrace:     10 * time.Millisecond,
	})
	t.Cleanup(func() { f.svc.Shutdown(context.Background()) })
	return f
}

// seedPage stores a page with a raw layout, bypassing the service.
func (f *fixture) seedPage(t *testing.T, id, raw string) {
	t.Helper()
	ctx := context.Background()
	if err := f.pages.CreatePage(ctx, &domain.Page{ID: id, Name: id}); err != nil {
		t.Fatalf("create page: %v", err)
	}
	if raw != "" {
		if err := f.pages.SaveLayout(ctx, id, json.RawMessage(raw)); err != nil {
			t.Fatalf("save layout: %v", err)
		}
	}
}

func (f *fixture) stored(t *testing.T, id string) domain.LayoutMap {
	t.Helper()
	p, err := f.pages.GetPage(context.Background(), id)
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	return layout.ParseJSON(p.Layout)
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ─────────────────────────────────────────────────────────────
// Pages and static reads
// ─────────────────────────────────────────────────────────────

func TestLayoutService_CreatePage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.svc.CreatePage(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == "" || p.Name != "Untitled page" {
		t.Errorf("unexpected page: %+v", p)
	}

	blocks, err := f.svc.Layout(ctx, p.ID)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("expected empty layout, got %d blocks", len(blocks))
	}
	if f.svc.IsOpen(p.ID) {
		t.Error("a static read must not open an editor")
	}
}

func TestLayoutService_StaticReadIsDeterministic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "home", legacyLayout)

	first, err := f.svc.Layout(ctx, "home")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	second, _ := f.svc.Layout(ctx, "home")
	if len(first) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(first))
	}
	for i := range first {
		if first[i].Base().StableID != second[i].Base().StableID {
			t.Errorf("block %d: stable id changed between reads", i)
		}
	}
	// defaults are filled in memory but the store is untouched
	if got := first[1].Base().Spacing; got != domain.SpacingNormal {
		t.Errorf("expected decoded default spacing, got %q", got)
	}
	if f.stored(t, "home")["1"].Spacing != "" {
		t.Error("static read must not write")
	}
}

func TestLayoutService_StaticIDsAddressOpenedPage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "home", legacyLayout)

	read, err := f.svc.Layout(ctx, "home")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	id := read[1].Base().StableID
	if id == "" {
		t.Fatal("expected a synthesized stable id")
	}

	res, err := f.svc.Delete(ctx, "home", id)
	if err != nil {
		t.Fatalf("delete by id from a static read: %v", err)
	}
	if len(res.Blocks) != 1 || res.Blocks[0].Type() != domain.BlockTypeText {
		t.Errorf("expected the grid to be deleted, got %d blocks", len(res.Blocks))
	}
	if got := read[0].Base().StableID; res.Blocks[0].Base().StableID != got {
		t.Errorf("remaining block id = %q, want %q", res.Blocks[0].Base().StableID, got)
	}
}

func TestLayoutService_LayoutOfMissingPage(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Layout(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Commands and persistence
// ─────────────────────────────────────────────────────────────

func TestLayoutService_InsertPersistsAndRecordsHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "home", "")

	res, err := f.svc.Insert(ctx, "home", domain.BlockTypeText, nil, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(res.Blocks) != 1 || !res.Changed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !f.svc.IsOpen("home") {
		t.Error("a command should open the page")
	}
	if err := f.svc.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	m := f.stored(t, "home")
	if len(m) != 1 || m["0"].LayoutType != "text" {
		t.Fatalf("unexpected stored layout: %+v", m)
	}
	if m["0"].StableID != res.Blocks[0].Base().StableID {
		t.Error("stored stable id differs from the editor's")
	}

	revs, err := f.svc.History(ctx, "home")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(revs) != 1 || revs[0].Label != "insert text" {
		t.Errorf("unexpected history: %+v", revs)
	}

	if n := len(f.emitter.Named(service.EventLayoutChanged)); n != 1 {
		t.Errorf("expected 1 %s event, got %d", service.EventLayoutChanged, n)
	}
	if n := len(f.emitter.Named(service.EventLayoutSaved)); n != 1 {
		t.Errorf("expected 1 %s event, got %d", service.EventLayoutSaved, n)
	}
}

func TestLayoutService_MoveAtBoundaryIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "home", "")

	res, _ := f.svc.Insert(ctx, "home", domain.BlockTypeBanner, nil, nil)
	id := res.Blocks[0].Base().StableID
	f.svc.Flush(ctx)

	res, err := f.svc.Move(ctx, "home", id, layout.Up)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if res.Changed {
		t.Error("moving the first block up should not change anything")
	}
	f.svc.Flush(ctx)
	if revs, _ := f.svc.History(ctx, "home"); len(revs) != 1 {
		t.Errorf("a no-op must not be persisted, got %d revisions", len(revs))
	}
}

func TestLayoutService_UnknownBlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "home", legacyLayout)

	_, err := f.svc.Delete(ctx, "home", "block-9")
	if !errors.Is(err, layout.ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestLayoutService_OpenSchedulesBackfill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.Start(ctx)
	f.seedPage(t, "home", legacyLayout)

	if _, err := f.svc.Open(ctx, "home"); err != nil {
		t.Fatalf("open: %v", err)
	}

	waitFor(t, "backfill to be saved", func() bool {
		return f.stored(t, "home")["1"].Spacing != ""
	})
	m := f.stored(t, "home")
	if m["0"].TextAlignment != "center" {
		t.Errorf("legacy left alignment should be reset, got %q", m["0"].TextAlignment)
	}
	if m["1"].BlockWidth != "contained" {
		t.Errorf("expected default width, got %q", m["1"].BlockWidth)
	}
	if m["0"].StableID == "" || m["1"].StableID == "" {
		t.Error("backfilled layout should carry stable ids")
	}
}

func TestLayoutService_ConcurrentOpenSharesEditor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "home", legacyLayout)

	const n = 8
	editors := make(chan any, n)
	for i := 0; i < n; i++ {
		go func() {
			ed, err := f.svc.Open(ctx, "home")
			if err != nil {
				editors <- err
				return
			}
			editors <- ed
		}()
	}
	first := <-editors
	for i := 1; i < n; i++ {
		if got := <-editors; got != first {
			t.Fatalf("expected one shared editor, got %v and %v", first, got)
		}
	}
	if pages := f.svc.OpenPages(); len(pages) != 1 || pages[0] != "home" {
		t.Errorf("unexpected open pages: %v", pages)
	}
}

func TestLayoutService_DragNeedsOpenEditor(t *testing.T) {
	f := newFixture(t)
	f.seedPage(t, "home", legacyLayout)

	err := f.svc.StartDrag("home", "block-0")
	if !errors.Is(err, service.ErrPageNotOpen) {
		t.Fatalf("expected ErrPageNotOpen, got %v", err)
	}
}

func TestLayoutService_SelectionEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "home", legacyLayout)

	if _, err := f.svc.Select(ctx, "home", "block-1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := f.svc.DoubleClick(ctx, "home", "block-0"); err != nil {
		t.Fatalf("double click: %v", err)
	}

	sel := f.emitter.Named(service.EventSelection)
	if len(sel) != 2 {
		t.Fatalf("expected 2 selection events, got %d", len(sel))
	}
	change := sel[0].Data.(service.SelectionChange)
	if change.Block == nil || change.Block.LayoutType != "grid" || change.Block.Position != 1 {
		t.Errorf("unexpected selection payload: %+v", change.Block)
	}
	if n := len(f.emitter.Named(service.EventDoubleClick)); n != 1 {
		t.Errorf("expected 1 double-click event, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────
// History, import and external changes
// ─────────────────────────────────────────────────────────────

func TestLayoutService_Restore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "home", "")

	f.svc.Insert(ctx, "home", domain.BlockTypeText, nil, nil)
	f.svc.Flush(ctx)
	f.svc.Insert(ctx, "home", domain.BlockTypeGrid, nil, nil)
	f.svc.Flush(ctx)

	revs, _ := f.svc.History(ctx, "home")
	if len(revs) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(revs))
	}

	blocks, err := f.svc.Restore(ctx, "home", revs[0].ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block after restore, got %d", len(blocks))
	}
	ed, _ := f.svc.Editor("home")
	if got := len(ed.Blocks()); got != 1 {
		t.Errorf("open editor should see the restored layout, got %d blocks", got)
	}
	if len(f.stored(t, "home")) != 1 {
		t.Error("restore should be persisted")
	}
	revs, _ = f.svc.History(ctx, "home")
	if len(revs) != 3 || !strings.HasPrefix(revs[2].Label, "restore ") {
		t.Errorf("restore should be recorded, got %+v", revs)
	}
}

func TestLayoutService_RestoreForeignRevision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "a", "")
	f.seedPage(t, "b", "")

	f.svc.Insert(ctx, "a", domain.BlockTypeText, nil, nil)
	f.svc.Flush(ctx)
	revs, _ := f.svc.History(ctx, "a")

	if _, err := f.svc.Restore(ctx, "b", revs[0].ID); err == nil {
		t.Fatal("expected error restoring another page's revision")
	}
}

func TestLayoutService_ImportValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "home", "")

	gap := domain.LayoutMap{"1": {LayoutType: "text", Position: 1}}
	_, err := f.svc.Import(ctx, "home", gap)
	if !errors.Is(err, layout.ErrInvalidLayout) {
		t.Fatalf("expected ErrInvalidLayout, got %v", err)
	}

	ok := domain.LayoutMap{
		"0": {LayoutType: "banner", Position: 0, Title: "Hello"},
		"1": {LayoutType: "list", Position: 1},
	}
	blocks, err := f.svc.Import(ctx, "home", ok)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if m := f.stored(t, "home"); m["0"].Title != "Hello" || m["1"].LayoutType != "list" {
		t.Errorf("unexpected stored layout: %+v", m)
	}
}

func TestLayoutService_ExternalChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "home", "")

	f.svc.Insert(ctx, "home", domain.BlockTypeText, nil, nil)
	f.svc.Flush(ctx)

	reloaded, err := f.svc.ExternalChange(ctx, "home")
	if err != nil {
		t.Fatalf("external change: %v", err)
	}
	if reloaded {
		t.Error("our own write must not trigger a reload")
	}

	if err := f.pages.SaveLayout(ctx, "home", json.RawMessage(legacyLayout)); err != nil {
		t.Fatalf("save: %v", err)
	}
	reloaded, err = f.svc.ExternalChange(ctx, "home")
	if err != nil {
		t.Fatalf("external change: %v", err)
	}
	if !reloaded {
		t.Fatal("expected a reload after a foreign write")
	}
	ed, _ := f.svc.Editor("home")
	if got := len(ed.Blocks()); got != 2 {
		t.Errorf("expected reloaded editor with 2 blocks, got %d", got)
	}
	if n := len(f.emitter.Named(service.EventExternalChange)); n != 1 {
		t.Errorf("expected 1 external-change event, got %d", n)
	}
}

func TestLayoutService_DeletePage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPage(t, "home", legacyLayout)

	if _, err := f.svc.Open(ctx, "home"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.svc.DeletePage(ctx, "home"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if f.svc.IsOpen("home") {
		t.Error("deleting a page should close its editor")
	}
	if _, err := f.svc.GetPage(ctx, "home"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
