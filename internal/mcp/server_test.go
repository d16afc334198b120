package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"storefront/internal/builder"
	"storefront/internal/domain"
	"storefront/internal/layout"
	"storefront/internal/service"
	"storefront/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "storefront.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	layouts := service.NewLayoutService(storage.NewPageStore(db), storage.NewRevisionStore(db), &service.MockEmitter{}, service.LayoutOptions{})
	t.Cleanup(func() { layouts.Shutdown(context.Background()) })

	catalog := service.NewCatalogService(storage.NewProductStore(db))
	err = catalog.Seed(context.Background(), []domain.Product{
		{ID: "p1", Name: "Mug", Available: true},
		{ID: "p2", Name: "Tee", Available: true},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return New(Deps{Layouts: layouts, Catalog: catalog})
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(resultText(t, res)), &v); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return v
}

func TestTools_PageFlow(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	if _, err := s.handleListBlocks(ctx, call(nil)); err == nil {
		t.Fatal("expected an error without an active page")
	}

	res, err := s.handleCreatePage(ctx, call(map[string]any{"name": "Home"}))
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	page := decodeResult[domain.Page](t, res)
	if page.ID == "" {
		t.Fatal("expected page id")
	}

	// create_page makes the page active
	res, err = s.handleInsertBlock(ctx, call(map[string]any{"type": "text"}))
	if err != nil {
		t.Fatalf("insert text: %v", err)
	}
	res, err = s.handleInsertBlock(ctx, call(map[string]any{
		"type":   "banner",
		"at":     "start",
		"fields": `{"title": "Hello", "showStoreHeader": true}`,
	}))
	if err != nil {
		t.Fatalf("insert banner: %v", err)
	}
	out := decodeResult[commandResult](t, res)
	if len(out.Blocks) != 2 || out.Blocks[0].Block.LayoutType != "banner" || out.Blocks[0].Block.Title != "Hello" {
		t.Fatalf("unexpected blocks: %+v", out.Blocks)
	}
	if !out.Blocks[0].Block.ShowStoreHeader {
		t.Error("first banner should keep the store header")
	}

	res, err = s.handleMoveBlock(ctx, call(map[string]any{"blockId": "block-0", "direction": "up"}))
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if decodeResult[commandResult](t, res).Changed {
		t.Error("moving the first block up should be a no-op")
	}

	res, err = s.handleReorderBlock(ctx, call(map[string]any{"blockId": "block-0", "to": float64(1)}))
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	out = decodeResult[commandResult](t, res)
	if out.Blocks[1].Block.LayoutType != "banner" || out.Blocks[1].Block.ShowStoreHeader {
		t.Errorf("banner moved off the top must drop the store header: %+v", out.Blocks[1].Block)
	}

	res, err = s.handleListBlocks(ctx, call(map[string]any{"type": "banner"}))
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if got := decodeResult[[]map[string]any](t, res); len(got) != 1 {
		t.Errorf("expected 1 banner, got %d", len(got))
	}
}

func TestTools_RenameAndDeletePage(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	res, err := s.handleCreatePage(ctx, call(map[string]any{"name": "Draft"}))
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	page := decodeResult[domain.Page](t, res)

	if _, err := s.handleRenamePage(ctx, call(map[string]any{"name": "Launch"})); err != nil {
		t.Fatalf("rename: %v", err)
	}
	res, err = s.handleListPages(ctx, call(nil))
	if err != nil {
		t.Fatalf("list pages: %v", err)
	}
	pages := decodeResult[[]domain.Page](t, res)
	if len(pages) != 1 || pages[0].Name != "Launch" {
		t.Fatalf("unexpected pages after rename: %+v", pages)
	}

	if _, err := s.handleDeletePage(ctx, call(map[string]any{"pageId": page.ID})); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.handleListBlocks(ctx, call(nil)); err == nil {
		t.Error("deleting the active page should clear it")
	}
}

func TestTools_DragAndSelect(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	if _, err := s.handleCreatePage(ctx, call(map[string]any{"name": "Home"})); err != nil {
		t.Fatalf("create page: %v", err)
	}
	for _, content := range []string{"A", "B", "C"} {
		if _, err := s.handleInsertBlock(ctx, call(map[string]any{"type": "text", "fields": map[string]any{"content": content}})); err != nil {
			t.Fatalf("insert %s: %v", content, err)
		}
	}

	res, err := s.handleSelectBlock(ctx, call(map[string]any{"blockId": "block-1"}))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel := decodeResult[layout.Summary](t, res); sel.Block.Content != "B" {
		t.Errorf("selected %+v, want B", sel.Block)
	}
	if _, err := s.handleDoubleClickBlock(ctx, call(map[string]any{"blockId": "block-0"})); err != nil {
		t.Fatalf("double click: %v", err)
	}

	if _, err := s.handleStartDrag(ctx, call(map[string]any{"blockId": "block-0"})); err != nil {
		t.Fatalf("start drag: %v", err)
	}
	res, err = s.handleUpdateDrag(ctx, call(map[string]any{"dest": float64(2)}))
	if err != nil {
		t.Fatalf("update drag: %v", err)
	}
	if decodeResult[dragResult](t, res).Hint == nil {
		t.Error("expected a drop hint")
	}
	res, err = s.handleEndDrag(ctx, call(map[string]any{"dest": float64(2)}))
	if err != nil {
		t.Fatalf("end drag: %v", err)
	}
	out := decodeResult[dragResult](t, res)
	if out.Outcome != "committed" || len(out.Blocks) != 3 || out.Blocks[2].Block.Content != "A" {
		t.Errorf("unexpected drop result: %+v", out)
	}

	if _, err := s.handleEndDrag(ctx, call(nil)); !errors.Is(err, builder.ErrNoDrag) {
		t.Errorf("ending without a drag: got %v, want ErrNoDrag", err)
	}
}

func TestTools_UpdateResizeDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.handleCreatePage(ctx, call(map[string]any{"name": "Home"}))
	s.handleInsertBlock(ctx, call(map[string]any{"type": "text"}))
	s.handleInsertBlock(ctx, call(map[string]any{"type": "list"}))

	res, err := s.handleUpdateBlock(ctx, call(map[string]any{
		"blockId": "block-0",
		"fields":  map[string]any{"content": "Fresh", "layoutType": "grid"},
	}))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	out := decodeResult[commandResult](t, res)
	if out.Blocks[0].Block.LayoutType != "text" || out.Blocks[0].Block.Content != "Fresh" {
		t.Errorf("unexpected update result: %+v", out.Blocks[0].Block)
	}

	res, err = s.handleResizeBlock(ctx, call(map[string]any{"blockId": "block-0", "height": float64(50)}))
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if h := decodeResult[commandResult](t, res).Blocks[0].Block.Height; h == nil || *h != 100 {
		t.Errorf("height should clamp to 100, got %v", h)
	}

	if _, err := s.handleResizeBlock(ctx, call(map[string]any{"blockId": "block-1", "delta": float64(20)})); err == nil {
		t.Error("expected list blocks to refuse resizing")
	}
	if _, err := s.handleResizeBlock(ctx, call(map[string]any{"blockId": "block-0"})); err == nil {
		t.Error("expected an error without delta or height")
	}

	res, err = s.handleDeleteBlock(ctx, call(map[string]any{"blockId": "block-0"}))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	out = decodeResult[commandResult](t, res)
	if len(out.Blocks) != 1 || out.Blocks[0].PositionID != "block-0" {
		t.Errorf("remaining block should be re-indexed: %+v", out.Blocks)
	}
}

func TestTools_HistoryAndRestore(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.handleCreatePage(ctx, call(map[string]any{"name": "Home"}))
	s.handleInsertBlock(ctx, call(map[string]any{"type": "grid"}))
	s.layouts.Flush(ctx)
	s.handleInsertBlock(ctx, call(map[string]any{"type": "masonry"}))
	s.layouts.Flush(ctx)

	res, err := s.handleLayoutHistory(ctx, call(nil))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	revs := decodeResult[[]revisionSummary](t, res)
	if len(revs) != 2 || revs[0].Blocks != 1 || revs[1].Blocks != 2 {
		t.Fatalf("unexpected history: %+v", revs)
	}

	res, err = s.handleRestoreRevision(ctx, call(map[string]any{"revisionId": revs[0].ID}))
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if out := decodeResult[commandResult](t, res); len(out.Blocks) != 1 {
		t.Errorf("expected 1 block after restore, got %d", len(out.Blocks))
	}
}

func TestTools_ListProducts(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.handleCreatePage(ctx, call(map[string]any{"name": "Home"}))
	s.handleInsertBlock(ctx, call(map[string]any{"type": "grid", "fields": map[string]any{"productIds": []any{"p2"}}}))

	res, err := s.handleListProducts(ctx, call(nil))
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if got := decodeResult[[]domain.Product](t, res); len(got) != 2 {
		t.Errorf("expected full catalog, got %d", len(got))
	}

	res, err = s.handleListProducts(ctx, call(map[string]any{"blockId": "block-0"}))
	if err != nil {
		t.Fatalf("list products for block: %v", err)
	}
	got := decodeResult[[]domain.Product](t, res)
	if len(got) != 1 || got[0].ID != "p2" {
		t.Errorf("expected the block's explicit product, got %+v", got)
	}
}

func TestResources_PageLayout(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	res, _ := s.handleCreatePage(ctx, call(map[string]any{"name": "Home"}))
	page := decodeResult[domain.Page](t, res)
	s.handleInsertBlock(ctx, call(map[string]any{"type": "featured"}))

	var req mcp.ReadResourceRequest
	req.Params.URI = "storefront://page/" + page.ID + "/layout"
	contents, err := s.handlePageLayoutResource(ctx, req)
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	if !strings.Contains(text, `"layoutType": "featured"`) {
		t.Errorf("layout resource missing block: %s", text)
	}
}

func TestExtractPageIDFromURI(t *testing.T) {
	tests := map[string]string{
		"storefront://page/abc-123/layout": "abc-123",
		"storefront://page//layout":        "",
		"storefront://page/a/b/layout":     "",
		"shop://page/abc/layout":           "",
		"storefront://page/abc":            "",
	}
	for uri, want := range tests {
		if got := extractPageIDFromURI(uri); got != want {
			t.Errorf("extractPageIDFromURI(%q) = %q, want %q", uri, got, want)
		}
	}
}
