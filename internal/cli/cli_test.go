package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/layout"
	"storefront/internal/storage"
)

type testEnv struct {
	dir    string
	config string
	dbPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		config: filepath.Join(dir, "config.yaml"),
		dbPath: filepath.Join(dir, "storefront.db"),
	}
	cfg := "data_dir: " + dir + "\nsweep:\n  schedule: \"\"\nlog:\n  level: error\n"
	if err := os.WriteFile(env.config, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

// run executes the CLI with args and returns what it printed.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	c := New(&logs, LogInfo, "test")
	root := c.RootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("storefront %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// seedPage stores a page straight into the database.
func (e *testEnv) seedPage(t *testing.T, id, raw string) {
	t.Helper()
	db, err := storage.OpenSQLite(e.dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	pages := storage.NewPageStore(db)
	ctx := context.Background()
	if err := pages.CreatePage(ctx, &domain.Page{ID: id, Name: id, Layout: json.RawMessage(raw)}); err != nil {
		t.Fatalf("create page: %v", err)
	}
}

func (e *testEnv) stored(t *testing.T, id string) []domain.Block {
	t.Helper()
	db, err := storage.OpenSQLite(e.dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	page, err := storage.NewPageStore(db).GetPage(context.Background(), id)
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	return layout.DecodeJSON(page.Layout, layout.IDsFor(layout.Static))
}

func TestPageCreateAndList(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t, "page", "create", "Summer")
	if !strings.Contains(out, "Summer") {
		t.Errorf("create output missing name: %q", out)
	}
	out = env.mustRun(t, "page", "list")
	if !strings.Contains(out, "Summer") {
		t.Errorf("list output missing page: %q", out)
	}
}

func TestBlockCommandsPersist(t *testing.T) {
	env := newTestEnv(t)
	env.seedPage(t, "home", "{}")

	env.mustRun(t, "block", "insert", "home", "text", "--set", "content=Welcome")
	env.mustRun(t, "block", "insert", "home", "grid", "--at", "start", "--fields", `{"title":"Shop","columns":3}`)
	env.mustRun(t, "block", "resize", "home", "block-1", "--height", "50")
	env.mustRun(t, "block", "update", "home", "block-1", "--set", "textAlignment=left")

	blocks := env.stored(t, "home")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	grid, ok := domain.AsGrid(blocks[0])
	if !ok || grid.Title != "Shop" || grid.Columns != 3 {
		t.Errorf("unexpected first block: %+v", blocks[0])
	}
	text, ok := domain.AsText(blocks[1])
	if !ok || text.Content != "Welcome" {
		t.Fatalf("unexpected second block: %+v", blocks[1])
	}
	if text.Height == nil || *text.Height != 100 {
		t.Errorf("height should clamp to 100, got %v", text.Height)
	}
	if text.TextAlignment != domain.AlignLeft || !text.AlignmentSet {
		t.Errorf("explicit left alignment should be kept and marked, got %q set=%v", text.TextAlignment, text.AlignmentSet)
	}

	env.mustRun(t, "block", "reorder", "home", "block-0", "1")
	env.mustRun(t, "block", "delete", "home", "block-0")
	blocks = env.stored(t, "home")
	if len(blocks) != 1 || blocks[0].Type() != domain.BlockTypeGrid {
		t.Errorf("expected only the grid to remain, got %d blocks", len(blocks))
	}
}

func TestBlockCommandErrors(t *testing.T) {
	env := newTestEnv(t)
	env.seedPage(t, "home", `{"0": {"layoutType": "list", "position": 0}}`)

	tests := map[string][]string{
		"unknown type":      {"block", "insert", "home", "carousel"},
		"bad insert point":  {"block", "insert", "home", "text", "--at", "middle"},
		"bad set":           {"block", "update", "home", "block-0", "--set", "novalue"},
		"empty update":      {"block", "update", "home", "block-0"},
		"resize both flags": {"block", "resize", "home", "block-0", "--delta", "1", "--height", "200"},
		"not resizable":     {"block", "resize", "home", "block-0", "--delta", "10"},
		"missing block":     {"block", "delete", "home", "block-7"},
		"bad direction":     {"block", "move", "home", "block-0", "sideways"},
		"bad index":         {"block", "reorder", "home", "block-0", "x"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := env.run(t, args...); err == nil {
				t.Errorf("expected storefront %s to fail", strings.Join(args, " "))
			}
		})
	}
}

func TestLayoutExportImport(t *testing.T) {
	env := newTestEnv(t)
	env.seedPage(t, "home", `{"0": {"layoutType": "banner", "position": 0, "title": "Hello"}}`)
	env.seedPage(t, "copy", "{}")

	file := filepath.Join(env.dir, "home.yaml")
	env.mustRun(t, "layout", "export", "home", file)
	env.mustRun(t, "layout", "import", "copy", file)

	blocks := env.stored(t, "copy")
	if len(blocks) != 1 {
		t.Fatalf("expected 1 imported block, got %d", len(blocks))
	}
	if b, ok := domain.AsBanner(blocks[0]); !ok || b.Title != "Hello" {
		t.Errorf("unexpected imported block: %+v", blocks[0])
	}

	out := env.mustRun(t, "layout", "history", "copy")
	if !strings.Contains(out, "import") {
		t.Errorf("history should list the import: %q", out)
	}
}

func TestLayoutShowFormats(t *testing.T) {
	env := newTestEnv(t)
	env.seedPage(t, "home", `{"0": {"layoutType": "featured", "position": 0, "title": "Pick"}}`)

	out := env.mustRun(t, "layout", "show", "home")
	if !strings.Contains(out, "featured") || !strings.Contains(out, "block-0") {
		t.Errorf("table output missing block: %q", out)
	}
	out = env.mustRun(t, "layout", "show", "home", "--format", "json")
	var m domain.LayoutMap
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("json output: %v\n%s", err, out)
	}
	if m["0"].LayoutType != "featured" {
		t.Errorf("unexpected json output: %+v", m)
	}
	if _, err := env.run(t, "layout", "show", "home", "--format", "xml"); err == nil {
		t.Error("expected an unknown format to fail")
	}
}

func TestSweepCommand(t *testing.T) {
	env := newTestEnv(t)
	env.seedPage(t, "legacy", `{"0": {"layoutType": "text", "position": 0, "textAlignment": "left"}}`)

	out := env.mustRun(t, "sweep")
	if !strings.Contains(out, "backfilled") {
		t.Errorf("sweep output missing report: %q", out)
	}
	blocks := env.stored(t, "legacy")
	if layout.NeedsBackfill(blocks) {
		t.Error("sweep should leave no page needing backfill")
	}
}

func TestProductImportAndList(t *testing.T) {
	env := newTestEnv(t)
	file := filepath.Join(env.dir, "products.json")
	data := `[{"id":"p1","name":"Mug","price":12.5,"available":true},{"id":"p2","name":"Tee","available":false}]`
	if err := os.WriteFile(file, []byte(data), 0644); err != nil {
		t.Fatalf("write products: %v", err)
	}
	env.mustRun(t, "product", "import", file)

	out := env.mustRun(t, "product", "list")
	if !strings.Contains(out, "Mug") || !strings.Contains(out, "12.50") {
		t.Errorf("product list missing rows: %q", out)
	}
	if _, err := env.run(t, "product", "list", "--block", "block-0"); err == nil {
		t.Error("expected --block without --page to fail")
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"3", float64(3)},
		{"true", true},
		{"null", nil},
		{"Summer sale", "Summer sale"},
		{`"quoted"`, "quoted"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
