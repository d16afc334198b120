package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"storefront/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// PageWatcher: reload editors after writes from other processes
// ─────────────────────────────────────────────────────────────

// PageWatcher notices layouts rewritten outside this process (another
// builder host, the MCP server, a CLI import) and reloads the open
// editors. It polls page fingerprints on a ticker and, when the store is
// a local file, also wakes on filesystem writes to it.
type PageWatcher struct {
	pages    domain.PageStore
	layouts  *LayoutService
	dbPath   string
	interval time.Duration
	logger   *log.Logger

	mu     sync.Mutex
	last   map[string]string // page id -> fingerprint
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPageWatcher creates a watcher. dbPath is the database file to watch
// with fsnotify; empty means poll only.
func NewPageWatcher(pages domain.PageStore, layouts *LayoutService, dbPath string, interval time.Duration, logger *log.Logger) *PageWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PageWatcher{
		pages:    pages,
		layouts:  layouts,
		dbPath:   dbPath,
		interval: interval,
		logger:   logger,
		last:     make(map[string]string),
	}
}

// Start begins watching. Should be called once on startup.
func (w *PageWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(watchCtx, w.done)
}

// Stop terminates the loop and waits for it.
func (w *PageWatcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (w *PageWatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	if fsw := w.fileWatcher(); fsw != nil {
		defer fsw.Close()
		events = fsw.Events
		go func() {
			for err := range fsw.Errors {
				w.logger.Warn("page watcher", "err", err)
			}
		}()
	}

	base := filepath.Base(w.dbPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(ctx)
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// the database file or its -wal / -journal siblings
			if strings.HasPrefix(filepath.Base(event.Name), base) {
				w.Check(ctx)
			}
		}
	}
}

func (w *PageWatcher) fileWatcher() *fsnotify.Watcher {
	if w.dbPath == "" {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("page watcher: falling back to polling", "err", err)
		return nil
	}
	if err := fsw.Add(filepath.Dir(w.dbPath)); err != nil {
		w.logger.Warn("page watcher: falling back to polling", "dir", filepath.Dir(w.dbPath), "err", err)
		fsw.Close()
		return nil
	}
	return fsw
}

// Check compares the fingerprint of every open page with the last one
// seen and reloads the pages whose stored layout moved.
func (w *PageWatcher) Check(ctx context.Context) {
	open := w.layouts.OpenPages()

	var changed []string
	w.mu.Lock()
	seen := make(map[string]string, len(open))
	for _, id := range open {
		fp, err := w.pages.PageFingerprint(ctx, id)
		if err != nil {
			continue
		}
		seen[id] = fp
		if prev, ok := w.last[id]; ok && prev != fp {
			changed = append(changed, id)
		}
	}
	w.last = seen
	w.mu.Unlock()

	for _, id := range changed {
		if _, err := w.layouts.ExternalChange(ctx, id); err != nil {
			w.logger.Warn("reload page", "page", id, "err", err)
		}
	}
}
