package service

import (
	"bytes"
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

type pendingWrite struct {
	layout []byte
	reason string
	seq    uint64
}

// ─────────────────────────────────────────────────────────────
// layoutWriter: fire-and-forget persistence
// ─────────────────────────────────────────────────────────────

// layoutWriter takes layout snapshots from editors without blocking them
// and saves them on its own goroutine. Snapshots queued for the same page
// before a save starts are coalesced; only the newest is written. Newest
// means highest seq, not latest to arrive: a snapshot older than one already
// queued or saved is dropped.
type layoutWriter struct {
	save   func(ctx context.Context, pageID string, w pendingWrite) error
	logger *log.Logger

	mu        sync.Mutex
	pending   map[string]pendingWrite
	order     []string
	inflight  map[string]bool
	lastSaved map[string][]byte
	latest    map[string]uint64

	flushMu sync.Mutex
	wake    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

func newLayoutWriter(save func(context.Context, string, pendingWrite) error, logger *log.Logger) *layoutWriter {
	return &layoutWriter{
		save:      save,
		logger:    logger,
		pending:   make(map[string]pendingWrite),
		inflight:  make(map[string]bool),
		lastSaved: make(map[string][]byte),
		latest:    make(map[string]uint64),
		wake:      make(chan struct{}, 1),
	}
}

// Start runs the background loop until Stop or ctx is done.
func (w *layoutWriter) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(loopCtx, w.done)
}

func (w *layoutWriter) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			// drain what is left so a shutdown does not lose edits
			w.Flush(context.WithoutCancel(ctx))
			return
		case <-w.wake:
			w.Flush(ctx)
		}
	}
}

// Stop ends the loop after a final flush.
func (w *layoutWriter) Stop(ctx context.Context) {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		w.Flush(ctx)
		return
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Enqueue records layout for pageID and wakes the loop. It reports false
// when a snapshot with a higher seq was already queued or saved.
func (w *layoutWriter) Enqueue(pageID string, layout []byte, reason string, seq uint64) bool {
	w.mu.Lock()
	if latest := w.latest[pageID]; seq <= latest {
		w.mu.Unlock()
		w.logger.Debug("drop stale layout", "page", pageID, "seq", seq, "latest", latest)
		return false
	}
	w.latest[pageID] = seq
	if _, queued := w.pending[pageID]; !queued {
		w.order = append(w.order, pageID)
	}
	w.pending[pageID] = pendingWrite{layout: layout, reason: reason, seq: seq}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// Flush saves everything queued, including writes queued while it runs.
// It returns the first save error; failed writes are not retried.
func (w *layoutWriter) Flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	var firstErr error
	for {
		w.mu.Lock()
		if len(w.order) == 0 {
			w.mu.Unlock()
			return firstErr
		}
		order, batch := w.order, w.pending
		w.order, w.pending = nil, make(map[string]pendingWrite)
		for id, pw := range batch {
			w.lastSaved[id] = pw.layout
			w.inflight[id] = true
		}
		w.mu.Unlock()

		for _, id := range order {
			err := w.save(ctx, id, batch[id])
			w.mu.Lock()
			delete(w.inflight, id)
			w.mu.Unlock()
			if err != nil {
				w.logger.Error("save layout", "page", id, "reason", batch[id].reason, "err", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
}

// Pending reports whether a write for pageID is queued or being saved.
func (w *layoutWriter) Pending(pageID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pending[pageID]
	return ok || w.inflight[pageID]
}

// WroteLast reports whether layout is what this writer last saved for pageID.
func (w *layoutWriter) WroteLast(pageID string, layout []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.lastSaved[pageID]
	return ok && bytes.Equal(bytes.TrimSpace(last), bytes.TrimSpace(layout))
}

func (w *layoutWriter) Forget(pageID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.lastSaved, pageID)
}
