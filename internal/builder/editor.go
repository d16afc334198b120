// Package builder holds the stateful editing session for one page: the
// block sequence, the merchant's selection, the drag session and the
// delayed backfill pass.
package builder

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"github.com/charmbracelet/log"

	"storefront/internal/domain"
	"storefront/internal/layout"
)

const (
	DefaultBackfillDelay = 500 * time.Millisecond
	DefaultDragGrace     = 100 * time.Millisecond
)

var ErrClosed = errors.New("editor is closed")

// layoutSeq orders layout snapshots across all editors of the process.
var layoutSeq atomic.Uint64

// NextSeq returns a sequence number greater than any handed out before.
func NextSeq() uint64 { return layoutSeq.Add(1) }

// Hooks are the editor's outbound notifications. They run synchronously on
// the goroutine that caused them, after the editor lock is released, and
// must not block: persistence behind OnLayoutChanged is fire-and-forget.
// Hooks of concurrent commands may run out of order; seq is taken under the
// lock, so a higher seq is always the newer layout.
type Hooks struct {
	OnLayoutChanged        func(m domain.LayoutMap, reason string, seq uint64)
	OnSelectedBlockChanged func(b domain.Block)
	OnBlockDoubleClicked   func(stableID string)
}

type Options struct {
	Engine        *layout.Engine
	BackfillDelay time.Duration
	DragGrace     time.Duration
	Logger        *log.Logger
}

// Editor is the single writer for one page's block sequence. It is safe for
// concurrent use.
type Editor struct {
	pageID string
	engine *layout.Engine
	hooks  Hooks
	grace  time.Duration
	logger *log.Logger

	mu          sync.Mutex
	blocks      []domain.Block
	selected    string // stable id
	drag        dragSession
	debounced   func(func())
	backfillDue bool
	closed      bool
}

// New starts a session over blocks. The editor takes ownership of the
// slice.
func New(pageID string, blocks []domain.Block, hooks Hooks, opts Options) *Editor {
	if opts.Engine == nil {
		opts.Engine = layout.NewEngine()
	}
	if opts.BackfillDelay <= 0 {
		opts.BackfillDelay = DefaultBackfillDelay
	}
	if opts.DragGrace <= 0 {
		opts.DragGrace = DefaultDragGrace
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if blocks == nil {
		blocks = []domain.Block{}
	}
	return &Editor{
		pageID:    pageID,
		engine:    opts.Engine,
		hooks:     hooks,
		grace:     opts.DragGrace,
		logger:    opts.Logger.With("page", pageID),
		blocks:    layout.Reindex(blocks),
		debounced: debounce.New(opts.BackfillDelay),
	}
}

func (e *Editor) PageID() string { return e.pageID }

// Blocks returns a copy of the current sequence.
func (e *Editor) Blocks() []domain.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return layout.Clone(e.blocks)
}

// Layout returns the current sequence in its persisted form.
func (e *Editor) Layout() domain.LayoutMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return layout.Encode(e.blocks)
}

// ─── Commands ──────────────────────────────────────────────

func (e *Editor) Insert(t domain.BlockType, p *layout.Point, overrides layout.Patch) (layout.Result, error) {
	return e.apply("insert "+string(t), "", func(blocks []domain.Block) (layout.Result, error) {
		return e.engine.Insert(blocks, t, p, overrides)
	})
}

func (e *Editor) Delete(id string) (layout.Result, error) {
	return e.apply("delete", "", func(blocks []domain.Block) (layout.Result, error) {
		return e.engine.Delete(blocks, id)
	})
}

func (e *Editor) Move(id string, dir layout.Direction) (layout.Result, error) {
	return e.apply("move "+dir.String(), "", func(blocks []domain.Block) (layout.Result, error) {
		return e.engine.Move(blocks, id, dir)
	})
}

func (e *Editor) Update(id string, patch layout.Patch) (layout.Result, error) {
	return e.apply("update", id, func(blocks []domain.Block) (layout.Result, error) {
		return e.engine.Update(blocks, id, patch)
	})
}

func (e *Editor) Resize(id string, delta int) (layout.Result, error) {
	return e.apply("resize", id, func(blocks []domain.Block) (layout.Result, error) {
		return e.engine.Resize(blocks, id, delta)
	})
}

func (e *Editor) SetHeight(id string, px int) (layout.Result, error) {
	return e.apply("resize", id, func(blocks []domain.Block) (layout.Result, error) {
		return e.engine.SetHeight(blocks, id, px)
	})
}

// Reorder splice-moves a block without a drag session.
func (e *Editor) Reorder(id string, to int) (layout.Result, error) {
	return e.apply("reorder", "", func(blocks []domain.Block) (layout.Result, error) {
		from := layout.IndexOf(blocks, id)
		if from < 0 {
			return layout.Result{}, fmt.Errorf("reorder %q: %w", id, layout.ErrBlockNotFound)
		}
		return e.engine.Reorder(blocks, from, to)
	})
}

// apply runs one user command. target names the block whose refreshed state
// is pushed to the selection hook when it is the selected one.
func (e *Editor) apply(reason, target string, fn func([]domain.Block) (layout.Result, error)) (layout.Result, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return layout.Result{}, ErrClosed
	}
	res, err := fn(e.blocks)
	if err != nil {
		e.mu.Unlock()
		return layout.Result{}, err
	}

	var notify []func()
	if res.Changed {
		e.blocks = res.Blocks
		notify = append(notify, e.layoutChanged(res.Layout, reason))
		if n := e.syncSelection(target); n != nil {
			notify = append(notify, n)
		}
	}
	// a pending backfill must not land on top of an edit in progress
	e.rearmBackfill()
	out := layout.Result{Blocks: layout.Clone(e.blocks), Layout: res.Layout, Changed: res.Changed}
	e.mu.Unlock()

	run(notify)
	return out, nil
}

// Replace swaps in a sequence loaded from storage, for example after another
// process rewrote the page. It does not fire OnLayoutChanged; the returned
// seq orders the new sequence against layouts the editor reported earlier.
func (e *Editor) Replace(blocks []domain.Block) uint64 {
	e.mu.Lock()
	seq := NextSeq()
	if e.closed {
		e.mu.Unlock()
		return seq
	}
	if e.drag.active() {
		e.drag.cancel()
	} else {
		e.drag.reset()
	}
	e.blocks = layout.Reindex(blocks)
	n := e.syncSelection("")
	e.mu.Unlock()

	if n != nil {
		n()
	}
	return seq
}

// Close stops timers and rejects further commands.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.backfillDue = false
	e.drag.reset()
	e.debounced(func() {})
}

// ─── Selection ─────────────────────────────────────────────

// Select marks the block with the given id as selected. An empty id clears
// the selection.
func (e *Editor) Select(id string) (domain.Block, error) {
	e.mu.Lock()
	var sel domain.Block
	if id != "" {
		i := layout.IndexOf(e.blocks, id)
		if i < 0 {
			e.mu.Unlock()
			return nil, fmt.Errorf("select %q: %w", id, layout.ErrBlockNotFound)
		}
		sel = e.blocks[i].Clone()
		e.selected = sel.Base().StableID
	} else {
		e.selected = ""
	}
	e.mu.Unlock()

	if e.hooks.OnSelectedBlockChanged != nil {
		e.hooks.OnSelectedBlockChanged(sel)
	}
	return sel, nil
}

// Selected returns the selected block, if any.
func (e *Editor) Selected() (domain.Block, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := layout.IndexOf(e.blocks, e.selected)
	if i < 0 {
		return nil, false
	}
	return e.blocks[i].Clone(), true
}

// SelectedPositionID is the current position id of the selection. It follows
// the block through reorders.
func (e *Editor) SelectedPositionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := layout.IndexOf(e.blocks, e.selected)
	if i < 0 {
		return ""
	}
	return e.blocks[i].Base().PositionID
}

// DoubleClick selects the block and reports it to OnBlockDoubleClicked.
func (e *Editor) DoubleClick(id string) error {
	b, err := e.Select(id)
	if err != nil {
		return err
	}
	if e.hooks.OnBlockDoubleClicked != nil {
		e.hooks.OnBlockDoubleClicked(b.Base().StableID)
	}
	return nil
}

// syncSelection drops a selection whose block is gone and refreshes it when
// target is the selected block. Called with the lock held.
func (e *Editor) syncSelection(target string) func() {
	if e.selected == "" {
		return nil
	}
	hook := e.hooks.OnSelectedBlockChanged
	i := layout.IndexOf(e.blocks, e.selected)
	switch {
	case i < 0:
		e.selected = ""
		if hook != nil {
			return func() { hook(nil) }
		}
	case hook != nil && target != "" && layout.IndexOf(e.blocks, target) == i:
		sel := e.blocks[i].Clone()
		return func() { hook(sel) }
	}
	return nil
}

// ─── Drag ──────────────────────────────────────────────────

// StartDrag picks up the block with the given id. Only one drag may be in
// progress; a drop still in its grace period is settled early.
func (e *Editor) StartDrag(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.drag.active() {
		return ErrDragActive
	}
	i := layout.IndexOf(e.blocks, id)
	if i < 0 {
		return fmt.Errorf("start drag %q: %w", id, layout.ErrBlockNotFound)
	}
	e.drag.begin(e.blocks[i].Base().StableID, i)
	return nil
}

// UpdateDrag moves the advisory drop target. A nil dest clears it but keeps
// the drag alive.
func (e *Editor) UpdateDrag(dest *int) (*layout.Hint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.drag.active() {
		return nil, ErrNoDrag
	}
	if dest == nil {
		e.drag.hint = nil
		return nil, nil
	}
	from := layout.IndexOf(e.blocks, e.drag.stableID)
	if from < 0 {
		e.drag.hint = nil
		return nil, nil
	}
	h, err := layout.DropHint(e.blocks, from, *dest)
	if err != nil {
		return nil, err
	}
	e.drag.hint = &h
	out := h
	return &out, nil
}

// EndDrag drops the block. With no dest the drag is cancelled and nothing
// changes. Dropping onto the source index is a no-op. Otherwise the block is
// spliced to dest and the new layout is handed to OnLayoutChanged; drag
// visuals clear after the grace period.
func (e *Editor) EndDrag(dest *int) (DropOutcome, error) {
	e.mu.Lock()
	if !e.drag.active() {
		e.mu.Unlock()
		return DropCancelled, ErrNoDrag
	}
	if dest == nil {
		e.drag.cancel()
		e.mu.Unlock()
		e.logger.Debug("drag cancelled")
		return DropCancelled, nil
	}
	if *dest == e.drag.source {
		e.drag.reset()
		e.mu.Unlock()
		return DropNoop, nil
	}
	from := layout.IndexOf(e.blocks, e.drag.stableID)
	if from < 0 {
		e.drag.cancel()
		e.mu.Unlock()
		return DropCancelled, nil
	}
	res, err := e.engine.Reorder(e.blocks, from, *dest)
	if err != nil {
		e.drag.cancel()
		e.mu.Unlock()
		return DropCancelled, err
	}
	if !res.Changed {
		e.drag.reset()
		e.mu.Unlock()
		return DropNoop, nil
	}

	e.blocks = res.Blocks
	notify := []func(){e.layoutChanged(res.Layout, "reorder")}
	e.rearmBackfill()
	e.drag.commit()
	gen := e.drag.gen
	e.drag.timer = time.AfterFunc(e.grace, func() { e.settleDrag(gen) })
	e.mu.Unlock()

	run(notify)
	return DropCommitted, nil
}

// Drag returns a snapshot of the drag session.
func (e *Editor) Drag() DragView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drag.view()
}

func (e *Editor) settleDrag(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag.gen == gen && e.drag.state == DragCommitting {
		e.drag.timer = nil
		e.drag.reset()
	}
}

// ─── Backfill ──────────────────────────────────────────────

// ScheduleBackfill arms the delayed backfill pass. Every command issued
// before it fires pushes it back again.
func (e *Editor) ScheduleBackfill() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.backfillDue = true
	e.debounced(e.runBackfill)
}

// BackfillPending reports whether a scheduled backfill has not run yet.
func (e *Editor) BackfillPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backfillDue
}

// BackfillNow runs the backfill immediately. It reports whether the layout
// was rewritten.
func (e *Editor) BackfillNow() bool {
	e.mu.Lock()
	if e.closed || (!e.backfillDue && !layout.NeedsBackfill(e.blocks)) {
		e.mu.Unlock()
		return false
	}
	n := e.backfillLocked()
	e.mu.Unlock()
	n()
	return true
}

func (e *Editor) runBackfill() {
	e.mu.Lock()
	if e.closed || !e.backfillDue {
		e.mu.Unlock()
		return
	}
	if e.drag.active() {
		e.debounced(e.runBackfill)
		e.mu.Unlock()
		return
	}
	n := e.backfillLocked()
	e.mu.Unlock()
	n()
}

func (e *Editor) backfillLocked() func() {
	e.blocks, _ = layout.Backfill(e.blocks)
	e.backfillDue = false
	e.logger.Debug("backfill applied", "blocks", len(e.blocks))
	return e.layoutChanged(layout.Encode(e.blocks), "backfill")
}

func (e *Editor) rearmBackfill() {
	if e.backfillDue {
		e.debounced(e.runBackfill)
	}
}

// ─── Notifications ─────────────────────────────────────────

// layoutChanged must be called with the lock held so seq follows the order
// in which the layouts were produced.
func (e *Editor) layoutChanged(m domain.LayoutMap, reason string) func() {
	seq := NextSeq()
	e.logger.Debug("layout changed", "reason", reason, "blocks", len(m), "seq", seq)
	hook := e.hooks.OnLayoutChanged
	if hook == nil {
		return func() {}
	}
	return func() { hook(m, reason, seq) }
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
