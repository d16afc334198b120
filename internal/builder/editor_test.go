package builder_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/builder"
	"storefront/internal/domain"
	"storefront/internal/layout"
)

type recorder struct {
	mu       sync.Mutex
	layouts  []domain.LayoutMap
	reasons  []string
	seqs     []uint64
	selected []domain.Block
	clicks   []string
}

func (r *recorder) hooks() builder.Hooks {
	return builder.Hooks{
		OnLayoutChanged: func(m domain.LayoutMap, reason string, seq uint64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.layouts = append(r.layouts, m)
			r.reasons = append(r.reasons, reason)
			r.seqs = append(r.seqs, seq)
		},
		OnSelectedBlockChanged: func(b domain.Block) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.selected = append(r.selected, b)
		},
		OnBlockDoubleClicked: func(id string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.clicks = append(r.clicks, id)
		},
	}
}

func (r *recorder) reasonList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

func (r *recorder) lastLayout() domain.LayoutMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.layouts) == 0 {
		return nil
	}
	return r.layouts[len(r.layouts)-1]
}

func seed(names ...string) []domain.Block {
	m := domain.LayoutMap{}
	for i, name := range names {
		m[string(rune('0'+i))] = domain.LayoutEntry{
			LayoutType:    "text",
			StableID:      "sid-" + name,
			Content:       name,
			Spacing:       "normal",
			TextAlignment: "center",
			BlockWidth:    "contained",
		}
	}
	return layout.Decode(m, nil)
}

func newEditor(t *testing.T, blocks []domain.Block) (*builder.Editor, *recorder) {
	t.Helper()
	rec := &recorder{}
	ed := builder.New("page-1", blocks, rec.hooks(), builder.Options{
		BackfillDelay: 30 * time.Millisecond,
		DragGrace:     20 * time.Millisecond,
	})
	t.Cleanup(ed.Close)
	return ed, rec
}

func contents(blocks []domain.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		tb, _ := domain.AsText(b)
		out[i] = tb.Content
	}
	return out
}

func intp(v int) *int { return &v }

func TestCommandsNotifyLayoutChanged(t *testing.T) {
	ed, rec := newEditor(t, seed("A", "B"))

	_, err := ed.Insert(domain.BlockTypeText, layout.Start(), layout.Patch{"content": "X"})
	require.NoError(t, err)
	_, err = ed.Move("sid-A", layout.Down)
	require.NoError(t, err)
	_, err = ed.Move("block-0", layout.Up)
	require.NoError(t, err)
	_, err = ed.Delete("sid-X")
	require.NoError(t, err)

	assert.Equal(t, []string{"insert text", "move down", "delete"}, rec.reasonList())
	assert.Equal(t, []string{"B", "A"}, contents(ed.Blocks()))
	assert.Equal(t, "B", rec.lastLayout()["0"].Content)
}

func TestSeqIncreasesWithEachLayout(t *testing.T) {
	ed, rec := newEditor(t, seed("A"))
	_, err := ed.Insert(domain.BlockTypeText, nil, nil)
	require.NoError(t, err)
	_, err = ed.Delete("sid-A")
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.seqs, 2)
	assert.Less(t, rec.seqs[0], rec.seqs[1])
}

func TestConcurrentCommandsOrderedBySeq(t *testing.T) {
	type delivery struct {
		seq  uint64
		size int
	}
	var (
		mu      sync.Mutex
		got     []delivery
		once    sync.Once
		blocked = make(chan struct{})
		release = make(chan struct{})
	)
	hooks := builder.Hooks{
		OnLayoutChanged: func(m domain.LayoutMap, _ string, seq uint64) {
			hold := false
			once.Do(func() { hold = true })
			if hold {
				close(blocked)
				<-release
			}
			mu.Lock()
			got = append(got, delivery{seq: seq, size: len(m)})
			mu.Unlock()
		},
	}
	ed := builder.New("page-1", nil, hooks, builder.Options{BackfillDelay: time.Hour})
	t.Cleanup(ed.Close)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := ed.Insert(domain.BlockTypeText, nil, nil)
		assert.NoError(t, err)
	}()
	<-blocked
	_, err := ed.Insert(domain.BlockTypeGrid, nil, nil)
	require.NoError(t, err)
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	// the second command's hook ran first
	assert.Equal(t, 2, got[0].size)
	newest := got[0]
	if got[1].seq > newest.seq {
		newest = got[1]
	}
	assert.Equal(t, len(ed.Blocks()), newest.size)
}

func TestCommandErrorsLeaveStateAlone(t *testing.T) {
	ed, rec := newEditor(t, seed("A"))

	_, err := ed.Delete("nope")
	require.ErrorIs(t, err, layout.ErrBlockNotFound)
	_, err = ed.Insert("carousel", nil, nil)
	require.ErrorIs(t, err, layout.ErrUnknownType)

	assert.Empty(t, rec.reasonList())
	assert.Len(t, ed.Blocks(), 1)
}

func TestBlocksReturnsCopy(t *testing.T) {
	ed, _ := newEditor(t, seed("A"))
	ed.Blocks()[0].Base().StableID = "mutated"
	assert.Equal(t, "sid-A", ed.Blocks()[0].Base().StableID)
}

// ─── Drag ──────────────────────────────────────────────────

func TestDragNoopLeavesLayoutIdentical(t *testing.T) {
	ed, rec := newEditor(t, seed("A", "B", "C"))
	before, err := layout.EncodeJSON(ed.Blocks())
	require.NoError(t, err)

	require.NoError(t, ed.StartDrag("sid-B"))
	out, err := ed.EndDrag(intp(1))
	require.NoError(t, err)
	assert.Equal(t, builder.DropNoop, out)

	after, err := layout.EncodeJSON(ed.Blocks())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, rec.reasonList())
	assert.Equal(t, builder.DragIdle, ed.Drag().State)
}

func TestDragCancel(t *testing.T) {
	ed, rec := newEditor(t, seed("A", "B"))

	require.NoError(t, ed.StartDrag("block-0"))
	_, err := ed.UpdateDrag(intp(1))
	require.NoError(t, err)

	out, err := ed.EndDrag(nil)
	require.NoError(t, err)
	assert.Equal(t, builder.DropCancelled, out)
	view := ed.Drag()
	assert.Equal(t, builder.DragIdle, view.State)
	assert.Equal(t, builder.DragCancelled, view.Ended)
	assert.Equal(t, "cancelled", view.EndedStr)
	assert.Nil(t, view.Hint)
	assert.Equal(t, []string{"A", "B"}, contents(ed.Blocks()))
	assert.Empty(t, rec.reasonList())
}

func TestDragCommitAndGracePeriod(t *testing.T) {
	ed, rec := newEditor(t, seed("A", "B", "C"))

	require.NoError(t, ed.StartDrag("sid-A"))
	assert.Equal(t, builder.DragDragging, ed.Drag().State)

	out, err := ed.EndDrag(intp(2))
	require.NoError(t, err)
	assert.Equal(t, builder.DropCommitted, out)
	assert.Equal(t, []string{"B", "C", "A"}, contents(ed.Blocks()))
	assert.Equal(t, []string{"reorder"}, rec.reasonList())
	assert.Equal(t, "sid-A", rec.lastLayout()["2"].StableID)

	assert.Equal(t, builder.DragCommitting, ed.Drag().State)
	require.Eventually(t, func() bool {
		return ed.Drag().State == builder.DragIdle
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, builder.DragCommitting, ed.Drag().Ended)
}

func TestDragSingleSession(t *testing.T) {
	ed, _ := newEditor(t, seed("A", "B"))

	_, err := ed.EndDrag(intp(0))
	require.ErrorIs(t, err, builder.ErrNoDrag)
	_, err = ed.UpdateDrag(nil)
	require.ErrorIs(t, err, builder.ErrNoDrag)

	require.NoError(t, ed.StartDrag("sid-A"))
	require.ErrorIs(t, ed.StartDrag("sid-B"), builder.ErrDragActive)
	require.ErrorIs(t, ed.StartDrag("missing"), builder.ErrDragActive)
}

func TestUpdateDragHint(t *testing.T) {
	ed, _ := newEditor(t, seed("A", "B", "C"))
	require.NoError(t, ed.StartDrag("sid-A"))

	h, err := ed.UpdateDrag(intp(1))
	require.NoError(t, err)
	assert.Equal(t, &layout.Hint{Index: 1, Above: "sid-B", Below: "sid-C"}, h)
	assert.Equal(t, h, ed.Drag().Hint)

	h, err = ed.UpdateDrag(nil)
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Nil(t, ed.Drag().Hint)
	assert.Equal(t, builder.DragDragging, ed.Drag().State)

	_, err = ed.UpdateDrag(intp(9))
	require.ErrorIs(t, err, layout.ErrIndexOutOfRange)
}

// ─── Backfill ──────────────────────────────────────────────

func legacySeed() []domain.Block {
	return layout.Decode(domain.LayoutMap{
		"0": {LayoutType: "text", StableID: "old", Content: "old", TextAlignment: "left"},
	}, nil)
}

func TestBackfillRunsAfterDelay(t *testing.T) {
	ed, rec := newEditor(t, legacySeed())
	ed.ScheduleBackfill()
	assert.True(t, ed.BackfillPending())
	assert.Empty(t, rec.reasonList())

	require.Eventually(t, func() bool { return !ed.BackfillPending() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"backfill"}, rec.reasonList())
	assert.Equal(t, domain.AlignCenter, ed.Blocks()[0].Base().TextAlignment)
	assert.False(t, layout.MapNeedsBackfill(rec.lastLayout()))
}

func TestBackfillKeepsUserEdit(t *testing.T) {
	ed, rec := newEditor(t, legacySeed())
	ed.ScheduleBackfill()

	_, err := ed.Insert(domain.BlockTypeText, nil, layout.Patch{"content": "new"})
	require.NoError(t, err)
	_, err = ed.Update("sid-old", layout.Patch{"content": "edited"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !ed.BackfillPending() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"insert text", "update", "backfill"}, rec.reasonList())
	assert.Equal(t, []string{"edited", "new"}, contents(ed.Blocks()))
}

func TestBackfillWaitsForDrag(t *testing.T) {
	ed, _ := newEditor(t, append(legacySeed(), seed("B")...))
	ed.ScheduleBackfill()
	require.NoError(t, ed.StartDrag("sid-old"))

	time.Sleep(100 * time.Millisecond)
	assert.True(t, ed.BackfillPending())

	_, err := ed.EndDrag(nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !ed.BackfillPending() }, time.Second, 5*time.Millisecond)
}

func TestBackfillNow(t *testing.T) {
	ed, rec := newEditor(t, seed("A"))
	assert.False(t, ed.BackfillNow())

	ed2, rec2 := newEditor(t, legacySeed())
	assert.True(t, ed2.BackfillNow())
	assert.Equal(t, []string{"backfill"}, rec2.reasonList())
	assert.Empty(t, rec.reasonList())
}

// ─── Selection ─────────────────────────────────────────────

func TestSelectionFollowsStableID(t *testing.T) {
	ed, rec := newEditor(t, seed("A", "B", "C"))

	sel, err := ed.Select("block-0")
	require.NoError(t, err)
	assert.Equal(t, "sid-A", sel.Base().StableID)

	_, err = ed.Move("sid-A", layout.Down)
	require.NoError(t, err)
	assert.Equal(t, "block-1", ed.SelectedPositionID())

	_, err = ed.Update("sid-A", layout.Patch{"content": "A2"})
	require.NoError(t, err)

	_, err = ed.Delete("sid-A")
	require.NoError(t, err)
	_, ok := ed.Selected()
	assert.False(t, ok)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.selected, 3)
	updated, _ := domain.AsText(rec.selected[1])
	assert.Equal(t, "A2", updated.Content)
	assert.Nil(t, rec.selected[2])
}

func TestDoubleClick(t *testing.T) {
	ed, rec := newEditor(t, seed("A", "B"))
	require.NoError(t, ed.DoubleClick("block-1"))
	require.ErrorIs(t, ed.DoubleClick("nope"), layout.ErrBlockNotFound)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"sid-B"}, rec.clicks)
}

func TestClosedEditorRejectsCommands(t *testing.T) {
	ed, _ := newEditor(t, seed("A"))
	ed.Close()
	_, err := ed.Delete("sid-A")
	require.ErrorIs(t, err, builder.ErrClosed)
	require.ErrorIs(t, ed.StartDrag("sid-A"), builder.ErrClosed)
}

func TestReplaceCancelsDrag(t *testing.T) {
	ed, rec := newEditor(t, seed("A", "B"))
	require.NoError(t, ed.StartDrag("sid-A"))

	ed.Replace(seed("Z"))
	assert.Equal(t, builder.DragIdle, ed.Drag().State)
	assert.Equal(t, builder.DragCancelled, ed.Drag().Ended)
	assert.Equal(t, []string{"Z"}, contents(ed.Blocks()))
	assert.Empty(t, rec.reasonList())
}
