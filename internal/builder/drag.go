package builder

import (
	"errors"
	"time"

	"storefront/internal/layout"
)

var (
	ErrDragActive = errors.New("a drag is already in progress")
	ErrNoDrag     = errors.New("no drag in progress")
)

type DragState int

const (
	DragIdle DragState = iota
	DragDragging
	DragCommitting
	DragCancelled
)

func (s DragState) String() string {
	switch s {
	case DragDragging:
		return "dragging"
	case DragCommitting:
		return "committing"
	case DragCancelled:
		return "cancelled"
	}
	return "idle"
}

// DropOutcome reports what EndDrag did.
type DropOutcome int

const (
	DropCancelled DropOutcome = iota
	DropNoop
	DropCommitted
)

func (o DropOutcome) String() string {
	switch o {
	case DropNoop:
		return "noop"
	case DropCommitted:
		return "committed"
	}
	return "cancelled"
}

// DragView is a snapshot of the drag session for rendering. Ended is the
// terminal state the previous session went through: DragCommitting,
// DragCancelled, or DragIdle when it ended without either.
type DragView struct {
	State    DragState    `json:"-"`
	StateStr string       `json:"state"`
	StableID string       `json:"stableId,omitempty"`
	Source   int          `json:"source"`
	Hint     *layout.Hint `json:"hint,omitempty"`
	Ended    DragState    `json:"-"`
	EndedStr string       `json:"ended"`
}

// dragSession is owned by an Editor and only touched under its lock.
type dragSession struct {
	state    DragState
	stableID string
	source   int
	hint     *layout.Hint
	ended    DragState

	// gen invalidates grace timers of earlier sessions.
	gen   uint64
	timer *time.Timer
}

func (d *dragSession) active() bool {
	return d.state == DragDragging
}

func (d *dragSession) view() DragView {
	v := DragView{
		State:    d.state,
		StateStr: d.state.String(),
		StableID: d.stableID,
		Source:   d.source,
		Ended:    d.ended,
		EndedStr: d.ended.String(),
	}
	if d.hint != nil {
		h := *d.hint
		v.Hint = &h
	}
	return v
}

func (d *dragSession) begin(stableID string, source int) {
	d.stopTimer()
	d.gen++
	d.state = DragDragging
	d.ended = DragIdle
	d.stableID = stableID
	d.source = source
	d.hint = nil
}

// commit enters Committing; the grace timer resets the session later.
func (d *dragSession) commit() {
	d.state = DragCommitting
	d.ended = DragCommitting
}

// cancel passes through Cancelled and is back to Idle on return. The
// sequence is never touched.
func (d *dragSession) cancel() {
	d.state = DragCancelled
	d.ended = DragCancelled
	d.reset()
}

// reset returns the session to idle, clearing all drag visuals.
func (d *dragSession) reset() {
	d.stopTimer()
	d.state = DragIdle
	d.stableID = ""
	d.source = 0
	d.hint = nil
}

func (d *dragSession) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
