package layout

import (
	"errors"
	"fmt"
	"sort"

	"storefront/internal/domain"
)

var (
	ErrBlockNotFound = errors.New("block not found")
	ErrUnknownType   = errors.New("unknown block type")
	ErrNotResizable  = errors.New("block type is not resizable")
)

// Result is the outcome of a command: the new sequence and its encoded map.
// Changed is false when the command was a no-op.
type Result struct {
	Blocks  []domain.Block
	Layout  domain.LayoutMap
	Changed bool
}

func result(blocks []domain.Block, changed bool) Result {
	return Result{Blocks: blocks, Layout: Encode(blocks), Changed: changed}
}

// Engine applies commands to block sequences. Inputs are never mutated;
// every command works on clones.
type Engine struct {
	ids    IDSource
	bounds Bounds
}

type Option func(*Engine)

// WithIDs sets the id source for inserted blocks. The default is random ids.
func WithIDs(ids IDSource) Option {
	return func(e *Engine) { e.ids = ids }
}

// WithBounds overrides the default resize bounds.
func WithBounds(b Bounds) Option {
	return func(e *Engine) { e.bounds = b }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		ids:    IDsFor(Interactive),
		bounds: DefaultBounds(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ─── Commands ──────────────────────────────────────────────

// Insert creates a block of type t at the point p (End when nil), seeded by
// the type's defaults merged with overrides.
func (e *Engine) Insert(blocks []domain.Block, t domain.BlockType, p *Point, overrides Patch) (Result, error) {
	seq := Reindex(cloneAll(blocks))
	at := len(seq)
	if p != nil {
		at = p.Resolve(len(seq))
	}

	b, err := e.NewBlock(t, at)
	if err != nil {
		return Result{}, err
	}
	if len(overrides) > 0 {
		if b, err = overrides.apply(b); err != nil {
			return Result{}, err
		}
	}

	for _, existing := range seq {
		if base := existing.Base(); base.Position >= at {
			base.Position++
		}
	}
	b.Base().Position = at
	seq = append(seq, b)
	sort.SliceStable(seq, func(i, j int) bool {
		return seq[i].Base().Position < seq[j].Base().Position
	})
	return result(Reindex(seq), true), nil
}

// Delete removes the block with the given stable or position id.
func (e *Engine) Delete(blocks []domain.Block, id string) (Result, error) {
	i := IndexOf(blocks, id)
	if i < 0 {
		return Result{}, fmt.Errorf("delete %q: %w", id, ErrBlockNotFound)
	}
	seq := cloneAll(blocks)
	seq = append(seq[:i], seq[i+1:]...)
	return result(Reindex(seq), true), nil
}

// Direction of a Move.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// ParseDirection accepts "up" and "down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return Up, fmt.Errorf("invalid direction %q", s)
}

// Move swaps a block with its neighbour. Moving past either end is a no-op.
func (e *Engine) Move(blocks []domain.Block, id string, dir Direction) (Result, error) {
	i := IndexOf(blocks, id)
	if i < 0 {
		return Result{}, fmt.Errorf("move %q: %w", id, ErrBlockNotFound)
	}
	j := i - 1
	if dir == Down {
		j = i + 1
	}
	seq := cloneAll(blocks)
	if j < 0 || j >= len(seq) {
		return result(Reindex(seq), false), nil
	}
	seq[i], seq[j] = seq[j], seq[i]
	return result(Reindex(seq), true), nil
}

// Update shallow-merges patch into one block. Positions are left alone.
func (e *Engine) Update(blocks []domain.Block, id string, patch Patch) (Result, error) {
	i := IndexOf(blocks, id)
	if i < 0 {
		return Result{}, fmt.Errorf("update %q: %w", id, ErrBlockNotFound)
	}
	seq := cloneAll(blocks)
	updated, err := patch.apply(seq[i])
	if err != nil {
		return Result{}, fmt.Errorf("update %q: %w", id, err)
	}
	seq[i] = updated
	enforceStoreHeader(seq)
	return result(seq, true), nil
}

// Resize changes a block's height by delta pixels, clamped to its bounds.
func (e *Engine) Resize(blocks []domain.Block, id string, delta int) (Result, error) {
	i := IndexOf(blocks, id)
	if i < 0 {
		return Result{}, fmt.Errorf("resize %q: %w", id, ErrBlockNotFound)
	}
	h, err := e.bounds.Clamp(blocks[i], CurrentHeight(blocks[i])+delta)
	if err != nil {
		return Result{}, fmt.Errorf("resize %q: %w", id, err)
	}
	return e.setHeight(blocks, i, h), nil
}

// SetHeight sets an absolute height, clamped to the block's bounds.
func (e *Engine) SetHeight(blocks []domain.Block, id string, px int) (Result, error) {
	i := IndexOf(blocks, id)
	if i < 0 {
		return Result{}, fmt.Errorf("set height %q: %w", id, ErrBlockNotFound)
	}
	h, err := e.bounds.Clamp(blocks[i], px)
	if err != nil {
		return Result{}, fmt.Errorf("set height %q: %w", id, err)
	}
	return e.setHeight(blocks, i, h), nil
}

func (e *Engine) setHeight(blocks []domain.Block, i, h int) Result {
	seq := cloneAll(blocks)
	base := seq[i].Base()
	changed := base.Height == nil || *base.Height != h
	base.Height = domain.IntPtr(h)
	if base.HeightUnit == "" {
		base.HeightUnit = "px"
	}
	return result(seq, changed)
}

// Reorder moves the block at from to index to, shifting the blocks between.
func (e *Engine) Reorder(blocks []domain.Block, from, to int) (Result, error) {
	seq, err := Reorder(blocks, from, to)
	if err != nil {
		return Result{}, err
	}
	return result(seq, from != to), nil
}

// ─── Indexing ──────────────────────────────────────────────

// Reindex assigns positions 0..N-1 and position ids in slice order, and
// clears the store header flag on any banner that is not first. It modifies
// blocks in place and returns it.
func Reindex(blocks []domain.Block) []domain.Block {
	for i, b := range blocks {
		base := b.Base()
		base.Position = i
		base.PositionID = domain.PositionID(i)
	}
	enforceStoreHeader(blocks)
	return blocks
}

func enforceStoreHeader(blocks []domain.Block) {
	for i, b := range blocks {
		if banner, ok := domain.AsBanner(b); ok && i > 0 {
			banner.ShowStoreHeader = false
		}
	}
}

// IndexOf finds a block by stable id, then by position id. It returns -1
// when neither matches.
func IndexOf(blocks []domain.Block, id string) int {
	if id == "" {
		return -1
	}
	for i, b := range blocks {
		if b.Base().StableID == id {
			return i
		}
	}
	for i, b := range blocks {
		if b.Base().PositionID == id {
			return i
		}
	}
	return -1
}

// Find returns the block matching id.
func Find(blocks []domain.Block, id string) (domain.Block, bool) {
	i := IndexOf(blocks, id)
	if i < 0 {
		return nil, false
	}
	return blocks[i], true
}

func cloneAll(blocks []domain.Block) []domain.Block {
	out := make([]domain.Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

// Clone deep-copies a block sequence.
func Clone(blocks []domain.Block) []domain.Block {
	return cloneAll(blocks)
}
