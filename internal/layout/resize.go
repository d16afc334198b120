package layout

import (
	"fmt"

	"storefront/internal/domain"
)

const (
	DefaultMinHeight = 100
	DefaultMaxHeight = 9999
)

// Bounds are the fallback limits used when a block carries none.
type Bounds struct {
	Min int
	Max int
}

func DefaultBounds() Bounds {
	return Bounds{Min: DefaultMinHeight, Max: DefaultMaxHeight}
}

// BaselineHeight is the height a block is assumed to have before it was
// ever resized.
func BaselineHeight(t domain.BlockType) int {
	switch t {
	case domain.BlockTypeText:
		return 200
	case domain.BlockTypeGrid, domain.BlockTypeFeatured:
		return 400
	case domain.BlockTypeBanner:
		return 300
	}
	return 0
}

// Resizable reports whether blocks of type t take an explicit height.
// Lists and masonry size to their content.
func Resizable(t domain.BlockType) bool {
	return t != domain.BlockTypeList && t != domain.BlockTypeMasonry
}

// CurrentHeight is the block's height or its type baseline.
func CurrentHeight(b domain.Block) int {
	if h := b.Base().Height; h != nil {
		return *h
	}
	return BaselineHeight(b.Type())
}

// Clamp limits px to the block's own min/max, falling back to the bounds.
func (bd Bounds) Clamp(b domain.Block, px int) (int, error) {
	if !Resizable(b.Type()) {
		return 0, fmt.Errorf("%s: %w", b.Type(), ErrNotResizable)
	}
	lo, hi := bd.Min, bd.Max
	base := b.Base()
	if base.MinHeight != nil {
		lo = *base.MinHeight
	}
	if base.MaxHeight != nil {
		hi = *base.MaxHeight
	}
	if hi < lo {
		hi = lo
	}
	return min(max(px, lo), hi), nil
}
