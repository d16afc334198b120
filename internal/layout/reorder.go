package layout

import (
	"errors"
	"fmt"

	"storefront/internal/domain"
)

var ErrIndexOutOfRange = errors.New("index out of range")

// Reorder removes the block at from and reinserts it at to, then re-indexes.
// Unlike Move it can cross any distance in one step.
func Reorder(blocks []domain.Block, from, to int) ([]domain.Block, error) {
	n := len(blocks)
	if from < 0 || from >= n {
		return nil, fmt.Errorf("reorder from %d: %w", from, ErrIndexOutOfRange)
	}
	if to < 0 || to >= n {
		return nil, fmt.Errorf("reorder to %d: %w", to, ErrIndexOutOfRange)
	}
	seq := cloneAll(blocks)
	moved := seq[from]
	seq = append(seq[:from], seq[from+1:]...)
	seq = append(seq[:to], append([]domain.Block{moved}, seq[to:]...)...)
	return Reindex(seq), nil
}

// Hint describes where a dragged block would land: the stable ids of the
// blocks that would sit directly above and below it. Either may be empty at
// the ends of the page.
type Hint struct {
	Index int    `json:"index"`
	Above string `json:"above,omitempty"`
	Below string `json:"below,omitempty"`
}

// DropHint computes the advisory neighbours for dropping the block at from
// onto index to. It does not modify blocks.
func DropHint(blocks []domain.Block, from, to int) (Hint, error) {
	n := len(blocks)
	if from < 0 || from >= n {
		return Hint{}, fmt.Errorf("drop hint from %d: %w", from, ErrIndexOutOfRange)
	}
	if to < 0 || to >= n {
		return Hint{}, fmt.Errorf("drop hint to %d: %w", to, ErrIndexOutOfRange)
	}
	rest := make([]string, 0, n-1)
	for i, b := range blocks {
		if i != from {
			rest = append(rest, b.Base().StableID)
		}
	}
	h := Hint{Index: to}
	if to > 0 {
		h.Above = rest[to-1]
	}
	if to < len(rest) {
		h.Below = rest[to]
	}
	return h, nil
}
