package layout_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/layout"
)

// sequentialIDs hands out predictable stable ids.
func sequentialIDs() layout.IDSource {
	n := 0
	return layout.IDSourceFunc(func(int, string) string {
		n++
		return fmt.Sprintf("sid-%d", n)
	})
}

func newEngine() *layout.Engine {
	return layout.NewEngine(layout.WithIDs(sequentialIDs()))
}

// textSeq builds a sequence of text blocks whose content is the given names.
func textSeq(t *testing.T, e *layout.Engine, names ...string) []domain.Block {
	t.Helper()
	var blocks []domain.Block
	for _, name := range names {
		res, err := e.Insert(blocks, domain.BlockTypeText, nil, layout.Patch{"content": name})
		require.NoError(t, err)
		blocks = res.Blocks
	}
	return blocks
}

func contents(blocks []domain.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		if tb, ok := domain.AsText(b); ok {
			out[i] = tb.Content
		} else {
			out[i] = string(b.Type())
		}
	}
	return out
}

func stableIDs(blocks []domain.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Base().StableID
	}
	return out
}

func requireIndexed(t *testing.T, blocks []domain.Block) {
	t.Helper()
	for i, b := range blocks {
		require.Equal(t, i, b.Base().Position, "position of block %d", i)
		require.Equal(t, fmt.Sprintf("block-%d", i), b.Base().PositionID)
	}
}
