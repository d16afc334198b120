package layout

import "storefront/internal/domain"

// Summary is the read model of one block for API consumers: the encoded
// entry plus its derived position id.
type Summary struct {
	PositionID  string             `json:"positionId"`
	Placeholder bool               `json:"placeholder,omitempty"`
	Block       domain.LayoutEntry `json:"block"`
}

func Summarize(blocks []domain.Block) []Summary {
	out := make([]Summary, len(blocks))
	for i, b := range blocks {
		out[i] = Summary{
			PositionID:  b.Base().PositionID,
			Placeholder: domain.IsPlaceholder(b),
			Block:       encodeBlock(b),
		}
	}
	return out
}
