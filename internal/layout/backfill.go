package layout

import "storefront/internal/domain"

// MapNeedsBackfill reports whether a persisted map has an entry missing a
// defaulted field or still carrying the legacy left alignment. Decode fills
// missing fields in memory, so this check runs on the stored form.
func MapNeedsBackfill(m domain.LayoutMap) bool {
	for _, e := range m {
		if e.Spacing == "" || e.TextAlignment == "" || e.BlockWidth == "" {
			return true
		}
		if domain.TextAlignment(e.TextAlignment) == domain.AlignLeft && !e.AlignmentSet {
			return true
		}
	}
	return false
}

// NeedsBackfill is MapNeedsBackfill for an in-memory sequence.
func NeedsBackfill(blocks []domain.Block) bool {
	for _, b := range blocks {
		if domain.NeedsDefaults(b) {
			return true
		}
	}
	return false
}

// Backfill returns a copy of the sequence with defaults applied to every
// block and legacy alignments reset to the current default. Applying it to
// its own output changes nothing. The bool reports whether any block in
// memory was altered.
func Backfill(blocks []domain.Block) ([]domain.Block, bool) {
	changed := false
	out := make([]domain.Block, len(blocks))
	for i, b := range blocks {
		c := b.Clone()
		if domain.NeedsDefaults(c) {
			changed = true
		}
		if domain.HasLegacyAlignment(c) {
			c.Base().TextAlignment = ""
		}
		out[i] = domain.ApplyDefaults(c)
	}
	return out, changed
}
