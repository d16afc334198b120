package layout

import (
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

var ErrInvalidPatch = errors.New("invalid block patch")

// Patch is a partial block in Layout Map field names ("content",
// "columns", "textAlignment", ...). A nil value clears the field.
type Patch map[string]any

// identity and ordering are owned by the engine
var protectedKeys = map[string]bool{
	"type":       true,
	"layoutType": true,
	"stableId":   true,
	"position":   true,
	"positionId": true,
}

// baseKeys are the fields every block carries, whatever its variant.
var baseKeys = map[string]bool{
	"spacing":       true,
	"textAlignment": true,
	"alignmentSet":  true,
	"blockWidth":    true,
	"height":        true,
	"minHeight":     true,
	"maxHeight":     true,
	"heightUnit":    true,
}

// apply shallow-merges p into a copy of b. Setting textAlignment marks the
// alignment as chosen so the legacy rewrite leaves it alone.
func (p Patch) apply(b domain.Block) (domain.Block, error) {
	if domain.IsPlaceholder(b) {
		return p.patchBase(b)
	}
	merged, err := p.merge(entryFromBlock(b))
	if err != nil {
		return nil, err
	}
	out := blockFromEntry(merged)
	out.Base().PositionID = b.Base().PositionID
	return domain.ApplyDefaults(out), nil
}

// patchBase patches the shared fields of a block standing in for an
// unsupported type. Its original entry is kept as is, so variant fields
// cannot be patched.
func (p Patch) patchBase(b domain.Block) (domain.Block, error) {
	for k := range p {
		if !protectedKeys[k] && !baseKeys[k] {
			return nil, fmt.Errorf("%w: %q cannot be set on an unsupported block type", ErrInvalidPatch, k)
		}
	}
	var e domain.LayoutEntry
	applyBase(&e, b.Base())
	merged, err := p.merge(e)
	if err != nil {
		return nil, err
	}
	out := b.Clone()
	base := out.Base()
	positionID := base.PositionID
	*base = baseFromEntry(merged)
	base.PositionID = positionID
	return domain.ApplyDefaults(out), nil
}

// merge overlays p on e through the entry's JSON form.
func (p Patch) merge(e domain.LayoutEntry) (domain.LayoutEntry, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return domain.LayoutEntry{}, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.LayoutEntry{}, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	for k, v := range p {
		if protectedKeys[k] {
			continue
		}
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}
	if v, ok := p["textAlignment"]; ok && v != nil {
		fields["alignmentSet"] = true
	}

	if raw, err = json.Marshal(fields); err != nil {
		return domain.LayoutEntry{}, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	var merged domain.LayoutEntry
	if err := json.Unmarshal(raw, &merged); err != nil {
		return domain.LayoutEntry{}, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	merged.Extra = nil
	return merged, nil
}

// Keys returns the patch keys the engine would apply.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if !protectedKeys[k] {
			keys = append(keys, k)
		}
	}
	return keys
}
