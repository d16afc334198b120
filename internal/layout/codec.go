package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"storefront/internal/domain"
)

// Decode turns a Layout Map into an ordered block sequence. Entries are
// ordered by numeric key (ties by raw key), keys that are not non-negative
// integers are skipped, and positions are compacted to 0..N-1. Missing stable
// ids come from ids; a nil ids uses the static mode.
func Decode(m domain.LayoutMap, ids IDSource) []domain.Block {
	if ids == nil {
		ids = IDsFor(Static)
	}

	type row struct {
		key   string
		index int
		entry domain.LayoutEntry
	}
	rows := make([]row, 0, len(m))
	for k, e := range m {
		n, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || n < 0 {
			continue
		}
		rows = append(rows, row{key: k, index: n, entry: e})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].index != rows[j].index {
			return rows[i].index < rows[j].index
		}
		return rows[i].key < rows[j].key
	})

	blocks := make([]domain.Block, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, r := range rows {
		b := blockFromEntry(r.entry)
		base := b.Base()
		if base.StableID == "" || seen[base.StableID] {
			base.StableID = ids.StableID(i, r.entry.LayoutType)
		}
		seen[base.StableID] = true
		blocks = append(blocks, domain.ApplyDefaults(b))
	}
	return Reindex(blocks)
}

// DecodeJSON decodes a raw Layout Map leniently. See ParseJSON.
func DecodeJSON(raw []byte, ids IDSource) []domain.Block {
	return Decode(ParseJSON(raw), ids)
}

// ParseJSON reads a raw Layout Map. Anything that is not a JSON object (or
// an array of entries) yields an empty map.
func ParseJSON(raw []byte) domain.LayoutMap {
	m := make(domain.LayoutMap)
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return m
	}
	switch raw[0] {
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return m
		}
		for k, v := range fields {
			m[k] = decodeEntry(v)
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return m
		}
		for i, v := range items {
			m[strconv.Itoa(i)] = decodeEntry(v)
		}
	}
	return m
}

// decodeEntry never fails: an unreadable entry becomes an untyped one and
// decodes to a placeholder.
func decodeEntry(raw json.RawMessage) domain.LayoutEntry {
	var e domain.LayoutEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.LayoutEntry{}
	}
	return e
}

// Encode turns a block sequence into a Layout Map. Keys and positions always
// come from the slice index.
func Encode(blocks []domain.Block) domain.LayoutMap {
	m := make(domain.LayoutMap, len(blocks))
	for i, b := range blocks {
		e := encodeBlock(b)
		e.Position = i
		m[strconv.Itoa(i)] = e
	}
	return m
}

// EncodeJSON encodes blocks to JSON. The output is deterministic.
func EncodeJSON(blocks []domain.Block) ([]byte, error) {
	raw, err := json.Marshal(Encode(blocks))
	if err != nil {
		return nil, fmt.Errorf("encode layout: %w", err)
	}
	return raw, nil
}

func encodeBlock(b domain.Block) domain.LayoutEntry {
	if t, ok := domain.AsText(b); ok && t.Original != nil {
		e := t.Original.Clone()
		applyBase(&e, b.Base())
		return e
	}
	return entryFromBlock(b)
}

// entryFromBlock writes only the fields that belong to b's variant.
func entryFromBlock(b domain.Block) domain.LayoutEntry {
	e := domain.LayoutEntry{LayoutType: string(b.Type())}
	applyBase(&e, b.Base())

	switch v := b.(type) {
	case *domain.TextBlock:
		e.Content = v.Content
		e.FontSize = v.FontSize
		e.FontWeight = v.FontWeight
		e.FontFamily = v.FontFamily
		e.TextColor = v.TextColor
	case *domain.GridBlock:
		e.Title = v.Title
		e.ProductCount = v.ProductCount
		e.Columns = v.Columns
		e.ProductIDs = cloneIDs(v.ProductIDs)
	case *domain.FeaturedBlock:
		e.Title = v.Title
		e.Subtitle = v.Subtitle
		e.ImageURL = v.ImageURL
		e.ProductID = v.ProductID
		e.CTAText = v.CTAText
	case *domain.BannerBlock:
		e.Title = v.Title
		e.Subtitle = v.Subtitle
		e.ImageURL = v.ImageURL
		e.ProductID = v.ProductID
		e.CTAText = v.CTAText
		e.ShowStoreHeader = v.ShowStoreHeader
	case *domain.ListBlock:
		e.Title = v.Title
		e.ProductCount = v.ProductCount
		e.ListStyle = v.ListStyle
		e.ProductIDs = cloneIDs(v.ProductIDs)
	case *domain.MasonryBlock:
		e.Title = v.Title
		e.ProductCount = v.ProductCount
		e.Columns = v.Columns
		e.ProductIDs = cloneIDs(v.ProductIDs)
	}
	return e
}

func applyBase(e *domain.LayoutEntry, base *domain.BlockBase) {
	e.StableID = base.StableID
	e.Position = base.Position
	e.Spacing = string(base.Spacing)
	e.TextAlignment = string(base.TextAlignment)
	e.AlignmentSet = base.AlignmentSet
	e.BlockWidth = string(base.BlockWidth)
	e.Height = cloneInt(base.Height)
	e.MinHeight = cloneInt(base.MinHeight)
	e.MaxHeight = cloneInt(base.MaxHeight)
	e.HeightUnit = base.HeightUnit
}

func baseFromEntry(e domain.LayoutEntry) domain.BlockBase {
	return domain.BlockBase{
		StableID:      e.StableID,
		Position:      e.Position,
		Spacing:       domain.Spacing(e.Spacing),
		TextAlignment: domain.TextAlignment(e.TextAlignment),
		AlignmentSet:  e.AlignmentSet,
		BlockWidth:    domain.BlockWidth(e.BlockWidth),
		Height:        cloneInt(e.Height),
		MinHeight:     cloneInt(e.MinHeight),
		MaxHeight:     cloneInt(e.MaxHeight),
		HeightUnit:    e.HeightUnit,
	}
}

// blockFromEntry dispatches on layoutType, copying only the fields relevant
// to the variant. Unknown types become a placeholder text block that keeps
// the original entry.
func blockFromEntry(e domain.LayoutEntry) domain.Block {
	base := baseFromEntry(e)
	switch domain.BlockType(e.LayoutType) {
	case domain.BlockTypeText:
		return &domain.TextBlock{
			BlockBase:  base,
			Content:    e.Content,
			FontSize:   e.FontSize,
			FontWeight: e.FontWeight,
			FontFamily: e.FontFamily,
			TextColor:  e.TextColor,
		}
	case domain.BlockTypeGrid:
		return &domain.GridBlock{
			BlockBase:    base,
			Title:        e.Title,
			ProductCount: e.ProductCount,
			Columns:      e.Columns,
			ProductIDs:   cloneIDs(e.ProductIDs),
		}
	case domain.BlockTypeFeatured:
		return &domain.FeaturedBlock{
			BlockBase: base,
			Title:     e.Title,
			Subtitle:  e.Subtitle,
			ImageURL:  e.ImageURL,
			ProductID: e.ProductID,
			CTAText:   e.CTAText,
		}
	case domain.BlockTypeBanner:
		return &domain.BannerBlock{
			BlockBase:       base,
			Title:           e.Title,
			Subtitle:        e.Subtitle,
			ImageURL:        e.ImageURL,
			ProductID:       e.ProductID,
			CTAText:         e.CTAText,
			ShowStoreHeader: e.ShowStoreHeader,
		}
	case domain.BlockTypeList:
		return &domain.ListBlock{
			BlockBase:    base,
			Title:        e.Title,
			ProductCount: e.ProductCount,
			ListStyle:    e.ListStyle,
			ProductIDs:   cloneIDs(e.ProductIDs),
		}
	case domain.BlockTypeMasonry:
		return &domain.MasonryBlock{
			BlockBase:    base,
			Title:        e.Title,
			ProductCount: e.ProductCount,
			Columns:      e.Columns,
			ProductIDs:   cloneIDs(e.ProductIDs),
		}
	}
	// Base fields live on the block; the original keeps only the rest.
	orig := e.Clone()
	applyBase(&orig, &domain.BlockBase{})
	return &domain.TextBlock{
		BlockBase: base,
		Content:   PlaceholderText(e.LayoutType),
		Original:  &orig,
	}
}

// PlaceholderText is the message shown in place of an unsupported block.
func PlaceholderText(layoutType string) string {
	if layoutType == "" {
		return "This block could not be read."
	}
	return fmt.Sprintf("The %q block type is not supported by this version of the builder.", layoutType)
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	return append([]string(nil), ids...)
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
