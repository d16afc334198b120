package domain

import "strconv"

// BlockType discriminates the block union. It is persisted as layoutType.
type BlockType string

const (
	BlockTypeText     BlockType = "text"
	BlockTypeGrid     BlockType = "grid"
	BlockTypeFeatured BlockType = "featured"
	BlockTypeBanner   BlockType = "banner"
	BlockTypeList     BlockType = "list"
	BlockTypeMasonry  BlockType = "masonry"
)

// BlockTypes lists every supported variant in palette order.
var BlockTypes = []BlockType{
	BlockTypeText,
	BlockTypeGrid,
	BlockTypeFeatured,
	BlockTypeBanner,
	BlockTypeList,
	BlockTypeMasonry,
}

func (t BlockType) Valid() bool {
	switch t {
	case BlockTypeText, BlockTypeGrid, BlockTypeFeatured, BlockTypeBanner, BlockTypeList, BlockTypeMasonry:
		return true
	}
	return false
}

type Spacing string

const (
	SpacingNone     Spacing = "none"
	SpacingCompact  Spacing = "compact"
	SpacingNormal   Spacing = "normal"
	SpacingSpacious Spacing = "spacious"
)

type TextAlignment string

const (
	AlignLeft   TextAlignment = "left"
	AlignCenter TextAlignment = "center"
	AlignRight  TextAlignment = "right"
)

type BlockWidth string

const (
	WidthContained BlockWidth = "contained"
	WidthFull      BlockWidth = "full"
)

// BlockBase holds the fields shared by every variant. Empty enum values
// mean "absent"; ApplyDefaults fills them.
type BlockBase struct {
	// PositionID is derived from Position and never persisted.
	PositionID string
	StableID   string
	Position   int

	Spacing       Spacing
	TextAlignment TextAlignment
	// AlignmentSet marks an alignment chosen by the merchant, which exempts
	// a left alignment from the legacy rewrite.
	AlignmentSet bool
	BlockWidth   BlockWidth

	Height     *int
	MinHeight  *int
	MaxHeight  *int
	HeightUnit string
}

// Block is the closed union of page blocks. Narrow it with a type switch or
// one of the As* guards.
type Block interface {
	Type() BlockType
	Base() *BlockBase
	Clone() Block
}

type TextBlock struct {
	BlockBase
	Content    string
	FontSize   string
	FontWeight string
	FontFamily string
	TextColor  string

	// Original is set when the block stands in for an entry whose layoutType
	// this build does not know. Encoding writes it back unchanged.
	Original *LayoutEntry
}

type GridBlock struct {
	BlockBase
	Title        string
	ProductCount int
	Columns      int
	ProductIDs   []string
}

type FeaturedBlock struct {
	BlockBase
	Title     string
	Subtitle  string
	ImageURL  string
	ProductID string
	CTAText   string
}

type BannerBlock struct {
	BlockBase
	Title     string
	Subtitle  string
	ImageURL  string
	ProductID string
	CTAText   string
	// ShowStoreHeader is only honoured on the first block of a page.
	ShowStoreHeader bool
}

type ListBlock struct {
	BlockBase
	Title        string
	ProductCount int
	ListStyle    string
	ProductIDs   []string
}

type MasonryBlock struct {
	BlockBase
	Title        string
	ProductCount int
	Columns      int
	ProductIDs   []string
}

func (b *TextBlock) Type() BlockType     { return BlockTypeText }
func (b *GridBlock) Type() BlockType     { return BlockTypeGrid }
func (b *FeaturedBlock) Type() BlockType { return BlockTypeFeatured }
func (b *BannerBlock) Type() BlockType   { return BlockTypeBanner }
func (b *ListBlock) Type() BlockType     { return BlockTypeList }
func (b *MasonryBlock) Type() BlockType  { return BlockTypeMasonry }

func (b *TextBlock) Base() *BlockBase     { return &b.BlockBase }
func (b *GridBlock) Base() *BlockBase     { return &b.BlockBase }
func (b *FeaturedBlock) Base() *BlockBase { return &b.BlockBase }
func (b *BannerBlock) Base() *BlockBase   { return &b.BlockBase }
func (b *ListBlock) Base() *BlockBase     { return &b.BlockBase }
func (b *MasonryBlock) Base() *BlockBase  { return &b.BlockBase }

func (b *TextBlock) Clone() Block {
	c := *b
	c.BlockBase = b.BlockBase.clone()
	if b.Original != nil {
		orig := b.Original.Clone()
		c.Original = &orig
	}
	return &c
}

func (b *GridBlock) Clone() Block {
	c := *b
	c.BlockBase = b.BlockBase.clone()
	c.ProductIDs = cloneStrings(b.ProductIDs)
	return &c
}

func (b *FeaturedBlock) Clone() Block {
	c := *b
	c.BlockBase = b.BlockBase.clone()
	return &c
}

func (b *BannerBlock) Clone() Block {
	c := *b
	c.BlockBase = b.BlockBase.clone()
	return &c
}

func (b *ListBlock) Clone() Block {
	c := *b
	c.BlockBase = b.BlockBase.clone()
	c.ProductIDs = cloneStrings(b.ProductIDs)
	return &c
}

func (b *MasonryBlock) Clone() Block {
	c := *b
	c.BlockBase = b.BlockBase.clone()
	c.ProductIDs = cloneStrings(b.ProductIDs)
	return &c
}

func (b BlockBase) clone() BlockBase {
	b.Height = cloneInt(b.Height)
	b.MinHeight = cloneInt(b.MinHeight)
	b.MaxHeight = cloneInt(b.MaxHeight)
	return b
}

// PositionID returns the position-based identifier for index i.
func PositionID(i int) string {
	return "block-" + strconv.Itoa(i)
}

// IntPtr is a convenience for optional size fields.
func IntPtr(v int) *int { return &v }

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
