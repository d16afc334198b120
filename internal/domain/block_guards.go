package domain

func AsText(b Block) (*TextBlock, bool) {
	t, ok := b.(*TextBlock)
	return t, ok
}

func AsGrid(b Block) (*GridBlock, bool) {
	g, ok := b.(*GridBlock)
	return g, ok
}

func AsFeatured(b Block) (*FeaturedBlock, bool) {
	f, ok := b.(*FeaturedBlock)
	return f, ok
}

func AsBanner(b Block) (*BannerBlock, bool) {
	bn, ok := b.(*BannerBlock)
	return bn, ok
}

func AsList(b Block) (*ListBlock, bool) {
	l, ok := b.(*ListBlock)
	return l, ok
}

func AsMasonry(b Block) (*MasonryBlock, bool) {
	m, ok := b.(*MasonryBlock)
	return m, ok
}

func IsText(b Block) bool     { return b.Type() == BlockTypeText }
func IsGrid(b Block) bool     { return b.Type() == BlockTypeGrid }
func IsFeatured(b Block) bool { return b.Type() == BlockTypeFeatured }
func IsBanner(b Block) bool   { return b.Type() == BlockTypeBanner }
func IsList(b Block) bool     { return b.Type() == BlockTypeList }
func IsMasonry(b Block) bool  { return b.Type() == BlockTypeMasonry }

// IsPlaceholder reports whether b stands in for an unsupported entry.
func IsPlaceholder(b Block) bool {
	t, ok := AsText(b)
	return ok && t.Original != nil
}

// ─── Defaults ──────────────────────────────────────────────

const (
	DefaultSpacing       = SpacingNormal
	DefaultTextAlignment = AlignCenter
	DefaultBlockWidth    = WidthContained
)

// ApplyDefaults returns a copy of b with absent spacing, alignment and width
// filled in. Present values are kept, so applying it twice is a no-op.
func ApplyDefaults(b Block) Block {
	c := b.Clone()
	base := c.Base()
	if base.Spacing == "" {
		base.Spacing = DefaultSpacing
	}
	if base.TextAlignment == "" {
		base.TextAlignment = DefaultTextAlignment
	}
	if base.BlockWidth == "" {
		base.BlockWidth = DefaultBlockWidth
	}
	return c
}

// MissingDefaults reports whether any defaulted field is absent.
func MissingDefaults(b Block) bool {
	base := b.Base()
	return base.Spacing == "" || base.TextAlignment == "" || base.BlockWidth == ""
}

// HasLegacyAlignment reports a left alignment that predates the center
// default and was never picked explicitly.
func HasLegacyAlignment(b Block) bool {
	base := b.Base()
	return base.TextAlignment == AlignLeft && !base.AlignmentSet
}

// NeedsDefaults reports whether the backfill pass would change b.
func NeedsDefaults(b Block) bool {
	return MissingDefaults(b) || HasLegacyAlignment(b)
}
