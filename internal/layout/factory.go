package layout

import (
	"fmt"

	"storefront/internal/domain"
)

// NewBlock builds a block of type t at position with the type's default
// content and a fresh stable id.
func (e *Engine) NewBlock(t domain.BlockType, position int) (domain.Block, error) {
	base := domain.BlockBase{
		StableID:   e.ids.StableID(position, string(t)),
		Position:   position,
		PositionID: domain.PositionID(position),
	}

	var b domain.Block
	switch t {
	case domain.BlockTypeText:
		b = &domain.TextBlock{
			BlockBase:  base,
			Content:    "Tell your customers about your store.",
			FontSize:   "base",
			FontWeight: "normal",
		}
	case domain.BlockTypeGrid:
		b = &domain.GridBlock{
			BlockBase:    base,
			Title:        "Our products",
			ProductCount: 8,
			Columns:      4,
		}
	case domain.BlockTypeFeatured:
		b = &domain.FeaturedBlock{
			BlockBase: base,
			Title:     "Featured product",
			Subtitle:  "Hand-picked for you",
			CTAText:   "Shop now",
		}
	case domain.BlockTypeBanner:
		b = &domain.BannerBlock{
			BlockBase: base,
			Title:     "Welcome to our store",
			Subtitle:  "Discover our latest products",
			CTAText:   "Shop now",
		}
	case domain.BlockTypeList:
		b = &domain.ListBlock{
			BlockBase:    base,
			Title:        "Products",
			ProductCount: 5,
			ListStyle:    "detailed",
		}
	case domain.BlockTypeMasonry:
		b = &domain.MasonryBlock{
			BlockBase:    base,
			Title:        "Gallery",
			ProductCount: 9,
			Columns:      3,
		}
	default:
		return nil, fmt.Errorf("new block %q: %w", t, ErrUnknownType)
	}
	return domain.ApplyDefaults(b), nil
}
