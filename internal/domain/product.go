package domain

import "context"

// Product is a read-only catalog entry referenced by product blocks.
type Product struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ImageURL  string  `json:"imageUrl"`
	Available bool    `json:"available"`
}

type ProductStore interface {
	ListProducts(ctx context.Context) ([]Product, error)
	UpsertProducts(ctx context.Context, products []Product) error
}

// Catalog is a snapshot of the product list.
type Catalog []Product

// Lookup returns the product with the given id.
func (c Catalog) Lookup(id string) (Product, bool) {
	for _, p := range c {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// ProductsFor resolves the products a block displays. Collections use their
// explicit ids when present and otherwise the first available products up
// to the count cap. Showcases resolve their linked product.
func (c Catalog) ProductsFor(b Block) []Product {
	switch v := b.(type) {
	case *GridBlock:
		return c.collection(v.ProductIDs, v.ProductCount)
	case *ListBlock:
		return c.collection(v.ProductIDs, v.ProductCount)
	case *MasonryBlock:
		return c.collection(v.ProductIDs, v.ProductCount)
	case *FeaturedBlock:
		return c.linked(v.ProductID)
	case *BannerBlock:
		return c.linked(v.ProductID)
	}
	return nil
}

func (c Catalog) collection(ids []string, limit int) []Product {
	var out []Product
	if len(ids) > 0 {
		for _, id := range ids {
			if p, ok := c.Lookup(id); ok {
				out = append(out, p)
			}
		}
	} else {
		for _, p := range c {
			if p.Available {
				out = append(out, p)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (c Catalog) linked(id string) []Product {
	if id == "" {
		return nil
	}
	if p, ok := c.Lookup(id); ok {
		return []Product{p}
	}
	return nil
}
