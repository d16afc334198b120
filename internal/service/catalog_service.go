package service

import (
	"context"
	"fmt"

	"storefront/internal/domain"
)

// CatalogService exposes the product catalog that collection and featured
// blocks draw from. The builder only reads it.
type CatalogService struct {
	store domain.ProductStore
}

func NewCatalogService(store domain.ProductStore) *CatalogService {
	return &CatalogService{store: store}
}

// Snapshot returns the catalog in display order.
func (s *CatalogService) Snapshot(ctx context.Context) (domain.Catalog, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return domain.Catalog(products), nil
}

// ProductsFor resolves the products block b displays.
func (s *CatalogService) ProductsFor(ctx context.Context, b domain.Block) ([]domain.Product, error) {
	catalog, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.ProductsFor(b), nil
}

// Seed replaces the display order with products, inserting or updating
// each one.
func (s *CatalogService) Seed(ctx context.Context, products []domain.Product) error {
	for _, p := range products {
		if p.ID == "" {
			return fmt.Errorf("seed catalog: product %q has no id", p.Name)
		}
	}
	return s.store.UpsertProducts(ctx, products)
}
