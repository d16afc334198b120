package storage

import (
	"context"
	"fmt"

	"storefront/internal/domain"
)

// ProductStore is the read side of the catalog plus a bulk upsert used to
// seed it.
type ProductStore struct {
	db *DB
}

func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

func (s *ProductStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.query(ctx,
		`SELECT id, name, price, image_url, available FROM products ORDER BY sort_order ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL, &p.Available); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpsertProducts inserts or replaces products. Slice order becomes the
// catalog order.
func (s *ProductStore) UpsertProducts(ctx context.Context, products []domain.Product) error {
	q := s.db.dialect.upsert("products", "id", "id", "name", "price", "image_url", "available", "sort_order")
	return s.db.inTx(ctx, func(t tx) error {
		for i, p := range products {
			if _, err := t.exec(ctx, q, p.ID, p.Name, p.Price, p.ImageURL, p.Available, i); err != nil {
				return fmt.Errorf("upsert product %q: %w", p.ID, err)
			}
		}
		return nil
	})
}
