package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/domain"
)

// PageStore implements domain.PageStore over SQL.
type PageStore struct {
	db *DB
}

func NewPageStore(db *DB) *PageStore {
	return &PageStore{db: db}
}

func (s *PageStore) CreatePage(ctx context.Context, p *domain.Page) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if len(p.Layout) == 0 {
		p.Layout = json.RawMessage("{}")
	}
	_, err := s.db.exec(ctx,
		`INSERT INTO pages (id, name, layout_json, version, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Layout), p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

func (s *PageStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	p := &domain.Page{}
	var layout string
	err := s.db.queryRow(ctx,
		`SELECT id, name, layout_json, version, created_at, updated_at FROM pages WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &layout, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get page %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	p.Layout = json.RawMessage(layout)
	return p, nil
}

// ListPages returns pages without their layouts, oldest first.
func (s *PageStore) ListPages(ctx context.Context) ([]domain.Page, error) {
	rows, err := s.db.query(ctx,
		`SELECT id, name, version, created_at, updated_at FROM pages ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.Page
	for rows.Next() {
		var p domain.Page
		if err := rows.Scan(&p.ID, &p.Name, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *PageStore) SaveLayout(ctx context.Context, id string, layout json.RawMessage) error {
	res, err := s.db.exec(ctx,
		`UPDATE pages SET layout_json = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		string(layout), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("save layout: %w", err)
	}
	return requireRow(res, "save layout", id)
}

func (s *PageStore) RenamePage(ctx context.Context, id, name string) error {
	res, err := s.db.exec(ctx,
		`UPDATE pages SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("rename page: %w", err)
	}
	return requireRow(res, "rename page", id)
}

// DeletePage removes the page and its revision history.
func (s *PageStore) DeletePage(ctx context.Context, id string) error {
	return s.db.inTx(ctx, func(t tx) error {
		if _, err := t.exec(ctx, `DELETE FROM layout_revisions WHERE page_id = ?`, id); err != nil {
			return fmt.Errorf("delete revisions: %w", err)
		}
		res, err := t.exec(ctx, `DELETE FROM pages WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete page: %w", err)
		}
		return requireRow(res, "delete page", id)
	})
}

// PageFingerprint is the page's layout version.
func (s *PageStore) PageFingerprint(ctx context.Context, id string) (string, error) {
	var version int64
	err := s.db.queryRow(ctx, `SELECT version FROM pages WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("fingerprint %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return strconv.FormatInt(version, 10), nil
}

func requireRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %q: rows affected: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", op, id, ErrNotFound)
	}
	return nil
}
