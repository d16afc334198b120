package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"storefront/internal/domain"
)

// DefaultHistoryLimit caps the revisions kept per page.
const DefaultHistoryLimit = 40

// RevisionStore keeps a linear, time-ordered history of page layouts. Ids
// are ULIDs, so ordering by id is ordering by creation.
type RevisionStore struct {
	db *DB
}

func NewRevisionStore(db *DB) *RevisionStore {
	return &RevisionStore{db: db}
}

// PushRevision appends a revision after the page's newest one and prunes
// the history to limit entries (DefaultHistoryLimit when limit <= 0).
func (s *RevisionStore) PushRevision(ctx context.Context, pageID, label string, layout json.RawMessage, limit int) (*domain.Revision, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var parentID *string
	var head string
	err := s.db.queryRow(ctx,
		`SELECT id FROM layout_revisions WHERE page_id = ? ORDER BY id DESC LIMIT 1`, pageID,
	).Scan(&head)
	switch {
	case err == nil:
		parentID = &head
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("load head revision: %w", err)
	}

	rev := &domain.Revision{
		ID:        ulid.Make().String(),
		PageID:    pageID,
		ParentID:  parentID,
		Label:     label,
		Layout:    layout,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.exec(ctx,
		`INSERT INTO layout_revisions (id, page_id, parent_id, label, layout_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.PageID, rev.ParentID, rev.Label, string(rev.Layout), rev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}

	if err := s.prune(ctx, pageID, limit); err != nil {
		return nil, err
	}
	return rev, nil
}

// ListRevisions returns the page's history, oldest first.
func (s *RevisionStore) ListRevisions(ctx context.Context, pageID string) ([]domain.Revision, error) {
	rows, err := s.db.query(ctx,
		`SELECT id, page_id, parent_id, label, layout_json, created_at
		 FROM layout_revisions WHERE page_id = ? ORDER BY id ASC`, pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var revs []domain.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revs = append(revs, *rev)
	}
	return revs, rows.Err()
}

func (s *RevisionStore) GetRevision(ctx context.Context, id string) (*domain.Revision, error) {
	row := s.db.queryRow(ctx,
		`SELECT id, page_id, parent_id, label, layout_json, created_at
		 FROM layout_revisions WHERE id = ?`, id,
	)
	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get revision %q: %w", id, ErrNotFound)
	}
	return rev, err
}

func (s *RevisionStore) DeleteRevisions(ctx context.Context, pageID string) error {
	if _, err := s.db.exec(ctx, `DELETE FROM layout_revisions WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	return nil
}

// prune drops revisions older than the limit-th newest and makes the oldest
// survivor the new root.
func (s *RevisionStore) prune(ctx context.Context, pageID string, limit int) error {
	var cutoff string
	err := s.db.queryRow(ctx,
		`SELECT id FROM layout_revisions WHERE page_id = ? ORDER BY id DESC LIMIT 1 OFFSET ?`,
		pageID, limit-1,
	).Scan(&cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("prune revisions: %w", err)
	}

	return s.db.inTx(ctx, func(t tx) error {
		if _, err := t.exec(ctx, `DELETE FROM layout_revisions WHERE page_id = ? AND id < ?`, pageID, cutoff); err != nil {
			return fmt.Errorf("prune revisions: %w", err)
		}
		if _, err := t.exec(ctx, `UPDATE layout_revisions SET parent_id = NULL WHERE id = ?`, cutoff); err != nil {
			return fmt.Errorf("re-root revisions: %w", err)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRevision(row scanner) (*domain.Revision, error) {
	var rev domain.Revision
	var parent sql.NullString
	var layout string
	if err := row.Scan(&rev.ID, &rev.PageID, &parent, &rev.Label, &layout, &rev.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan revision: %w", err)
	}
	if parent.Valid {
		p := parent.String
		rev.ParentID = &p
	}
	rev.Layout = json.RawMessage(layout)
	return &rev, nil
}
