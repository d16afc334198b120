package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Page is a storefront page. Layout holds the raw persisted Layout Map;
// it is decoded leniently so a corrupt column never blocks loading.
// Version increments on every layout save.
type Page struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Layout    json.RawMessage `json:"layout"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Revision is one saved version of a page layout. Revisions form a chain
// through ParentID, newest last.
type Revision struct {
	ID        string          `json:"id"`
	PageID    string          `json:"pageId"`
	ParentID  *string         `json:"parentId,omitempty"`
	Label     string          `json:"label"`
	Layout    json.RawMessage `json:"layout"`
	CreatedAt time.Time       `json:"createdAt"`
}

type PageStore interface {
	CreatePage(ctx context.Context, p *Page) error
	GetPage(ctx context.Context, id string) (*Page, error)
	ListPages(ctx context.Context) ([]Page, error)
	SaveLayout(ctx context.Context, id string, layout json.RawMessage) error
	RenamePage(ctx context.Context, id, name string) error
	DeletePage(ctx context.Context, id string) error
	// PageFingerprint changes whenever the page's layout is rewritten.
	PageFingerprint(ctx context.Context, id string) (string, error)
}

type RevisionStore interface {
	PushRevision(ctx context.Context, pageID, label string, layout json.RawMessage, limit int) (*Revision, error)
	ListRevisions(ctx context.Context, pageID string) ([]Revision, error)
	GetRevision(ctx context.Context, id string) (*Revision, error)
	DeleteRevisions(ctx context.Context, pageID string) error
}
