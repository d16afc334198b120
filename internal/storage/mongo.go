package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"storefront/internal/domain"
)

// MongoStore implements the page, revision and product stores on MongoDB.
// Layouts are stored as JSON strings so numeric map keys survive intact.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

type pageDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Layout    string    `bson:"layout"`
	Version   int64     `bson:"version"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type revisionDoc struct {
	ID        string    `bson:"_id"`
	PageID    string    `bson:"pageId"`
	ParentID  *string   `bson:"parentId"`
	Label     string    `bson:"label"`
	Layout    string    `bson:"layout"`
	CreatedAt time.Time `bson:"createdAt"`
}

type productDoc struct {
	ID        string  `bson:"_id"`
	Name      string  `bson:"name"`
	Price     float64 `bson:"price"`
	ImageURL  string  `bson:"imageUrl"`
	Available bool    `bson:"available"`
	SortOrder int     `bson:"sortOrder"`
}

// OpenMongo connects to uri and uses database dbName.
func OpenMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	if dbName == "" {
		dbName = "storefront"
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) pages() *mongo.Collection     { return s.db.Collection("pages") }
func (s *MongoStore) revisions() *mongo.Collection { return s.db.Collection("layout_revisions") }
func (s *MongoStore) products() *mongo.Collection  { return s.db.Collection("products") }

// ─── Pages ─────────────────────────────────────────────────

func (s *MongoStore) CreatePage(ctx context.Context, p *domain.Page) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if len(p.Layout) == 0 {
		p.Layout = json.RawMessage("{}")
	}
	_, err := s.pages().InsertOne(ctx, pageDoc{
		ID:        p.ID,
		Name:      p.Name,
		Layout:    string(p.Layout),
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

func (s *MongoStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	var doc pageDoc
	err := s.pages().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get page %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	return &domain.Page{
		ID:        doc.ID,
		Name:      doc.Name,
		Layout:    json.RawMessage(doc.Layout),
		Version:   doc.Version,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) ListPages(ctx context.Context) ([]domain.Page, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"layout": 0})
	cursor, err := s.pages().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	var docs []pageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	pages := make([]domain.Page, 0, len(docs))
	for _, d := range docs {
		pages = append(pages, domain.Page{ID: d.ID, Name: d.Name, Version: d.Version, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt})
	}
	return pages, nil
}

func (s *MongoStore) SaveLayout(ctx context.Context, id string, layout json.RawMessage) error {
	res, err := s.pages().UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"layout": string(layout), "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return fmt.Errorf("save layout: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("save layout %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) RenamePage(ctx context.Context, id, name string) error {
	res, err := s.pages().UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"name": name, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("rename page: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("rename page %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) DeletePage(ctx context.Context, id string) error {
	if err := s.DeleteRevisions(ctx, id); err != nil {
		return err
	}
	res, err := s.pages().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete page %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) PageFingerprint(ctx context.Context, id string) (string, error) {
	var doc struct {
		Version int64 `bson:"version"`
	}
	err := s.pages().FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"version": 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("fingerprint %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return strconv.FormatInt(doc.Version, 10), nil
}

// ─── Revisions ─────────────────────────────────────────────

func (s *MongoStore) PushRevision(ctx context.Context, pageID, label string, layout json.RawMessage, limit int) (*domain.Revision, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var parentID *string
	var head revisionDoc
	err := s.revisions().FindOne(ctx, bson.M{"pageId": pageID},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})).Decode(&head)
	switch {
	case err == nil:
		parentID = &head.ID
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, fmt.Errorf("load head revision: %w", err)
	}

	doc := revisionDoc{
		ID:        ulid.Make().String(),
		PageID:    pageID,
		ParentID:  parentID,
		Label:     label,
		Layout:    string(layout),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.revisions().InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}

	var cutoff revisionDoc
	err = s.revisions().FindOne(ctx, bson.M{"pageId": pageID},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}).SetSkip(int64(limit-1))).Decode(&cutoff)
	if err == nil {
		if _, err := s.revisions().DeleteMany(ctx, bson.M{"pageId": pageID, "_id": bson.M{"$lt": cutoff.ID}}); err != nil {
			return nil, fmt.Errorf("prune revisions: %w", err)
		}
		if _, err := s.revisions().UpdateOne(ctx, bson.M{"_id": cutoff.ID}, bson.M{"$set": bson.M{"parentId": nil}}); err != nil {
			return nil, fmt.Errorf("re-root revisions: %w", err)
		}
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("prune revisions: %w", err)
	}

	return revisionFromDoc(doc), nil
}

func (s *MongoStore) ListRevisions(ctx context.Context, pageID string) ([]domain.Revision, error) {
	cursor, err := s.revisions().Find(ctx, bson.M{"pageId": pageID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	var docs []revisionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	revs := make([]domain.Revision, 0, len(docs))
	for _, d := range docs {
		revs = append(revs, *revisionFromDoc(d))
	}
	return revs, nil
}

func (s *MongoStore) GetRevision(ctx context.Context, id string) (*domain.Revision, error) {
	var doc revisionDoc
	err := s.revisions().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get revision %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get revision: %w", err)
	}
	return revisionFromDoc(doc), nil
}

func (s *MongoStore) DeleteRevisions(ctx context.Context, pageID string) error {
	if _, err := s.revisions().DeleteMany(ctx, bson.M{"pageId": pageID}); err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	return nil
}

func revisionFromDoc(d revisionDoc) *domain.Revision {
	return &domain.Revision{
		ID:        d.ID,
		PageID:    d.PageID,
		ParentID:  d.ParentID,
		Label:     d.Label,
		Layout:    json.RawMessage(d.Layout),
		CreatedAt: d.CreatedAt,
	}
}

// ─── Products ──────────────────────────────────────────────

func (s *MongoStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	cursor, err := s.products().Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "sortOrder", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, domain.Product{ID: d.ID, Name: d.Name, Price: d.Price, ImageURL: d.ImageURL, Available: d.Available})
	}
	return products, nil
}

func (s *MongoStore) UpsertProducts(ctx context.Context, products []domain.Product) error {
	for i, p := range products {
		doc := productDoc{ID: p.ID, Name: p.Name, Price: p.Price, ImageURL: p.ImageURL, Available: p.Available, SortOrder: i}
		_, err := s.products().ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("upsert product %q: %w", p.ID, err)
		}
	}
	return nil
}
