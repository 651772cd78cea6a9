package terminology

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/terminology-portal/internal/platform/mongodb"
)

type entryDoc struct {
	ID          string    `bson:"_id"`
	Code        string    `bson:"code"`
	System      string    `bson:"system"`
	Term        string    `bson:"term"`
	Description string    `bson:"description,omitempty"`
	Category    string    `bson:"category,omitempty"`
	Version     string    `bson:"version"`
	IsActive    bool      `bson:"isActive"`
	CreatedBy   string    `bson:"createdBy,omitempty"`
	UpdatedBy   string    `bson:"updatedBy,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toEntryDoc(e *Entry) *entryDoc {
	return &entryDoc{
		ID: e.ID.String(), Code: e.Code, System: e.System, Term: e.Term,
		Description: e.Description, Category: e.Category, Version: e.Version,
		IsActive: e.IsActive, CreatedBy: e.CreatedBy, UpdatedBy: e.UpdatedBy,
		CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}

func (d *entryDoc) entry() (*Entry, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("terminology document id %q: %w", d.ID, err)
	}
	return &Entry{
		ID: id, Code: d.Code, System: d.System, Term: d.Term,
		Description: d.Description, Category: d.Category, Version: d.Version,
		IsActive: d.IsActive, CreatedBy: d.CreatedBy, UpdatedBy: d.UpdatedBy,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}, nil
}

type repoMongo struct {
	coll *mongo.Collection
}

func NewRepoMongo(db *mongo.Database) Repository {
	return &repoMongo{coll: db.Collection(mongodb.CollectionTerminologies)}
}

func (r *repoMongo) findOne(ctx context.Context, filter bson.M) (*Entry, error) {
	var d entryDoc
	err := r.coll.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d.entry()
}

func (r *repoMongo) FindByCodeAndSystem(ctx context.Context, code, system string) (*Entry, error) {
	e, err := r.findOne(ctx, bson.M{"code": code, "system": mongodb.ExactFold(system), "isActive": true})
	if err != nil {
		return nil, fmt.Errorf("terminology find %s/%s: %w", system, code, err)
	}
	return e, nil
}

func (r *repoMongo) FindByCode(ctx context.Context, code string) (*Entry, error) {
	e, err := r.findOne(ctx, bson.M{"code": code, "isActive": true})
	if err != nil {
		return nil, fmt.Errorf("terminology find %s: %w", code, err)
	}
	return e, nil
}

func (r *repoMongo) Search(ctx context.Context, q SearchQuery) ([]*Entry, error) {
	text := mongodb.Contains(q.Text)
	filter := bson.M{
		"isActive": true,
		"$or": []bson.M{
			{"term": text},
			{"code": text},
			{"description": text},
		},
	}
	if q.System != "" && q.System != SystemAll {
		filter["system"] = mongodb.ExactFold(q.System)
	}
	opts := options.Find().SetSort(bson.D{{Key: "term", Value: 1}}).SetLimit(int64(q.Limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("terminology search: %w", err)
	}
	var docs []entryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("terminology search decode: %w", err)
	}
	out := make([]*Entry, 0, len(docs))
	for i := range docs {
		e, err := docs[i].entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *repoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := r.findOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return nil, fmt.Errorf("terminology get %s: %w", id, err)
	}
	return e, nil
}

func (r *repoMongo) Create(ctx context.Context, e *Entry) error {
	_, err := r.coll.InsertOne(ctx, toEntryDoc(e))
	if mongodb.IsDuplicateKey(err) {
		return fmt.Errorf("terminology create %s: %w", e.Code, ErrDuplicateCode)
	}
	if err != nil {
		return fmt.Errorf("terminology create: %w", err)
	}
	return nil
}

func (r *repoMongo) Update(ctx context.Context, e *Entry) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": e.ID.String()}, bson.M{"$set": bson.M{
		"system":      e.System,
		"term":        e.Term,
		"description": e.Description,
		"category":    e.Category,
		"version":     e.Version,
		"updatedBy":   e.UpdatedBy,
		"updatedAt":   e.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("terminology update: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoMongo) Deactivate(ctx context.Context, id uuid.UUID, by string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{
		"isActive":  false,
		"updatedBy": by,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("terminology deactivate: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoMongo) Systems(ctx context.Context) ([]string, error) {
	vals, err := r.coll.Distinct(ctx, "system", bson.M{"isActive": true})
	if err != nil {
		return nil, fmt.Errorf("terminology systems: %w", err)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *repoMongo) StatsBySystem(ctx context.Context) ([]SystemCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"isActive": true}}},
		{{Key: "$group", Value: bson.M{"_id": "$system", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("terminology stats: %w", err)
	}
	var rows []struct {
		System string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("terminology stats decode: %w", err)
	}
	out := make([]SystemCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, SystemCount{System: row.System, Count: row.Count})
	}
	return out, nil
}
