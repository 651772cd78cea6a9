package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/terminology-portal/internal/platform/mongodb"
)

type termDoc struct {
	Term        string  `bson:"term"`
	Code        string  `bson:"code"`
	System      string  `bson:"system"`
	Confidence  float64 `bson:"confidence,omitempty"`
	MappingType string  `bson:"mappingType,omitempty"`
}

type recordDoc struct {
	ID          string     `bson:"_id"`
	SourceTerm  termDoc    `bson:"sourceTerm"`
	MappedTerms []termDoc  `bson:"mappedTerms"`
	Status      string     `bson:"status"`
	IsActive    bool       `bson:"isActive"`
	Version     string     `bson:"version"`
	Notes       string     `bson:"notes,omitempty"`
	ReviewedBy  string     `bson:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time `bson:"reviewedAt,omitempty"`
	CreatedBy   string     `bson:"createdBy,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
}

func toRecordDoc(r *Record) *recordDoc {
	d := &recordDoc{
		ID:         r.ID.String(),
		SourceTerm: termDoc{Term: r.SourceTerm.Term, Code: r.SourceTerm.Code, System: r.SourceTerm.System},
		Status:     r.Status, IsActive: r.IsActive, Version: r.Version, Notes: r.Notes,
		ReviewedBy: r.ReviewedBy, ReviewedAt: r.ReviewedAt, CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	d.MappedTerms = make([]termDoc, 0, len(r.MappedTerms))
	for _, m := range r.MappedTerms {
		d.MappedTerms = append(d.MappedTerms, termDoc(m))
	}
	return d
}

func (d *recordDoc) record() (*Record, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("mapping document id %q: %w", d.ID, err)
	}
	r := &Record{
		ID:         id,
		SourceTerm: SourceTerm{Term: d.SourceTerm.Term, Code: d.SourceTerm.Code, System: d.SourceTerm.System},
		Status:     d.Status, IsActive: d.IsActive, Version: d.Version, Notes: d.Notes,
		ReviewedBy: d.ReviewedBy, ReviewedAt: d.ReviewedAt, CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
	r.MappedTerms = make([]MappedTerm, 0, len(d.MappedTerms))
	for _, m := range d.MappedTerms {
		r.MappedTerms = append(r.MappedTerms, MappedTerm(m))
	}
	return r, nil
}

type repoMongo struct {
	coll *mongo.Collection
}

func NewRepoMongo(db *mongo.Database) Repository {
	return &repoMongo{coll: db.Collection(mongodb.CollectionMappings)}
}

var catalogOrder = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

// usableFilter matches usable records of code, and of system when given.
// The code compares exactly under a system and case-insensitively without one.
func usableFilter(code, system string) bson.M {
	f := bson.M{
		"sourceTerm.code": mongodb.ExactFold(code),
		"isActive":        true,
		"status":          bson.M{"$in": UsableStatuses},
	}
	if system != "" {
		f["sourceTerm.code"] = code
		f["sourceTerm.system"] = mongodb.ExactFold(system)
	}
	return f
}

func listFilter(f ListFilter) bson.M {
	filter := bson.M{}
	if f.SourceSystem != "" {
		filter["sourceTerm.system"] = mongodb.ExactFold(f.SourceSystem)
	}
	if f.TargetSystem != "" {
		filter["mappedTerms.system"] = mongodb.ExactFold(f.TargetSystem)
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (r *repoMongo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*Record, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []recordDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(docs))
	for i := range docs {
		rec, err := docs[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *repoMongo) FindUsable(ctx context.Context, code, system string) (*Record, error) {
	var d recordDoc
	err := r.coll.FindOne(ctx, usableFilter(code, system), options.FindOne().SetSort(catalogOrder)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mapping find %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mapping find %s: %w", code, err)
	}
	return d.record()
}

func (r *repoMongo) FindAllUsable(ctx context.Context, code, system string) ([]*Record, error) {
	out, err := r.find(ctx, usableFilter(code, system), options.Find().SetSort(catalogOrder))
	if err != nil {
		return nil, fmt.Errorf("mapping find all %s: %w", code, err)
	}
	return out, nil
}

func (r *repoMongo) Create(ctx context.Context, rec *Record) error {
	if _, err := r.coll.InsertOne(ctx, toRecordDoc(rec)); err != nil {
		return fmt.Errorf("mapping create: %w", err)
	}
	return nil
}

func (r *repoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	var d recordDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mapping get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mapping get %s: %w", id, err)
	}
	return d.record()
}

func (r *repoMongo) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	filter := listFilter(f)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mapping count: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	out, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("mapping list: %w", err)
	}
	return out, int(total), nil
}

func (r *repoMongo) UpdateReview(ctx context.Context, rec *Record, from string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": rec.ID.String(), "status": from},
		bson.M{"$set": bson.M{
			"status":     rec.Status,
			"reviewedBy": rec.ReviewedBy,
			"reviewedAt": rec.ReviewedAt,
			"notes":      rec.Notes,
			"updatedAt":  rec.UpdatedAt,
		}})
	if err != nil {
		return fmt.Errorf("mapping review: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrStatusChanged
	}
	return nil
}
