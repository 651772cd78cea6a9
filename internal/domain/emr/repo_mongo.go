package emr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/terminology-portal/internal/platform/mongodb"
)

type mappedCodeDoc struct {
	Code   string `bson:"code"`
	System string `bson:"system"`
	Term   string `bson:"term"`
}

// processedTermDoc keeps the source resource as its JSON text.
type processedTermDoc struct {
	OriginalTerm   string          `bson:"originalTerm"`
	OriginalSystem string          `bson:"originalSystem"`
	MappedCodes    []mappedCodeDoc `bson:"mappedCodes"`
	SourceResource string          `bson:"sourceResource,omitempty"`
}

type submissionDoc struct {
	ID             string             `bson:"_id"`
	PatientID      string             `bson:"patientId"`
	ClinicianID    string             `bson:"clinicianId"`
	EncounterNotes string             `bson:"encounterNotes"`
	FHIRBundle     string             `bson:"fhirBundle,omitempty"`
	Status         string             `bson:"status"`
	ProcessedTerms []processedTermDoc `bson:"processedTerms"`
	ErrorMessage   string             `bson:"errorMessage,omitempty"`
	ProcessedAt    *time.Time         `bson:"processedAt,omitempty"`
	SubmittedBy    string             `bson:"submittedBy"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func toProcessedDocs(terms []ProcessedTerm) []processedTermDoc {
	out := make([]processedTermDoc, 0, len(terms))
	for _, t := range terms {
		d := processedTermDoc{
			OriginalTerm:   t.OriginalTerm,
			OriginalSystem: t.OriginalSystem,
			MappedCodes:    make([]mappedCodeDoc, 0, len(t.MappedCodes)),
			SourceResource: string(t.SourceResource),
		}
		for _, c := range t.MappedCodes {
			d.MappedCodes = append(d.MappedCodes, mappedCodeDoc(c))
		}
		out = append(out, d)
	}
	return out
}

func toSubmissionDoc(s *Submission) *submissionDoc {
	return &submissionDoc{
		ID:             s.ID.String(),
		PatientID:      s.PatientID,
		ClinicianID:    s.ClinicianID,
		EncounterNotes: s.EncounterNotes,
		FHIRBundle:     string(s.FHIRBundle),
		Status:         s.Status,
		ProcessedTerms: toProcessedDocs(s.ProcessedTerms),
		ErrorMessage:   s.ErrorMessage,
		ProcessedAt:    s.ProcessedAt,
		SubmittedBy:    s.SubmittedBy,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (d *submissionDoc) submission() (*Submission, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("emr document id %q: %w", d.ID, err)
	}
	s := &Submission{
		ID:             id,
		PatientID:      d.PatientID,
		ClinicianID:    d.ClinicianID,
		EncounterNotes: d.EncounterNotes,
		Status:         d.Status,
		ProcessedTerms: make([]ProcessedTerm, 0, len(d.ProcessedTerms)),
		ErrorMessage:   d.ErrorMessage,
		ProcessedAt:    d.ProcessedAt,
		SubmittedBy:    d.SubmittedBy,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.FHIRBundle != "" {
		s.FHIRBundle = json.RawMessage(d.FHIRBundle)
	}
	for _, t := range d.ProcessedTerms {
		pt := ProcessedTerm{
			OriginalTerm:   t.OriginalTerm,
			OriginalSystem: t.OriginalSystem,
			MappedCodes:    make([]MappedCode, 0, len(t.MappedCodes)),
		}
		if t.SourceResource != "" {
			pt.SourceResource = json.RawMessage(t.SourceResource)
		}
		for _, c := range t.MappedCodes {
			pt.MappedCodes = append(pt.MappedCodes, MappedCode(c))
		}
		s.ProcessedTerms = append(s.ProcessedTerms, pt)
	}
	return s, nil
}

type repoMongo struct {
	coll *mongo.Collection
}

func NewRepoMongo(db *mongo.Database) Repository {
	return &repoMongo{coll: db.Collection(mongodb.CollectionEMRSubmissions)}
}

func (r *repoMongo) Create(ctx context.Context, s *Submission) error {
	if _, err := r.coll.InsertOne(ctx, toSubmissionDoc(s)); err != nil {
		return fmt.Errorf("emr create: %w", err)
	}
	return nil
}

func (r *repoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var d submissionDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("emr get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("emr get %s: %w", id, err)
	}
	return d.submission()
}

// transition applies update only while the submission is in one of from.
func (r *repoMongo) transition(ctx context.Context, id uuid.UUID, from []string, update bson.M) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "status": bson.M{"$in": from}},
		bson.M{"$set": update})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *repoMongo) Claim(ctx context.Context, id uuid.UUID, at time.Time) error {
	ok, err := r.transition(ctx, id, []string{StatusPending}, bson.M{"status": StatusProcessing, "updatedAt": at})
	if err != nil {
		return fmt.Errorf("emr claim %s: %w", id, err)
	}
	if !ok {
		return ErrNotClaimable
	}
	return nil
}

func (r *repoMongo) Complete(ctx context.Context, id uuid.UUID, terms []ProcessedTerm, at time.Time) error {
	ok, err := r.transition(ctx, id, []string{StatusProcessing}, bson.M{
		"status":         StatusCompleted,
		"processedTerms": toProcessedDocs(terms),
		"processedAt":    at,
		"updatedAt":      at,
	})
	if err != nil {
		return fmt.Errorf("emr complete %s: %w", id, err)
	}
	if !ok {
		return ErrFinalized
	}
	return nil
}

func (r *repoMongo) Fail(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	ok, err := r.transition(ctx, id, []string{StatusPending, StatusProcessing}, bson.M{
		"status":       StatusFailed,
		"errorMessage": message,
		"updatedAt":    at,
	})
	if err != nil {
		return fmt.Errorf("emr fail %s: %w", id, err)
	}
	if !ok {
		return ErrFinalized
	}
	return nil
}

func listFilter(f ListFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.PatientID != "" {
		filter["patientId"] = f.PatientID
	}
	if f.ClinicianID != "" {
		filter["clinicianId"] = f.ClinicianID
	}
	if f.From != nil || f.To != nil {
		created := bson.M{}
		if f.From != nil {
			created["$gte"] = *f.From
		}
		if f.To != nil {
			created["$lte"] = *f.To
		}
		filter["createdAt"] = created
	}
	return filter
}

func (r *repoMongo) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Submission, int, error) {
	filter := listFilter(f)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("emr count: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"fhirBundle": 0})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("emr list: %w", err)
	}
	var docs []submissionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("emr list: %w", err)
	}
	out := make([]*Submission, 0, len(docs))
	for i := range docs {
		s, err := docs[i].submission()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, int(total), nil
}
