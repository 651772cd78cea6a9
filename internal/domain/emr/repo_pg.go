package emr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/terminology-portal/internal/platform/db"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// summaryCols omits the bundle, which list views never return.
const summaryCols = `id, patient_id, clinician_id, encounter_notes, status, processed_terms,
	error_message, processed_at, submitted_by, created_at, updated_at`

func scanSubmission(row pgx.Row, withBundle bool) (*Submission, error) {
	var s Submission
	var terms []byte
	dest := []interface{}{&s.ID, &s.PatientID, &s.ClinicianID, &s.EncounterNotes, &s.Status, &terms,
		&s.ErrorMessage, &s.ProcessedAt, &s.SubmittedBy, &s.CreatedAt, &s.UpdatedAt}
	var bundle []byte
	if withBundle {
		dest = append(dest, &bundle)
	}
	err := row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := gojson.Unmarshal(terms, &s.ProcessedTerms); err != nil {
		return nil, fmt.Errorf("decode processed terms of %s: %w", s.ID, err)
	}
	if withBundle {
		s.FHIRBundle = bundle
	}
	return &s, nil
}

func (r *repoPG) Create(ctx context.Context, s *Submission) error {
	terms, err := gojson.Marshal(processedOrEmpty(s.ProcessedTerms))
	if err != nil {
		return fmt.Errorf("encode processed terms: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx,
		`INSERT INTO emr_submission (id, patient_id, clinician_id, encounter_notes, fhir_bundle,
		 status, processed_terms, submitted_by, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.PatientID, s.ClinicianID, s.EncounterNotes, []byte(s.FHIRBundle),
		s.Status, terms, s.SubmittedBy, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("emr create: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	s, err := scanSubmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+summaryCols+`, fhir_bundle FROM emr_submission WHERE id = $1`, id), true)
	if err != nil {
		return nil, fmt.Errorf("emr get %s: %w", id, err)
	}
	return s, nil
}

func (r *repoPG) Claim(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE emr_submission SET status = 'processing', updated_at = $2
		 WHERE id = $1 AND status = 'pending'`, id, at)
	if err != nil {
		return fmt.Errorf("emr claim %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotClaimable
	}
	return nil
}

func (r *repoPG) Complete(ctx context.Context, id uuid.UUID, terms []ProcessedTerm, at time.Time) error {
	b, err := gojson.Marshal(processedOrEmpty(terms))
	if err != nil {
		return fmt.Errorf("encode processed terms: %w", err)
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE emr_submission
		 SET status = 'completed', processed_terms = $2, processed_at = $3, updated_at = $3
		 WHERE id = $1 AND status = 'processing'`, id, b, at)
	if err != nil {
		return fmt.Errorf("emr complete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFinalized
	}
	return nil
}

func (r *repoPG) Fail(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE emr_submission
		 SET status = 'failed', error_message = $2, updated_at = $3
		 WHERE id = $1 AND status IN ('pending', 'processing')`, id, message, at)
	if err != nil {
		return fmt.Errorf("emr fail %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFinalized
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Submission, int, error) {
	var where []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.PatientID != "" {
		add("patient_id = $%d", f.PatientID)
	}
	if f.ClinicianID != "" {
		add("clinician_id = $%d", f.ClinicianID)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM emr_submission`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("emr count: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+summaryCols+` FROM emr_submission`+clause+
			fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("emr list: %w", err)
	}
	defer rows.Close()

	out := []*Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows, false)
		if err != nil {
			return nil, 0, fmt.Errorf("emr list: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("emr list: %w", err)
	}
	return out, total, nil
}

func processedOrEmpty(terms []ProcessedTerm) []ProcessedTerm {
	if terms == nil {
		return []ProcessedTerm{}
	}
	return terms
}
