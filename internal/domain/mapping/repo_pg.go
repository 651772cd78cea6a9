package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const recordCols = `id, source_term, source_code, source_system, mapped_terms, status, is_active,
	version, notes, reviewed_by, reviewed_at, created_by, created_at, updated_at`

const usableWhere = `lower(source_code) = lower($1)
	AND ($2 = '' OR (source_code = $1 AND lower(source_system) = lower($2)))
	AND is_active AND status IN ('reviewed', 'approved')`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var mapped []byte
	err := row.Scan(&rec.ID, &rec.SourceTerm.Term, &rec.SourceTerm.Code, &rec.SourceTerm.System,
		&mapped, &rec.Status, &rec.IsActive, &rec.Version, &rec.Notes, &rec.ReviewedBy,
		&rec.ReviewedAt, &rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := gojson.Unmarshal(mapped, &rec.MappedTerms); err != nil {
		return nil, fmt.Errorf("decode mapped terms of %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func collect(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repoPG) FindUsable(ctx context.Context, code, system string) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM mapping_record WHERE `+usableWhere+`
		 ORDER BY created_at, id LIMIT 1`, code, system))
	if err != nil {
		return nil, fmt.Errorf("mapping find %s: %w", code, err)
	}
	return rec, nil
}

func (r *repoPG) FindAllUsable(ctx context.Context, code, system string) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM mapping_record WHERE `+usableWhere+`
		 ORDER BY created_at, id`, code, system)
	if err != nil {
		return nil, fmt.Errorf("mapping find all %s: %w", code, err)
	}
	return collect(rows)
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	mapped, err := gojson.Marshal(rec.MappedTerms)
	if err != nil {
		return fmt.Errorf("encode mapped terms: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx,
		`INSERT INTO mapping_record (`+recordCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.ID, rec.SourceTerm.Term, rec.SourceTerm.Code, rec.SourceTerm.System, mapped,
		rec.Status, rec.IsActive, rec.Version, rec.Notes, rec.ReviewedBy, rec.ReviewedAt,
		rec.CreatedBy, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("mapping create: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM mapping_record WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("mapping get %s: %w", id, err)
	}
	return rec, nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	var where []string
	var args []interface{}
	if f.SourceSystem != "" {
		args = append(args, f.SourceSystem)
		where = append(where, fmt.Sprintf("lower(source_system) = lower($%d)", len(args)))
	}
	if f.TargetSystem != "" {
		args = append(args, f.TargetSystem)
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements(mapped_terms) mt WHERE lower(mt->>'system') = lower($%d))", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM mapping_record`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("mapping count: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM mapping_record`+clause+
			fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("mapping list: %w", err)
	}
	out, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repoPG) UpdateReview(ctx context.Context, rec *Record, from string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE mapping_record
		 SET status = $2, reviewed_by = $3, reviewed_at = $4, notes = $5, updated_at = $6
		 WHERE id = $1 AND status = $7`,
		rec.ID, rec.Status, rec.ReviewedBy, rec.ReviewedAt, rec.Notes, rec.UpdatedAt, from)
	if err != nil {
		return fmt.Errorf("mapping review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}
