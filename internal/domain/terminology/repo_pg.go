package terminology

import (
	"context"
	"errors"
	"fmt"

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

const entryCols = `id, code, system, term, description, category, version, is_active,
	created_by, updated_by, created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Code, &e.System, &e.Term, &e.Description, &e.Category, &e.Version,
		&e.IsActive, &e.CreatedBy, &e.UpdatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) FindByCodeAndSystem(ctx context.Context, code, system string) (*Entry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM terminology_entry
		 WHERE code = $1 AND lower(system) = lower($2) AND is_active`, code, system))
	if err != nil {
		return nil, fmt.Errorf("terminology find %s/%s: %w", system, code, err)
	}
	return e, nil
}

func (r *repoPG) FindByCode(ctx context.Context, code string) (*Entry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM terminology_entry WHERE code = $1 AND is_active`, code))
	if err != nil {
		return nil, fmt.Errorf("terminology find %s: %w", code, err)
	}
	return e, nil
}

func (r *repoPG) Search(ctx context.Context, q SearchQuery) ([]*Entry, error) {
	pattern := "%" + escapeLike(q.Text) + "%"
	sql := `SELECT ` + entryCols + ` FROM terminology_entry
		WHERE is_active AND (term ILIKE $1 OR code ILIKE $1 OR description ILIKE $1)`
	args := []interface{}{pattern}
	if q.System != "" && q.System != SystemAll {
		args = append(args, q.System)
		sql += fmt.Sprintf(" AND lower(system) = lower($%d)", len(args))
	}
	args = append(args, q.Limit)
	sql += fmt.Sprintf(" ORDER BY term LIMIT $%d", len(args))

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("terminology search: %w", err)
	}
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM terminology_entry WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("terminology get %s: %w", id, err)
	}
	return e, nil
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO terminology_entry (`+entryCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.Code, e.System, e.Term, e.Description, e.Category, e.Version, e.IsActive,
		e.CreatedBy, e.UpdatedBy, e.CreatedAt, e.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("terminology create %s: %w", e.Code, ErrDuplicateCode)
	}
	if err != nil {
		return fmt.Errorf("terminology create: %w", err)
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, e *Entry) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE terminology_entry
		 SET system = $2, term = $3, description = $4, category = $5, version = $6,
		     updated_by = $7, updated_at = $8
		 WHERE id = $1`,
		e.ID, e.System, e.Term, e.Description, e.Category, e.Version, e.UpdatedBy, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("terminology update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID, by string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE terminology_entry SET is_active = FALSE, updated_by = $2, updated_at = NOW()
		 WHERE id = $1`, id, by)
	if err != nil {
		return fmt.Errorf("terminology deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Systems(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT DISTINCT system FROM terminology_entry WHERE is_active ORDER BY system`)
	if err != nil {
		return nil, fmt.Errorf("terminology systems: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) StatsBySystem(ctx context.Context) ([]SystemCount, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT system, COUNT(*) FROM terminology_entry WHERE is_active
		 GROUP BY system ORDER BY COUNT(*) DESC, system`)
	if err != nil {
		return nil, fmt.Errorf("terminology stats: %w", err)
	}
	defer rows.Close()
	var out []SystemCount
	for rows.Next() {
		var sc SystemCount
		if err := rows.Scan(&sc.System, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
