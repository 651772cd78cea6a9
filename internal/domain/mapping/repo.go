package mapping

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the mapping catalog. Code and system matching is exact and
// case-insensitive; an empty system does not filter. Usable records come back
// in catalog order (creation time, then id).
type Repository interface {
	FindUsable(ctx context.Context, code, system string) (*Record, error)
	FindAllUsable(ctx context.Context, code, system string) ([]*Record, error)
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error)
	// UpdateReview persists the review fields of r if its stored status is still from.
	UpdateReview(ctx context.Context, r *Record, from string) error
}
