package terminology

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the terminology catalog. Lookups by code only see active
// entries; system identifiers compare case-insensitively.
type Repository interface {
	FindByCodeAndSystem(ctx context.Context, code, system string) (*Entry, error)
	FindByCode(ctx context.Context, code string) (*Entry, error)
	Search(ctx context.Context, q SearchQuery) ([]*Entry, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	Create(ctx context.Context, e *Entry) error
	Update(ctx context.Context, e *Entry) error
	Deactivate(ctx context.Context, id uuid.UUID, by string) error
	Systems(ctx context.Context) ([]string, error)
	StatsBySystem(ctx context.Context) ([]SystemCount, error)
}
