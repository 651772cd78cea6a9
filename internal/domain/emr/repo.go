package emr

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists submissions. Status-changing writes are conditional so
// that a submission is claimed once and finalized once.
type Repository interface {
	Create(ctx context.Context, s *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	// Claim moves a pending submission to processing, or returns ErrNotClaimable.
	Claim(ctx context.Context, id uuid.UUID, at time.Time) error
	// Complete records the processed terms of a submission being processed.
	Complete(ctx context.Context, id uuid.UUID, terms []ProcessedTerm, at time.Time) error
	// Fail marks a non-terminal submission failed.
	Fail(ctx context.Context, id uuid.UUID, message string, at time.Time) error
	// List returns a page of submissions, newest first, without their bundles.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Submission, int, error)
}
