package mapping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/terminology-portal/internal/platform/validation"
)

// Service curates the mapping catalog.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Create validates req and stores a new active record. Records start as
// drafts unless req names a status.
func (s *Service) Create(ctx context.Context, req *CreateRequest, actor string) (*Record, error) {
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, validation.Describe(err))
	}
	now := s.now()
	rec := &Record{
		ID: uuid.New(),
		SourceTerm: SourceTerm{
			Term:   strings.TrimSpace(req.SourceTerm.Term),
			Code:   strings.TrimSpace(req.SourceTerm.Code),
			System: req.SourceTerm.System,
		},
		MappedTerms: append([]MappedTerm(nil), req.MappedTerms...),
		Status:      req.Status,
		IsActive:    true,
		Version:     req.Version,
		Notes:       req.Notes,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rec.Status == "" {
		rec.Status = StatusDraft
	}
	if rec.Version == "" {
		rec.Version = "1.0"
	}
	if rec.Status != StatusDraft {
		rec.ReviewedBy = actor
		rec.ReviewedAt = &now
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of records, newest first, with the total match count.
func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	if f.Status != "" && !isStatus(f.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Review moves a record to req.Status on behalf of reviewer.
func (s *Service) Review(ctx context.Context, id uuid.UUID, req *ReviewRequest, reviewer string) (*Record, error) {
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, validation.Describe(err))
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := rec.Status
	if !canTransition(from, req.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, req.Status)
	}
	now := s.now()
	rec.Status = req.Status
	rec.ReviewedBy = reviewer
	rec.ReviewedAt = &now
	rec.UpdatedAt = now
	if req.Notes != "" {
		rec.Notes = req.Notes
	}
	if err := s.repo.UpdateReview(ctx, rec, from); err != nil {
		return nil, err
	}
	return rec, nil
}

func isStatus(s string) bool {
	switch s {
	case StatusDraft, StatusReviewed, StatusApproved, StatusDeprecated:
		return true
	}
	return false
}
