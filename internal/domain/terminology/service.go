package terminology

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/terminology-portal/internal/platform/validation"
)

// Service provides terminology catalog operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new terminology service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Lookup returns the active entry for code, restricted to system when given.
func (s *Service) Lookup(ctx context.Context, code, system string) (*Entry, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if system == "" {
		return s.repo.FindByCode(ctx, code)
	}
	return s.repo.FindByCodeAndSystem(ctx, code, system)
}

// Search finds active entries by free text.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]*Entry, error) {
	q.Text = strings.TrimSpace(q.Text)
	if len([]rune(q.Text)) < MinQueryLength {
		return nil, fmt.Errorf("%w: query must be at least %d characters", ErrInvalidInput, MinQueryLength)
	}
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	return s.repo.Search(ctx, q)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates req and adds an active entry owned by actor.
func (s *Service) Create(ctx context.Context, req *CreateRequest, actor string) (*Entry, error) {
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, validation.Describe(err))
	}
	now := s.now()
	e := &Entry{
		ID:          uuid.New(),
		Code:        strings.TrimSpace(req.Code),
		System:      req.System,
		Term:        strings.TrimSpace(req.Term),
		Description: req.Description,
		Category:    req.Category,
		Version:     req.Version,
		IsActive:    true,
		CreatedBy:   actor,
		UpdatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if e.Version == "" {
		e.Version = "1.0"
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Update applies the non-nil fields of req to the entry.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest, actor string) (*Entry, error) {
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, validation.Describe(err))
	}
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(e)
	e.UpdatedBy = actor
	e.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Deactivate soft-deletes the entry.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, actor string) error {
	return s.repo.Deactivate(ctx, id, actor)
}

func (s *Service) Systems(ctx context.Context) ([]string, error) {
	return s.repo.Systems(ctx)
}

func (s *Service) Stats(ctx context.Context) ([]SystemCount, error) {
	return s.repo.StatsBySystem(ctx)
}
