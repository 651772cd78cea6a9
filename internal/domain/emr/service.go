package emr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayush/terminology-portal/internal/platform/validation"
)

// DefaultSubmitter is recorded when a submission arrives without an
// authenticated subject.
const DefaultSubmitter = "system"

// BundleProcessor runs the processing pass of one submission.
type BundleProcessor interface {
	Process(ctx context.Context, id uuid.UUID, bundle json.RawMessage)
}

// TaskDispatcher schedules background work without blocking.
type TaskDispatcher interface {
	Dispatch(task Task) error
}

// Service accepts EMR submissions and serves their status.
type Service struct {
	repo       Repository
	cache      *RecentCache
	processor  BundleProcessor
	dispatcher TaskDispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, cache *RecentCache, processor BundleProcessor, dispatcher TaskDispatcher, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		cache:      cache,
		processor:  processor,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "emr-service").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and stores a pending submission, caches its bundle and
// schedules processing. It returns without waiting for the processing pass.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest, submittedBy string) (*SubmissionHandle, error) {
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, validation.Describe(err))
	}
	if submittedBy == "" {
		submittedBy = DefaultSubmitter
	}
	now := s.now()
	sub := &Submission{
		ID:             uuid.New(),
		PatientID:      strings.TrimSpace(req.PatientID),
		ClinicianID:    strings.TrimSpace(req.ClinicianID),
		EncounterNotes: req.EncounterNotes,
		FHIRBundle:     append(json.RawMessage(nil), req.FHIRBundle...),
		Status:         StatusPending,
		ProcessedTerms: []ProcessedTerm{},
		SubmittedBy:    submittedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}

	cached := s.cache.Add(sub.FHIRBundle, CacheMetadata{
		ID:          sub.ID.String(),
		PatientID:   sub.PatientID,
		ClinicianID: sub.ClinicianID,
	})

	handle := &SubmissionHandle{
		SubmissionID:  sub.ID,
		Accepted:      true,
		Status:        StatusPending,
		CachedBundles: cached,
	}

	id, bundle := sub.ID, sub.FHIRBundle
	err := s.dispatcher.Dispatch(func(taskCtx context.Context) {
		s.processor.Process(taskCtx, id, bundle)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("submission_id", id.String()).Msg("could not schedule processing")
		if ferr := s.repo.Fail(context.WithoutCancel(ctx), id, "processing not scheduled: "+err.Error(), s.now()); ferr != nil {
			s.logger.Error().Err(ferr).Str("submission_id", id.String()).Msg("failed to record scheduling failure")
		}
		handle.Status = StatusFailed
	}
	return handle, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of submissions, newest first, with the total count.
func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Submission, int, error) {
	if f.Status != "" && !isStatus(f.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, fmt.Errorf("%w: endDate is before startDate", ErrInvalidInput)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// ListByPatient returns a page of one patient's submissions.
func (s *Service) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Submission, int, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, 0, fmt.Errorf("%w: patientId is required", ErrInvalidInput)
	}
	return s.repo.List(ctx, ListFilter{PatientID: patientID}, limit, offset)
}

func (s *Service) RecentBundles() []CacheEntry {
	return s.cache.List()
}

func (s *Service) RecentBundle(id string) (CacheEntry, error) {
	e, ok := s.cache.Get(id)
	if !ok {
		return CacheEntry{}, fmt.Errorf("recent bundle %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *Service) CacheCapacity() int { return s.cache.Capacity() }
