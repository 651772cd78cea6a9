package emr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayush/terminology-portal/internal/domain/mapping"
	"github.com/ayush/terminology-portal/internal/domain/terminology"
	"github.com/ayush/terminology-portal/internal/platform/events"
	"github.com/ayush/terminology-portal/internal/platform/fhir"
)

// Event types published when processing finishes.
const (
	EventCompleted = "emr.submission.completed"
	EventFailed    = "emr.submission.failed"

	resourceTypeSubmission = "EMRSubmission"
)

// finalizeTimeout bounds the terminal write of a cancelled task.
const finalizeTimeout = 5 * time.Second

// TermLookup is the terminology catalog read used during processing.
type TermLookup interface {
	FindByCodeAndSystem(ctx context.Context, code, system string) (*terminology.Entry, error)
}

// MappingLookup is the mapping catalog read used during processing.
type MappingLookup interface {
	FindUsable(ctx context.Context, code, system string) (*mapping.Record, error)
}

// Processor walks a submitted bundle and records the resolution of every
// diagnosis coding on the submission.
type Processor struct {
	repo     Repository
	registry fhir.SystemRegistry
	terms    TermLookup
	mappings MappingLookup
	events   events.Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewProcessor(repo Repository, registry fhir.SystemRegistry, terms TermLookup, mappings MappingLookup,
	publisher events.Publisher, logger zerolog.Logger) *Processor {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Processor{
		repo:     repo,
		registry: registry,
		terms:    terms,
		mappings: mappings,
		events:   publisher,
		logger:   logger.With().Str("component", "emr-processor").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process runs the single processing pass of submission id. A submission
// that is no longer pending is left untouched.
func (p *Processor) Process(ctx context.Context, id uuid.UUID, bundle json.RawMessage) {
	start := time.Now()
	log := p.logger.With().Str("submission_id", id.String()).Logger()
	defer func() {
		if r := recover(); r != nil {
			p.fail(ctx, log, id, fmt.Errorf("processing panicked: %v", r))
		}
	}()

	if err := p.repo.Claim(ctx, id, p.now()); err != nil {
		if errors.Is(err, ErrNotClaimable) {
			log.Debug().Msg("submission already claimed, skipping")
			return
		}
		p.fail(ctx, log, id, err)
		return
	}

	terms, err := p.walk(ctx, bundle)
	if err != nil {
		p.fail(ctx, log, id, err)
		return
	}

	wctx, cancel := finalizeContext(ctx)
	defer cancel()
	if err := p.repo.Complete(wctx, id, terms, p.now()); err != nil {
		if errors.Is(err, ErrFinalized) {
			log.Warn().Msg("submission finalized by another pass")
			return
		}
		p.fail(ctx, log, id, err)
		return
	}
	log.Info().
		Int("processed_terms", len(terms)).
		Dur("duration", time.Since(start)).
		Msg("submission processed")
	p.publish(wctx, log, EventCompleted, id, map[string]interface{}{
		"status":         StatusCompleted,
		"processedTerms": len(terms),
	})
}

func (p *Processor) fail(ctx context.Context, log zerolog.Logger, id uuid.UUID, cause error) {
	wctx, cancel := finalizeContext(ctx)
	defer cancel()
	log.Error().Err(cause).Msg("submission processing failed")
	if err := p.repo.Fail(wctx, id, cause.Error(), p.now()); err != nil {
		log.Error().Err(err).Msg("failed to record processing failure")
		return
	}
	p.publish(wctx, log, EventFailed, id, map[string]interface{}{
		"status":       StatusFailed,
		"errorMessage": cause.Error(),
	})
}

func (p *Processor) publish(ctx context.Context, log zerolog.Logger, eventType string, id uuid.UUID, payload interface{}) {
	ev, err := events.NewEvent(eventType, resourceTypeSubmission, id.String(), payload)
	if err == nil {
		err = p.events.Publish(ctx, ev)
	}
	if err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}

// finalizeContext detaches terminal writes from a cancelled task context.
func finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}

// walk resolves every diagnosis coding in bundle order. Codings with neither
// a terminology entry nor a usable mapping, and codings without a system,
// produce no processed term.
func (p *Processor) walk(ctx context.Context, raw json.RawMessage) ([]ProcessedTerm, error) {
	bundle, err := fhir.ParseClinicalBundle(raw)
	if err != nil {
		return nil, err
	}
	terms := []ProcessedTerm{}
	for _, res := range bundle.Diagnoses() {
		codings, err := res.Codings()
		if err != nil {
			return nil, err
		}
		for _, coding := range codings {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("processing interrupted: %w", err)
			}
			if coding.System == "" || coding.Code == "" {
				continue
			}
			pt, ok, err := p.resolveCoding(ctx, coding, res.Raw())
			if err != nil {
				return nil, err
			}
			if ok {
				terms = append(terms, pt)
			}
		}
	}
	return terms, nil
}

func (p *Processor) resolveCoding(ctx context.Context, coding fhir.Coding, source json.RawMessage) (ProcessedTerm, bool, error) {
	system := p.registry.IdentifierForURL(coding.System)

	entry, err := p.terms.FindByCodeAndSystem(ctx, coding.Code, system)
	if err != nil && !errors.Is(err, terminology.ErrNotFound) {
		return ProcessedTerm{}, false, fmt.Errorf("terminology lookup %s: %w", coding.Code, err)
	}
	rec, err := p.mappings.FindUsable(ctx, coding.Code, system)
	if err != nil && !errors.Is(err, mapping.ErrNotFound) {
		return ProcessedTerm{}, false, fmt.Errorf("mapping lookup %s: %w", coding.Code, err)
	}

	pt := ProcessedTerm{
		OriginalTerm:   coding.Display,
		OriginalSystem: system,
		MappedCodes:    []MappedCode{},
		SourceResource: source,
	}
	switch {
	case rec != nil:
		for _, m := range rec.MappedTerms {
			pt.MappedCodes = append(pt.MappedCodes, MappedCode{Code: m.Code, System: m.System, Term: m.Term})
		}
		return pt, true, nil
	case entry != nil:
		return pt, true, nil
	}
	return ProcessedTerm{}, false, nil
}
