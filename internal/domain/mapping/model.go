package mapping

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/terminology-portal/internal/platform/fhir"
)

// Review statuses. Only reviewed and approved records take part in resolution.
const (
	StatusDraft      = "draft"
	StatusReviewed   = "reviewed"
	StatusApproved   = "approved"
	StatusDeprecated = "deprecated"
)

// Mapping relationship types.
const (
	TypeExact   = "exact"
	TypeBroad   = "broad"
	TypeNarrow  = "narrow"
	TypeRelated = "related"
)

var (
	ErrNotFound          = errors.New("mapping record not found")
	ErrInvalidInput      = errors.New("invalid mapping input")
	ErrInvalidTransition = errors.New("invalid review status transition")
	ErrStatusChanged     = errors.New("mapping status changed concurrently")
)

// UsableStatuses are the statuses a resolvable record may have.
var UsableStatuses = []string{StatusReviewed, StatusApproved}

type SourceTerm struct {
	Term   string `json:"term" validate:"required,notblank"`
	Code   string `json:"code" validate:"required,notblank,max=64"`
	System string `json:"system" validate:"required,coding_system"`
}

type MappedTerm struct {
	Term        string  `json:"term" validate:"required,notblank"`
	Code        string  `json:"code" validate:"required,notblank,max=64"`
	System      string  `json:"system" validate:"required,coding_system"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
	MappingType string  `json:"mappingType" validate:"required,oneof=exact broad narrow related"`
}

// Record is a curated cross-system mapping of one source code.
type Record struct {
	ID          uuid.UUID    `json:"id"`
	SourceTerm  SourceTerm   `json:"sourceTerm"`
	MappedTerms []MappedTerm `json:"mappedTerms"`
	Status      string       `json:"status"`
	IsActive    bool         `json:"isActive"`
	Version     string       `json:"version"`
	Notes       string       `json:"notes,omitempty"`
	ReviewedBy  string       `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time   `json:"reviewedAt,omitempty"`
	CreatedBy   string       `json:"createdBy,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Usable reports whether the record may answer a resolution.
func (r *Record) Usable() bool {
	return r.IsActive && (r.Status == StatusReviewed || r.Status == StatusApproved)
}

// Result is the answer to a resolution: the source term and its equivalents.
type Result struct {
	Source SourceTerm   `json:"source"`
	Mapped []MappedTerm `json:"mapped"`
}

// ResultSet is every usable mapping of a code.
type ResultSet struct {
	Results []*Result `json:"results"`
	Matches int       `json:"matches"`
}

// NotFoundError is returned when neither a usable mapping nor a terminology
// entry exists for a code.
type NotFoundError struct {
	Code   string
	System string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no mappings found for %s in %s", e.Code, e.System)
}

func newNotFound(code, system string) *NotFoundError {
	if system == "" {
		system = fhir.SystemUnknown
	}
	return &NotFoundError{Code: code, System: system}
}

// ListFilter narrows a catalog listing. Empty fields do not filter.
type ListFilter struct {
	SourceSystem string
	TargetSystem string
	Status       string
}

// CreateRequest is the payload for adding a mapping record.
type CreateRequest struct {
	SourceTerm  SourceTerm   `json:"sourceTerm"`
	MappedTerms []MappedTerm `json:"mappedTerms" validate:"required,min=1,dive"`
	Status      string       `json:"status" validate:"omitempty,oneof=draft reviewed approved"`
	Version     string       `json:"version" validate:"max=32"`
	Notes       string       `json:"notes" validate:"max=4096"`
}

// ReviewRequest moves a record through the review workflow.
type ReviewRequest struct {
	Status string `json:"status" validate:"required,oneof=reviewed approved deprecated"`
	Notes  string `json:"notes" validate:"max=4096"`
}

// canTransition encodes draft -> reviewed -> approved, with deprecation
// allowed from any live status.
func canTransition(from, to string) bool {
	switch to {
	case StatusReviewed:
		return from == StatusDraft
	case StatusApproved:
		return from == StatusReviewed
	case StatusDeprecated:
		return from != StatusDeprecated
	}
	return false
}

// SynthesizeRequest asks for a Condition built from a resolution result.
// Systems outside the catalog list are accepted and get derived URLs.
type SynthesizeRequest struct {
	Source    SourceTerm   `json:"source"`
	Mapped    []MappedTerm `json:"mapped"`
	Subject   string       `json:"subject,omitempty"`
	Encounter string       `json:"encounter,omitempty"`
}
