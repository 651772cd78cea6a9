package emr

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Submission statuses. A submission only moves forward:
// pending -> processing -> completed | failed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var (
	ErrNotFound     = errors.New("emr submission not found")
	ErrInvalidInput = errors.New("invalid emr submission")
	// ErrNotClaimable is returned when a submission is no longer pending.
	ErrNotClaimable = errors.New("emr submission already claimed")
	// ErrFinalized is returned when a finalizing write finds the submission
	// already in a terminal status.
	ErrFinalized = errors.New("emr submission already finalized")
)

// MappedCode is one equivalent code recorded for a diagnosis coding.
type MappedCode struct {
	Code   string `json:"code"`
	System string `json:"system"`
	Term   string `json:"term"`
}

// ProcessedTerm is the point-in-time resolution of one diagnosis coding.
type ProcessedTerm struct {
	OriginalTerm   string          `json:"originalTerm"`
	OriginalSystem string          `json:"originalSystem"`
	MappedCodes    []MappedCode    `json:"mappedCodes"`
	SourceResource json.RawMessage `json:"sourceResource,omitempty"`
}

// Submission is an EMR bundle submission and its processing outcome.
type Submission struct {
	ID             uuid.UUID       `json:"id"`
	PatientID      string          `json:"patientId"`
	ClinicianID    string          `json:"clinicianId"`
	EncounterNotes string          `json:"encounterNotes"`
	FHIRBundle     json.RawMessage `json:"fhirBundle,omitempty"`
	Status         string          `json:"status"`
	ProcessedTerms []ProcessedTerm `json:"processedTerms"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	ProcessedAt    *time.Time      `json:"processedAt,omitempty"`
	SubmittedBy    string          `json:"submittedBy"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Terminal reports whether processing has finished, successfully or not.
func (s *Submission) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// SubmitRequest is the payload an EMR posts.
type SubmitRequest struct {
	PatientID      string          `json:"patientId" validate:"required,notblank,max=255"`
	ClinicianID    string          `json:"clinicianId" validate:"required,notblank,max=255"`
	EncounterNotes string          `json:"encounterNotes" validate:"required,notblank"`
	FHIRBundle     json.RawMessage `json:"fhirBundle" validate:"json_present"`
}

// SubmissionHandle is returned as soon as a submission is accepted.
type SubmissionHandle struct {
	SubmissionID  uuid.UUID `json:"submissionId"`
	Accepted      bool      `json:"accepted"`
	Status        string    `json:"status"`
	CachedBundles int       `json:"cachedBundles"`
}

// ListFilter narrows a submission listing. Zero values do not filter; the
// date range is inclusive on both ends.
type ListFilter struct {
	Status      string
	PatientID   string
	ClinicianID string
	From        *time.Time
	To          *time.Time
}

func isStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
