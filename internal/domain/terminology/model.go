package terminology

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("terminology entry not found")
	ErrDuplicateCode = errors.New("terminology code already exists")
	ErrInvalidInput  = errors.New("invalid terminology input")
)

// MinQueryLength is the shortest free-text search the catalog accepts.
const MinQueryLength = 2

// DefaultSearchLimit caps search results when the caller gives no limit.
const DefaultSearchLimit = 10

// SystemAll disables the system filter of a search.
const SystemAll = "all"

// Entry is one code of a coding system. Codes are unique across the catalog
// and entries are deactivated, never deleted.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	System      string    `json:"system"`
	Term        string    `json:"term"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Version     string    `json:"version"`
	IsActive    bool      `json:"isActive"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SearchQuery selects active entries whose term, code or description contain Text.
type SearchQuery struct {
	Text   string
	System string
	Limit  int
}

// SystemCount is the number of active entries of one coding system.
type SystemCount struct {
	System string `json:"system"`
	Count  int    `json:"count"`
}

// CreateRequest is the payload for adding an entry.
type CreateRequest struct {
	Code        string `json:"code" validate:"required,notblank,max=64"`
	System      string `json:"system" validate:"required,coding_system"`
	Term        string `json:"term" validate:"required,notblank,max=512"`
	Description string `json:"description" validate:"max=4096"`
	Category    string `json:"category" validate:"max=128"`
	Version     string `json:"version" validate:"max=32"`
}

// UpdateRequest carries the fields an update may change. Nil fields are kept.
type UpdateRequest struct {
	System      *string `json:"system" validate:"omitempty,coding_system"`
	Term        *string `json:"term" validate:"omitempty,notblank,max=512"`
	Description *string `json:"description" validate:"omitempty,max=4096"`
	Category    *string `json:"category" validate:"omitempty,max=128"`
	Version     *string `json:"version" validate:"omitempty,max=32"`
}

func (r *UpdateRequest) apply(e *Entry) {
	if r.System != nil {
		e.System = *r.System
	}
	if r.Term != nil {
		e.Term = *r.Term
	}
	if r.Description != nil {
		e.Description = *r.Description
	}
	if r.Category != nil {
		e.Category = *r.Category
	}
	if r.Version != nil {
		e.Version = *r.Version
	}
}
