package fhir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	gojson "github.com/goccy/go-json"
)

// ResourceTypeCondition is the discriminant of diagnosis resources.
const ResourceTypeCondition = "Condition"

// ErrMalformedBundle is returned when a submitted bundle does not have the
// shape of a FHIR Bundle document.
var ErrMalformedBundle = errors.New("malformed FHIR bundle")

// ClinicalBundle is a weakly-typed view of a submitted FHIR Bundle. Only the
// fields the ingestion pipeline reads are decoded; every resource keeps its
// raw JSON so it can be stored back untouched.
type ClinicalBundle struct {
	ResourceType string          `json:"resourceType,omitempty"`
	Type         string          `json:"type,omitempty"`
	Entry        []ClinicalEntry `json:"entry,omitempty"`
}

type ClinicalEntry struct {
	FullURL  string            `json:"fullUrl,omitempty"`
	Resource *ClinicalResource `json:"resource,omitempty"`
}

// ClinicalResource is a tagged variant keyed on resourceType.
type ClinicalResource struct {
	resourceType string
	code         json.RawMessage
	raw          json.RawMessage
}

type resourceHeader struct {
	ResourceType string          `json:"resourceType"`
	Code         json.RawMessage `json:"code"`
}

func (r *ClinicalResource) UnmarshalJSON(data []byte) error {
	var h resourceHeader
	if err := gojson.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("decode resource: %w", err)
	}
	r.resourceType = h.ResourceType
	r.code = h.Code
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (r *ClinicalResource) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return r.raw, nil
}

// ResourceType returns the resource discriminant, e.g. "Condition".
func (r *ClinicalResource) ResourceType() string { return r.resourceType }

// Raw returns the resource exactly as submitted.
func (r *ClinicalResource) Raw() json.RawMessage { return r.raw }

// IsDiagnosis reports whether the resource records a diagnosis.
func (r *ClinicalResource) IsDiagnosis() bool { return r.resourceType == ResourceTypeCondition }

// Codings decodes code.coding. A resource without a code has no codings.
func (r *ClinicalResource) Codings() ([]Coding, error) {
	if isJSONNull(r.code) {
		return nil, nil
	}
	var cc CodeableConcept
	if err := gojson.Unmarshal(r.code, &cc); err != nil {
		return nil, fmt.Errorf("%w: %s code: %v", ErrMalformedBundle, r.resourceType, err)
	}
	return cc.Coding, nil
}

// ParseClinicalBundle decodes a submitted bundle document.
func ParseClinicalBundle(data []byte) (*ClinicalBundle, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedBundle)
	}
	var b ClinicalBundle
	if err := gojson.Unmarshal(trimmed, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}
	return &b, nil
}

// Diagnoses returns the diagnosis resources of the bundle in entry order.
func (b *ClinicalBundle) Diagnoses() []*ClinicalResource {
	var out []*ClinicalResource
	for _, e := range b.Entry {
		if e.Resource != nil && e.Resource.IsDiagnosis() {
			out = append(out, e.Resource)
		}
	}
	return out
}

// IsJSONNull reports whether raw is empty or the JSON literal null.
func IsJSONNull(raw []byte) bool { return isJSONNull(raw) }

func isJSONNull(raw []byte) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
