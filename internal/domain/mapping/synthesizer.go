package mapping

import (
	"time"

	"github.com/google/uuid"

	"github.com/ayush/terminology-portal/internal/platform/fhir"
)

// ConditionOptions carries the optional references of a synthesized Condition.
type ConditionOptions struct {
	Subject   string
	Encounter string
}

// Synthesizer builds FHIR Condition resources from resolution results. It
// never touches a store.
type Synthesizer struct {
	registry fhir.SystemRegistry
	now      func() time.Time
	newID    func() string
}

func NewSynthesizer(registry fhir.SystemRegistry) *Synthesizer {
	return &Synthesizer{
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// Synthesize returns a problem-list Condition whose code lists the source
// coding (user selected) followed by every mapped coding in order.
func (s *Synthesizer) Synthesize(res *Result, opts ConditionOptions) *fhir.Condition {
	selected, derived := true, false

	codings := make([]fhir.Coding, 0, len(res.Mapped)+1)
	codings = append(codings, fhir.Coding{
		System:       s.registry.URLForIdentifier(res.Source.System),
		Code:         res.Source.Code,
		Display:      res.Source.Term,
		UserSelected: &selected,
	})
	for _, m := range res.Mapped {
		codings = append(codings, fhir.Coding{
			System:       s.registry.URLForIdentifier(m.System),
			Code:         m.Code,
			Display:      m.Term,
			UserSelected: &derived,
		})
	}

	cond := &fhir.Condition{
		ResourceType: "Condition",
		ID:           s.newID(),
		Meta:         &fhir.Meta{Profile: []string{fhir.ProfileCondition}},
		ClinicalStatus: &fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: fhir.ConditionClinicalSystem, Code: "active", Display: "Active"}},
		},
		Category: []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{System: fhir.ConditionCategorySystem, Code: "problem-list-item", Display: "Problem List Item"}},
		}},
		Code:         fhir.CodeableConcept{Coding: codings, Text: res.Source.Term},
		RecordedDate: s.now().Format(time.RFC3339),
	}
	if opts.Subject != "" {
		cond.Subject = &fhir.Reference{Reference: opts.Subject}
	}
	if opts.Encounter != "" {
		cond.Encounter = &fhir.Reference{Reference: opts.Encounter}
	}
	return cond
}
