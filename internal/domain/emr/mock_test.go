package emr

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/terminology-portal/internal/domain/mapping"
	"github.com/ayush/terminology-portal/internal/domain/terminology"
	"github.com/ayush/terminology-portal/internal/platform/events"
)

type mockRepo struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]*Submission
	claims  int
	failErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{subs: make(map[uuid.UUID]*Submission)}
}

func (m *mockRepo) Create(_ context.Context, s *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.subs[s.ID] = &c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *mockRepo) Claim(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok || s.Status != StatusPending {
		return ErrNotClaimable
	}
	m.claims++
	s.Status = StatusProcessing
	s.UpdatedAt = at
	return nil
}

func (m *mockRepo) Complete(_ context.Context, id uuid.UUID, terms []ProcessedTerm, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok || s.Status != StatusProcessing {
		return ErrFinalized
	}
	s.Status = StatusCompleted
	s.ProcessedTerms = terms
	s.ProcessedAt = &at
	return nil
}

func (m *mockRepo) Fail(_ context.Context, id uuid.UUID, message string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	s, ok := m.subs[id]
	if !ok || s.Terminal() {
		return ErrFinalized
	}
	s.Status = StatusFailed
	s.ErrorMessage = message
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Submission, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*Submission
	for _, s := range m.subs {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.PatientID != "" && s.PatientID != f.PatientID {
			continue
		}
		if f.ClinicianID != "" && s.ClinicianID != f.ClinicianID {
			continue
		}
		if f.From != nil && s.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && s.CreatedAt.After(*f.To) {
			continue
		}
		c := *s
		c.FHIRBundle = nil
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset >= total {
		return []*Submission{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *mockRepo) get(id uuid.UUID) *Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.subs[id]
	return &c
}

type mockTerms struct {
	entries []*terminology.Entry
	err     error
}

func (m *mockTerms) FindByCodeAndSystem(_ context.Context, code, system string) (*terminology.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, e := range m.entries {
		if e.IsActive && e.Code == code && strings.EqualFold(e.System, system) {
			return e, nil
		}
	}
	return nil, terminology.ErrNotFound
}

type mockMappings struct {
	records []*mapping.Record
}

func (m *mockMappings) FindUsable(_ context.Context, code, system string) (*mapping.Record, error) {
	for _, r := range m.records {
		if r.Usable() && r.SourceTerm.Code == code && strings.EqualFold(r.SourceTerm.System, system) {
			return r, nil
		}
	}
	return nil, mapping.ErrNotFound
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// inlineDispatcher runs tasks on the caller's goroutine.
type inlineDispatcher struct {
	err   error
	tasks int
}

func (d *inlineDispatcher) Dispatch(task Task) error {
	if d.err != nil {
		return d.err
	}
	d.tasks++
	task(context.Background())
	return nil
}

var errStore = errors.New("store unavailable")

func seededTerms() *mockTerms {
	return &mockTerms{entries: []*terminology.Entry{
		{ID: uuid.New(), Code: "NAM-A01.1", System: "NAMASTE", Term: "Vataja Jvara", IsActive: true},
		{ID: uuid.New(), Code: "NAM-A02.1", System: "NAMASTE", Term: "Pittaja Jvara", IsActive: true},
	}}
}

func seededMappings() *mockMappings {
	return &mockMappings{records: []*mapping.Record{{
		ID:         uuid.New(),
		SourceTerm: mapping.SourceTerm{Term: "Vataja Jvara", Code: "NAM-A01.1", System: "NAMASTE"},
		MappedTerms: []mapping.MappedTerm{
			{Term: "Qi-Phase Wind-Heat Pattern", Code: "JA20.0", System: "ICD-11 TM2", Confidence: 0.9, MappingType: mapping.TypeExact},
			{Term: "Fever of unknown origin", Code: "MG2A.01", System: "ICD-11 Biomedicine", Confidence: 0.8, MappingType: mapping.TypeBroad},
		},
		Status:   mapping.StatusApproved,
		IsActive: true,
	}}}
}

const scenarioBundle = `{
  "resourceType": "Bundle",
  "type": "collection",
  "entry": [
    {"resource": {"resourceType": "Patient", "id": "p-1"}},
    {"resource": {
      "resourceType": "Condition",
      "id": "c-1",
      "code": {"coding": [{"system": "http://namaste.gov.in", "code": "NAM-A01.1", "display": "Vataja Jvara"}]}
    }}
  ]
}`
