package mapping

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/terminology-portal/internal/domain/terminology"
)

type mockRepo struct {
	mu      sync.Mutex
	records []*Record
	lookups int
}

func newMockRepo() *mockRepo {
	return &mockRepo{}
}

func (m *mockRepo) add(rec *Record) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Date(2024, 1, 1, 0, 0, len(m.records), 0, time.UTC)
	}
	m.records = append(m.records, rec)
	return rec
}

func (m *mockRepo) usable(code, system string) []*Record {
	var out []*Record
	for _, r := range m.records {
		if !r.Usable() || !strings.EqualFold(r.SourceTerm.Code, code) {
			continue
		}
		if system != "" && (r.SourceTerm.Code != code || !strings.EqualFold(r.SourceTerm.System, system)) {
			continue
		}
		c := *r
		c.MappedTerms = append([]MappedTerm(nil), r.MappedTerms...)
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (m *mockRepo) FindUsable(_ context.Context, code, system string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	recs := m.usable(code, system)
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func (m *mockRepo) FindAllUsable(_ context.Context, code, system string) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	return m.usable(code, system), nil
}

func (m *mockRepo) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *rec
	m.records = append(m.records, &c)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			c := *r
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*Record
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.SourceSystem != "" && !strings.EqualFold(r.SourceTerm.System, f.SourceSystem) {
			continue
		}
		c := *r
		matched = append(matched, &c)
	}
	total := len(matched)
	if offset >= total {
		return []*Record{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *mockRepo) UpdateReview(_ context.Context, rec *Record, from string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID != rec.ID {
			continue
		}
		if r.Status != from {
			return ErrStatusChanged
		}
		c := *rec
		m.records[i] = &c
		return nil
	}
	return ErrNotFound
}

type mockTerms struct {
	entries []*terminology.Entry
}

func (m *mockTerms) FindByCodeAndSystem(_ context.Context, code, system string) (*terminology.Entry, error) {
	for _, e := range m.entries {
		if e.IsActive && e.Code == code && strings.EqualFold(e.System, system) {
			return e, nil
		}
	}
	return nil, terminology.ErrNotFound
}

func (m *mockTerms) FindByCode(_ context.Context, code string) (*terminology.Entry, error) {
	for _, e := range m.entries {
		if e.IsActive && e.Code == code {
			return e, nil
		}
	}
	return nil, terminology.ErrNotFound
}

// seededRecord is the fever mapping shipped with the sample data.
func seededRecord() *Record {
	return &Record{
		SourceTerm: SourceTerm{Term: "Vataja Jvara", Code: "NAM-A01.1", System: "NAMASTE"},
		MappedTerms: []MappedTerm{
			{Term: "Qi-Phase Wind-Heat Pattern", Code: "JA20.0", System: "ICD-11 TM2", Confidence: 0.9, MappingType: TypeExact},
			{Term: "Fever of unknown origin", Code: "MG2A.01", System: "ICD-11 Biomedicine", Confidence: 0.8, MappingType: TypeBroad},
		},
		Status:   StatusApproved,
		IsActive: true,
		Version:  "1.0",
	}
}

func newTestResolver() (*Resolver, *mockRepo, *mockTerms) {
	repo := newMockRepo()
	repo.add(seededRecord())
	terms := &mockTerms{entries: []*terminology.Entry{
		{ID: uuid.New(), Code: "NAM-B02.3", System: "NAMASTE", Term: "Kasa (Cough)", IsActive: true},
		{ID: uuid.New(), Code: "NAM-A01.1", System: "NAMASTE", Term: "Vataja Jvara", IsActive: true},
	}}
	return NewResolver(repo, terms), repo, terms
}
