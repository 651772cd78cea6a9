package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayush/terminology-portal/internal/domain/terminology"
)

// TermFinder is the part of the terminology catalog the resolver falls back to.
type TermFinder interface {
	FindByCodeAndSystem(ctx context.Context, code, system string) (*terminology.Entry, error)
	FindByCode(ctx context.Context, code string) (*terminology.Entry, error)
}

// Resolver answers "what does this code map to". It only reads the catalogs
// and is safe for concurrent use.
type Resolver struct {
	mappings Repository
	terms    TermFinder
}

func NewResolver(mappings Repository, terms TermFinder) *Resolver {
	return &Resolver{mappings: mappings, terms: terms}
}

// Resolve returns the first usable mapping of code. Without one it falls back
// to the terminology entry with no equivalents, and without that it returns
// a *NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, code, system string) (*Result, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	rec, err := r.mappings.FindUsable(ctx, code, system)
	switch {
	case err == nil:
		return resultFromRecord(rec), nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return r.fallback(ctx, code, system)
}

// ResolveAll returns every usable mapping of code in catalog order, with the
// same fallback as Resolve when there are none.
func (r *Resolver) ResolveAll(ctx context.Context, code, system string) (*ResultSet, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	recs, err := r.mappings.FindAllUsable(ctx, code, system)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		res, err := r.fallback(ctx, code, system)
		if err != nil {
			return nil, err
		}
		return &ResultSet{Results: []*Result{res}, Matches: 0}, nil
	}
	set := &ResultSet{Results: make([]*Result, 0, len(recs)), Matches: len(recs)}
	for _, rec := range recs {
		set.Results = append(set.Results, resultFromRecord(rec))
	}
	return set, nil
}

func (r *Resolver) fallback(ctx context.Context, code, system string) (*Result, error) {
	var entry *terminology.Entry
	var err error
	if system == "" {
		entry, err = r.terms.FindByCode(ctx, code)
	} else {
		entry, err = r.terms.FindByCodeAndSystem(ctx, code, system)
	}
	if errors.Is(err, terminology.ErrNotFound) {
		return nil, newNotFound(code, system)
	}
	if err != nil {
		return nil, err
	}
	return &Result{
		Source: SourceTerm{Term: entry.Term, Code: entry.Code, System: entry.System},
		Mapped: []MappedTerm{},
	}, nil
}

func resultFromRecord(rec *Record) *Result {
	mapped := make([]MappedTerm, len(rec.MappedTerms))
	copy(mapped, rec.MappedTerms)
	return &Result{Source: rec.SourceTerm, Mapped: mapped}
}
