package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ayush/terminology-portal/internal/domain/mapping"
	"github.com/ayush/terminology-portal/internal/domain/terminology"
	"github.com/ayush/terminology-portal/internal/platform/fhir"
)

const seedActor = "system"

var sampleTerms = []terminology.CreateRequest{
	{Term: "Vataja Jvara", Code: "NAM-A01.1", System: fhir.SystemNAMASTE, Description: "Fever caused by Vata dosha imbalance", Category: "Fever"},
	{Term: "Vataja Atisara", Code: "NAM-A01.2", System: fhir.SystemNAMASTE, Description: "Diarrhea caused by Vata dosha imbalance", Category: "Digestive"},
	{Term: "Pittaja Jvara", Code: "NAM-A02.1", System: fhir.SystemNAMASTE, Description: "Fever caused by Pitta dosha imbalance", Category: "Fever"},
	{Term: "Kaphaja Jvara", Code: "NAM-A03.1", System: fhir.SystemNAMASTE, Description: "Fever caused by Kapha dosha imbalance", Category: "Fever"},
	{Term: "Sannipata Jvara", Code: "NAM-A04.1", System: fhir.SystemNAMASTE, Description: "Fever caused by all three doshas imbalance", Category: "Fever"},
	{Term: "Qi-Phase Wind-Heat Pattern", Code: "JA20.0", System: fhir.SystemICD11TM2, Description: "Traditional medicine pattern", Category: "TM2"},
	{Term: "Yang-Phase Heat Pattern", Code: "JA21.0", System: fhir.SystemICD11TM2, Description: "Traditional medicine pattern", Category: "TM2"},
	{Term: "Fever of unknown origin", Code: "MG2A.01", System: "ICD-11 Biomedicine", Description: "Fever without identifiable cause", Category: "Biomedicine"},
	{Term: "Acute diarrhoea", Code: "DD90", System: "ICD-11 Biomedicine", Description: "Acute diarrheal condition", Category: "Biomedicine"},
	{Term: "Jvara", Code: "AYU-001", System: "WHO Ayurveda", Description: "Ayurvedic fever classification", Category: "Ayurveda"},
}

var sampleMappings = []mapping.CreateRequest{
	{
		SourceTerm: mapping.SourceTerm{Term: "Vataja Jvara", Code: "NAM-A01.1", System: fhir.SystemNAMASTE},
		MappedTerms: []mapping.MappedTerm{
			{Term: "Qi-Phase Wind-Heat Pattern", Code: "JA20.0", System: fhir.SystemICD11TM2, Confidence: 0.9, MappingType: mapping.TypeExact},
			{Term: "Fever of unknown origin", Code: "MG2A.01", System: "ICD-11 Biomedicine", Confidence: 0.8, MappingType: mapping.TypeBroad},
		},
		Status: mapping.StatusApproved,
	},
	{
		SourceTerm: mapping.SourceTerm{Term: "Vataja Atisara", Code: "NAM-A01.2", System: fhir.SystemNAMASTE},
		MappedTerms: []mapping.MappedTerm{
			{Term: "Acute diarrhoea", Code: "DD90", System: "ICD-11 Biomedicine", Confidence: 0.9, MappingType: mapping.TypeExact},
		},
		Status: mapping.StatusApproved,
	},
}

type seedResult struct {
	Terms    int
	Mappings int
	Skipped  int
}

// seedSampleData loads the sample catalog. Entries whose code is already
// present, and mappings whose source already resolves, are left alone, so
// seeding twice is harmless.
func seedSampleData(ctx context.Context, st *store, logger zerolog.Logger) (seedResult, error) {
	var res seedResult
	terms := terminology.NewService(st.terms)
	mappings := mapping.NewService(st.mappings)

	for i := range sampleTerms {
		req := sampleTerms[i]
		if _, err := st.terms.FindByCode(ctx, req.Code); err == nil {
			res.Skipped++
			continue
		} else if !errors.Is(err, terminology.ErrNotFound) {
			return res, err
		}
		if _, err := terms.Create(ctx, &req, seedActor); err != nil {
			if errors.Is(err, terminology.ErrDuplicateCode) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("seed term %s: %w", req.Code, err)
		}
		res.Terms++
	}

	err := st.inTx(ctx, func(ctx context.Context) error {
		for i := range sampleMappings {
			req := sampleMappings[i]
			if _, err := st.mappings.FindUsable(ctx, req.SourceTerm.Code, req.SourceTerm.System); err == nil {
				res.Skipped++
				continue
			} else if !errors.Is(err, mapping.ErrNotFound) {
				return err
			}
			if _, err := mappings.Create(ctx, &req, seedActor); err != nil {
				return fmt.Errorf("seed mapping %s: %w", req.SourceTerm.Code, err)
			}
			res.Mappings++
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	logger.Info().
		Str("store", st.driver).
		Int("terms", res.Terms).
		Int("mappings", res.Mappings).
		Int("skipped", res.Skipped).
		Msg("sample data seeded")
	return res, nil
}
