package terminology

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryDoc_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	in := &Entry{
		ID:          uuid.New(),
		Code:        "NAM-A01.1",
		System:      "NAMASTE",
		Term:        "Vataja Jvara",
		Description: "Fever due to Vata dosha imbalance",
		Category:    "Fever",
		Version:     "1.0",
		IsActive:    true,
		CreatedBy:   "system",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	doc := toEntryDoc(in)
	assert.Equal(t, in.ID.String(), doc.ID)

	out, err := doc.entry()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEntryDoc_BadID(t *testing.T) {
	_, err := (&entryDoc{ID: "nope"}).entry()
	assert.Error(t, err)
}
