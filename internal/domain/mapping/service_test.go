package mapping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return svc, repo
}

func validCreate() *CreateRequest {
	rec := seededRecord()
	return &CreateRequest{SourceTerm: rec.SourceTerm, MappedTerms: rec.MappedTerms}
}

func TestService_Create_Defaults(t *testing.T) {
	svc, repo := newTestService()

	rec, err := svc.Create(context.Background(), validCreate(), "curator-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, rec.Status)
	assert.Equal(t, "1.0", rec.Version)
	assert.True(t, rec.IsActive)
	assert.Equal(t, "curator-1", rec.CreatedBy)
	assert.Empty(t, rec.ReviewedBy)
	assert.Nil(t, rec.ReviewedAt)
	assert.Len(t, repo.records, 1)
}

func TestService_Create_ApprovedRecordsReviewMetadata(t *testing.T) {
	svc, _ := newTestService()
	req := validCreate()
	req.Status = StatusApproved

	rec, err := svc.Create(context.Background(), req, "curator-1")
	require.NoError(t, err)
	assert.Equal(t, "curator-1", rec.ReviewedBy)
	require.NotNil(t, rec.ReviewedAt)
}

func TestService_Create_Validation(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	cases := map[string]func(r *CreateRequest){
		"no mapped terms":   func(r *CreateRequest) { r.MappedTerms = nil },
		"unknown system":    func(r *CreateRequest) { r.SourceTerm.System = "Siddha" },
		"missing code":      func(r *CreateRequest) { r.SourceTerm.Code = "" },
		"blank code":        func(r *CreateRequest) { r.SourceTerm.Code = "  " },
		"blank term":        func(r *CreateRequest) { r.SourceTerm.Term = "\t" },
		"blank mapped code": func(r *CreateRequest) { r.MappedTerms[0].Code = " " },
		"confidence > 1":    func(r *CreateRequest) { r.MappedTerms[0].Confidence = 1.5 },
		"bad mapping type":  func(r *CreateRequest) { r.MappedTerms[1].MappingType = "similar" },
		"deprecated status": func(r *CreateRequest) { r.Status = StatusDeprecated },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validCreate()
			mutate(req)
			_, err := svc.Create(ctx, req, "curator-1")
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, repo.records)
}

func TestService_Review_Transitions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rec, err := svc.Create(ctx, validCreate(), "curator-1")
	require.NoError(t, err)

	_, err = svc.Review(ctx, rec.ID, &ReviewRequest{Status: StatusApproved}, "reviewer-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	reviewed, err := svc.Review(ctx, rec.ID, &ReviewRequest{Status: StatusReviewed, Notes: "checked"}, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, reviewed.Status)
	assert.Equal(t, "reviewer-1", reviewed.ReviewedBy)
	assert.Equal(t, "checked", reviewed.Notes)

	approved, err := svc.Review(ctx, rec.ID, &ReviewRequest{Status: StatusApproved}, "reviewer-2")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, "checked", approved.Notes)

	_, err = svc.Review(ctx, rec.ID, &ReviewRequest{Status: StatusDeprecated}, "reviewer-2")
	require.NoError(t, err)

	_, err = svc.Review(ctx, rec.ID, &ReviewRequest{Status: StatusDeprecated}, "reviewer-2")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestService_Review_UnknownStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	rec, err := svc.Create(ctx, validCreate(), "curator-1")
	require.NoError(t, err)

	_, err = svc.Review(ctx, rec.ID, &ReviewRequest{Status: StatusDraft}, "reviewer-1")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_List_RejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService()

	_, _, err := svc.List(context.Background(), ListFilter{Status: "pending"}, 20, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusDraft, StatusReviewed, true},
		{StatusDraft, StatusApproved, false},
		{StatusReviewed, StatusApproved, true},
		{StatusApproved, StatusReviewed, false},
		{StatusDraft, StatusDeprecated, true},
		{StatusApproved, StatusDeprecated, true},
		{StatusDeprecated, StatusDeprecated, false},
		{StatusDeprecated, StatusReviewed, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
