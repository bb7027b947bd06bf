package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

func TestExtractReviewReasons(t *testing.T) {
	tests := []struct {
		name   string
		result *domain.ReviewResult
		want   []string
	}{
		{name: "nil", result: nil, want: nil},
		{
			name: "findings win",
			result: &domain.ReviewResult{
				Reason:   "ignored",
				Findings: []domain.Finding{{Label: "Student ID", Message: "missing"}, {Label: "Signature", Message: "blurry"}},
			},
			want: []string{"Student ID: missing", "Signature: blurry"},
		},
		{
			name:   "reason",
			result: &domain.ReviewResult{Reason: "Stamp not found", DebugTexts: []string{"x"}},
			want:   []string{"Stamp not found"},
		},
		{
			name:   "whitespace reason still counts",
			result: &domain.ReviewResult{Reason: "  ", DebugTexts: []string{"a"}},
			want:   []string{"  "},
		},
		{
			name:   "first five debug texts as given",
			result: &domain.ReviewResult{DebugTexts: []string{"a", "", "b", "c", " ", "d", "e"}},
			want:   []string{"a", "", "b", "c", " "},
		},
		{name: "nothing", result: &domain.ReviewResult{}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractReviewReasons(tt.result))
		})
	}
}

type reviewSourceFunc func(ctx context.Context, id string) (*domain.ReviewResult, error)

func (f reviewSourceFunc) ReviewResult(ctx context.Context, id string) (*domain.ReviewResult, error) {
	return f(ctx, id)
}

func TestFetchReviewReasonsSwallowsErrors(t *testing.T) {
	failing := reviewSourceFunc(func(context.Context, string) (*domain.ReviewResult, error) {
		return nil, errors.New("boom")
	})
	assert.Empty(t, FetchReviewReasons(context.Background(), failing, "7", nil))

	ok := reviewSourceFunc(func(_ context.Context, id string) (*domain.ReviewResult, error) {
		return &domain.ReviewResult{SubmissionID: id, Reason: "late"}, nil
	})
	assert.Equal(t, []string{"late"}, FetchReviewReasons(context.Background(), ok, "7", nil))
}
