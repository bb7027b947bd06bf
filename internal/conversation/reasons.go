package conversation

import (
	"context"

	"go.uber.org/zap"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

const maxDebugReasons = 5

// ReviewSource loads automatic review results.
type ReviewSource interface {
	ReviewResult(ctx context.Context, submissionID string) (*domain.ReviewResult, error)
}

// ExtractReviewReasons picks the most specific explanation available:
// structured findings, then the free-text reason, then the first debug texts.
func ExtractReviewReasons(r *domain.ReviewResult) []string {
	if r == nil {
		return nil
	}
	if len(r.Findings) > 0 {
		out := make([]string, 0, len(r.Findings))
		for _, f := range r.Findings {
			out = append(out, f.Label+": "+f.Message)
		}
		return out
	}
	if r.Reason != "" {
		return []string{r.Reason}
	}
	if len(r.DebugTexts) == 0 {
		return nil
	}
	n := min(len(r.DebugTexts), maxDebugReasons)
	return append([]string(nil), r.DebugTexts[:n]...)
}

// FetchReviewReasons loads the review result and extracts its reasons.
// A failed fetch yields no reasons.
func FetchReviewReasons(ctx context.Context, src ReviewSource, submissionID string, logger *zap.Logger) []string {
	result, err := src.ReviewResult(ctx, submissionID)
	if err != nil {
		if logger != nil {
			logger.Warn("review result unavailable", zap.String("submission_id", submissionID), zap.Error(err))
		}
		return nil
	}
	return ExtractReviewReasons(result)
}
