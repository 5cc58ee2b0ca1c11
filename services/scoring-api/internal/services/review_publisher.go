package services

import (
	"context"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/views"
)

// ReviewPublisher hands manual-review events to downstream reviewers. Delivery is best-effort:
// events are only published after their chunk committed and a failure never undoes the chunk.
type ReviewPublisher interface {
	PublishReviews(ctx context.Context, events []views.ReviewEvent) error
	Close()
}

type noopReviewPublisher struct{}

// NewNoopReviewPublisher returns a publisher that drops every event. Used when no broker is configured.
func NewNoopReviewPublisher() ReviewPublisher {
	return noopReviewPublisher{}
}

func (noopReviewPublisher) PublishReviews(context.Context, []views.ReviewEvent) error { return nil }
func (noopReviewPublisher) Close()                                                    {}
