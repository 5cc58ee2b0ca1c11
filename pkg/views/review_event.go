package views

import (
	"time"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
)

// ReviewEvent is the Kafka payload announcing a committed prediction that needs human review.
type ReviewEvent struct {
	TraceID         string              `json:"traceId"`
	TransactionID   int64               `json:"transactionId"`
	Step            int                 `json:"step"`
	Amount          float64             `json:"amount"`
	TransactionType pkg.TransactionType `json:"type"`
	Prediction      int                 `json:"prediction"`
	Probability     float64             `json:"probability"`
	ScoredAt        time.Time           `json:"scoredAt"`
}

// NewReviewEvent builds the event for a scored row.
func NewReviewEvent(traceID string, row models.ScoredRow, scoredAt time.Time) ReviewEvent {
	return ReviewEvent{
		TraceID:         traceID,
		TransactionID:   row.ID,
		Step:            row.Step,
		Amount:          row.Amount,
		TransactionType: row.Type,
		Prediction:      row.Prediction,
		Probability:     row.Probability,
		ScoredAt:        scoredAt,
	}
}
