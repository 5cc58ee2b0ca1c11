package models

import (
	"time"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/classifier"
)

// Manual review band. A legitimate label whose fraud probability falls inside
// [ManualReviewLowerBound, ManualReviewUpperBound] is flagged for a human.
const (
	ManualReviewLowerBound = 0.45
	ManualReviewUpperBound = 0.55
)

// RequiresManualReview derives the manual_review flag from a classifier outcome.
func RequiresManualReview(prediction int, probability float64) bool {
	return prediction == classifier.LabelLegitimate &&
		probability >= ManualReviewLowerBound &&
		probability <= ManualReviewUpperBound
}

// Prediction maps to table `predictions`. One row per scored transaction.
type Prediction struct {
	ID                 int64
	TransactionID      int64
	Prediction         int
	Probability        float64
	ManualReview       bool
	Reviewed           bool
	ReviewedPrediction *int
	ReviewedAt         *time.Time
	CreatedAt          time.Time
}

// NewPrediction builds an unreviewed prediction for transactionID with ManualReview derived from res.
func NewPrediction(transactionID int64, res classifier.Result) Prediction {
	return Prediction{
		TransactionID: transactionID,
		Prediction:    res.Prediction,
		Probability:   res.Probability,
		ManualReview:  RequiresManualReview(res.Prediction, res.Probability),
	}
}

// ScoredRow is the per-record output of the pipeline: the stored transaction plus its outcome.
type ScoredRow struct {
	ID             int64               `json:"id"`
	Step           int                 `json:"step"`
	Amount         float64             `json:"amount"`
	Type           pkg.TransactionType `json:"type"`
	OldBalanceOrg  float64             `json:"oldbalanceOrg"`
	NewBalanceOrig float64             `json:"newbalanceOrig"`
	OldBalanceDest float64             `json:"oldbalanceDest"`
	NewBalanceDest float64             `json:"newbalanceDest"`
	Prediction     int                 `json:"prediction"`
	Probability    float64             `json:"probability"`
	ManualReview   bool                `json:"manual_review"`
}

// NewScoredRow joins an inserted transaction with its prediction.
func NewScoredRow(t Transaction, p Prediction) ScoredRow {
	return ScoredRow{
		ID:             t.ID,
		Step:           t.Step,
		Amount:         t.Amount,
		Type:           t.Type,
		OldBalanceOrg:  t.OldBalanceOrg,
		NewBalanceOrig: t.NewBalanceOrig,
		OldBalanceDest: t.OldBalanceDest,
		NewBalanceDest: t.NewBalanceDest,
		Prediction:     p.Prediction,
		Probability:    p.Probability,
		ManualReview:   p.ManualReview,
	}
}

// TransactionWithPrediction is one row of the paginated listing. Prediction is nil
// for transactions that were never scored.
type TransactionWithPrediction struct {
	Transaction Transaction
	Prediction  *Prediction
}
