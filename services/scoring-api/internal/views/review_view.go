package views

import (
	"time"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
)

// ReviewURI binds the path of PUT /review/:prediction_id.
type ReviewURI struct {
	PredictionID int64 `uri:"prediction_id" binding:"required,min=1"`
}

// ReviewQuery binds the query of PUT /review/:prediction_id.
type ReviewQuery struct {
	ReviewedPrediction *int `form:"reviewed_prediction" binding:"required,oneof=0 1"`
}

type PredictionView struct {
	ID                 int64      `json:"id"`
	TransactionID      int64      `json:"transaction_id"`
	Prediction         int        `json:"prediction"`
	Probability        float64    `json:"probability"`
	ManualReview       bool       `json:"manual_review"`
	Reviewed           bool       `json:"reviewed"`
	ReviewedPrediction *int       `json:"reviewed_prediction"`
	ReviewedAt         *time.Time `json:"reviewed_at"`
}

func NewPredictionView(p models.Prediction) PredictionView {
	return PredictionView{
		ID:                 p.ID,
		TransactionID:      p.TransactionID,
		Prediction:         p.Prediction,
		Probability:        p.Probability,
		ManualReview:       p.ManualReview,
		Reviewed:           p.Reviewed,
		ReviewedPrediction: p.ReviewedPrediction,
		ReviewedAt:         p.ReviewedAt,
	}
}

type ReviewResponse struct {
	Message    string         `json:"message"`
	Prediction PredictionView `json:"prediction"`
}
