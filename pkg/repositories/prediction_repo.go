package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
)

// PredictionRepository defines the interface for prediction storage.
type PredictionRepository interface {
	// CreateBatch copies preds into the predictions table. Every prediction must reference
	// a transaction inserted earlier in the same tx.
	CreateBatch(ctx context.Context, tx pgx.Tx, preds []models.Prediction) error
	// Review records a human decision on predictionID. Returns pgx.ErrNoRows when it does not exist.
	Review(ctx context.Context, tx pgx.Tx, predictionID int64, reviewedPrediction int) (models.Prediction, error)
}

type PredictionRepositoryImpl struct {
}

func NewPredictionRepository() PredictionRepository {
	return &PredictionRepositoryImpl{}
}

var predictionCopyColumns = []string{"transaction_id", "prediction", "probability", "manual_review"}

func (r PredictionRepositoryImpl) CreateBatch(ctx context.Context, tx pgx.Tx, preds []models.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"predictions"},
		predictionCopyColumns,
		pgx.CopyFromSlice(len(preds), func(i int) ([]any, error) {
			p := preds[i]
			return []any{p.TransactionID, int16(p.Prediction), p.Probability, p.ManualReview}, nil
		}),
	)
	if err != nil {
		return err
	}
	if n != int64(len(preds)) {
		return fmt.Errorf("copied %d predictions, expected %d", n, len(preds))
	}
	return nil
}

func (r PredictionRepositoryImpl) Review(ctx context.Context, tx pgx.Tx, predictionID int64, reviewedPrediction int) (models.Prediction, error) {
	var p models.Prediction
	err := tx.QueryRow(ctx, `
		UPDATE predictions
		SET reviewed = TRUE, reviewed_prediction = $1, reviewed_at = $2
		WHERE id = $3
		RETURNING id, transaction_id, prediction, probability, manual_review, reviewed, reviewed_prediction, reviewed_at, created_at`,
		int16(reviewedPrediction), time.Now().UTC(), predictionID,
	).Scan(
		&p.ID, &p.TransactionID, &p.Prediction, &p.Probability, &p.ManualReview,
		&p.Reviewed, &p.ReviewedPrediction, &p.ReviewedAt, &p.CreatedAt,
	)
	return p, err
}
