package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/classifier"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/database"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/repositories"
	"go.uber.org/zap"
)

// ReviewService records human decisions on stored predictions.
type ReviewService interface {
	Review(ctx context.Context, traceID string, predictionID int64, reviewedPrediction int) (models.Prediction, error)
}

type ReviewServiceConfig struct {
	Logger         *zap.Logger
	DB             database.TxRunner
	PredictionRepo repositories.PredictionRepository
}

func NewReviewService(cfg ReviewServiceConfig) ReviewService {
	return &cfg
}

// Review marks the prediction reviewed with the given label. The model's own label is kept.
func (r *ReviewServiceConfig) Review(ctx context.Context, traceID string, predictionID int64, reviewedPrediction int) (models.Prediction, error) {
	if reviewedPrediction != classifier.LabelLegitimate && reviewedPrediction != classifier.LabelFraudulent {
		return models.Prediction{}, pkg.NewAppError(pkg.ErrInvalidInputCode, "reviewed_prediction must be 0 or 1", nil)
	}

	var reviewed models.Prediction
	err := r.DB.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		reviewed, err = r.PredictionRepo.Review(ctx, tx, predictionID, reviewedPrediction)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Prediction{}, pkg.NewAppError(pkg.ErrRecordNotFoundCode, "Prediction not found", err)
	}
	if err != nil {
		return models.Prediction{}, pkg.HandleSQLError(traceID, r.Logger, err)
	}

	r.Logger.Info("prediction_reviewed",
		zap.String(pkg.TraceId, traceID),
		zap.Int64(pkg.PredictionId, reviewed.ID),
		zap.Int64(pkg.TransactionId, reviewed.TransactionID),
		zap.Int("model_prediction", reviewed.Prediction),
		zap.Int("reviewed_prediction", reviewedPrediction))
	return reviewed, nil
}
