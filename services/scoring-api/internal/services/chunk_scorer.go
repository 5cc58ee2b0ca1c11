package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/classifier"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/database"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/repositories"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/views"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/observability"
	"go.uber.org/zap"
)

// ChunkScorer persists and scores one chunk as a single unit of work.
type ChunkScorer interface {
	// ScoreChunk returns one ScoredRow per input row, in input order. On error nothing of
	// the chunk is stored.
	ScoreChunk(ctx context.Context, traceID string, chunkIndex int, chunk []models.Transaction) ([]models.ScoredRow, error)
}

// ChunkScorerConfig holds the dependencies of the chunk scorer.
type ChunkScorerConfig struct {
	Logger          *zap.Logger
	DB              database.TxRunner
	Classifier      classifier.Classifier
	TransactionRepo repositories.TransactionRepository
	PredictionRepo  repositories.PredictionRepository
	Publisher       ReviewPublisher
}

// NewChunkScorer creates a ChunkScorer. A nil Publisher drops review events.
func NewChunkScorer(cfg ChunkScorerConfig) ChunkScorer {
	if cfg.Publisher == nil {
		cfg.Publisher = NewNoopReviewPublisher()
	}
	return &cfg
}

func (s *ChunkScorerConfig) ScoreChunk(ctx context.Context, traceID string, chunkIndex int, chunk []models.Transaction) ([]models.ScoredRow, error) {
	if len(chunk) == 0 {
		return []models.ScoredRow{}, nil
	}
	start := time.Now()
	observability.InflightChunks.Inc()
	defer observability.InflightChunks.Dec()

	var rows []models.ScoredRow
	err := s.DB.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		ids, err := s.TransactionRepo.CreateBatch(ctx, tx, chunk)
		if err != nil {
			return pkg.HandleSQLError(traceID, s.Logger, err)
		}
		if len(ids) != len(chunk) {
			return pkg.NewAppError(pkg.ErrSQLUnknownCode, "transaction insert returned unexpected id count", nil)
		}

		preds := make([]models.Prediction, len(chunk))
		rows = make([]models.ScoredRow, len(chunk))
		for i, txn := range chunk {
			txn.ID = ids[i]
			res, err := s.Classifier.PredictProba(txn.Features())
			if err != nil {
				return classifierError(err)
			}
			preds[i] = models.NewPrediction(txn.ID, res)
			rows[i] = models.NewScoredRow(txn, preds[i])
		}

		if err = s.PredictionRepo.CreateBatch(ctx, tx, preds); err != nil {
			return pkg.HandleSQLError(traceID, s.Logger, err)
		}
		return nil
	})
	if err != nil {
		if !isAppError(err) {
			// Begin or commit failed.
			err = pkg.HandleSQLError(traceID, s.Logger, err)
		}
		observability.ChunksFailed.WithLabelValues(errorCode(err)).Inc()
		s.Logger.Error("chunk_rolled_back",
			zap.String(pkg.TraceId, traceID),
			zap.Int(pkg.ChunkIndex, chunkIndex),
			zap.Int("rows", len(chunk)),
			zap.Error(err))
		return nil, err
	}

	observability.ChunksScored.Inc()
	observability.ChunkLatency.Observe(time.Since(start).Seconds())
	s.publishReviews(ctx, traceID, chunkIndex, rows)
	s.Logger.Info("chunk_committed",
		zap.String(pkg.TraceId, traceID),
		zap.Int(pkg.ChunkIndex, chunkIndex),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)))
	return rows, nil
}

// publishReviews records label metrics and hands flagged rows to the publisher.
func (s *ChunkScorerConfig) publishReviews(ctx context.Context, traceID string, chunkIndex int, rows []models.ScoredRow) {
	now := time.Now().UTC()
	var events []views.ReviewEvent
	for _, row := range rows {
		observability.RowsScored.WithLabelValues(strconv.Itoa(row.Prediction)).Inc()
		if row.ManualReview {
			events = append(events, views.NewReviewEvent(traceID, row, now))
		}
	}
	if len(events) == 0 {
		return
	}
	observability.ManualReviewFlagged.Add(float64(len(events)))
	if err := s.Publisher.PublishReviews(ctx, events); err != nil {
		observability.ReviewEventsFailed.Inc()
		s.Logger.Warn("review_events_not_published",
			zap.String(pkg.TraceId, traceID),
			zap.Int(pkg.ChunkIndex, chunkIndex),
			zap.Int("events", len(events)),
			zap.Error(err))
	}
}

func classifierError(err error) error {
	var missing *classifier.MissingFeatureError
	if errors.As(err, &missing) {
		return pkg.NewAppError(pkg.ErrMissingFeatureCode, "Missing feature: "+missing.Feature, err)
	}
	var unknown *classifier.UnknownCategoryError
	if errors.As(err, &unknown) {
		return pkg.NewAppError(pkg.ErrModelInputCode, "Unknown value for feature "+unknown.Feature, err)
	}
	return pkg.NewAppError(pkg.ErrServerCode, "classifier failed", err)
}

func isAppError(err error) bool {
	var appErr pkg.AppError
	return errors.As(err, &appErr)
}

func errorCode(err error) string {
	var appErr pkg.AppError
	if errors.As(err, &appErr) {
		return appErr.Code.Code
	}
	return pkg.ErrServerCode.Code
}
