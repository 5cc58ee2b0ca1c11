package services

import (
	"context"
	"time"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxConcurrentChunks = 4

// Pipeline scores uploaded tables and single transactions.
type Pipeline interface {
	// ProcessUpload validates and parses u, then scores every row. Validation failures happen
	// before any row is stored.
	ProcessUpload(ctx context.Context, traceID string, u Upload) ([]models.ScoredRow, error)
	// Process scores already-parsed rows chunk by chunk and returns results in input order.
	Process(ctx context.Context, traceID string, rows []models.Transaction) ([]models.ScoredRow, error)
	// ScoreOne scores a single transaction as a one-row chunk.
	ScoreOne(ctx context.Context, traceID string, txn models.Transaction) (models.ScoredRow, error)
}

// AnalyticsInvalidator drops cached aggregates after new predictions are committed.
type AnalyticsInvalidator interface {
	InvalidateAnalytics(ctx context.Context, traceID string)
}

// PipelineConfig holds the dependencies and limits of the pipeline orchestrator.
type PipelineConfig struct {
	Logger              *zap.Logger
	Scorer              ChunkScorer
	ChunkSize           int
	MaxConcurrentChunks int
	Limits              UploadLimits
	Invalidator         AnalyticsInvalidator // optional
}

// NewPipeline creates a Pipeline, filling unset limits with their defaults.
func NewPipeline(cfg PipelineConfig) Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxConcurrentChunks <= 0 {
		cfg.MaxConcurrentChunks = DefaultMaxConcurrentChunks
	}
	return &cfg
}

func (p *PipelineConfig) ProcessUpload(ctx context.Context, traceID string, u Upload) ([]models.ScoredRow, error) {
	rows, err := ParseUpload(u, p.Limits)
	if err != nil {
		observability.UploadsRejected.WithLabelValues(errorCode(err)).Inc()
		p.Logger.Warn("upload_rejected",
			zap.String(pkg.TraceId, traceID),
			zap.String("filename", u.Filename),
			zap.String("content_type", u.ContentType),
			zap.Int64("size", u.Size),
			zap.Error(err))
		return nil, err
	}
	observability.UploadRows.Observe(float64(len(rows)))
	p.Logger.Info("upload_accepted",
		zap.String(pkg.TraceId, traceID),
		zap.String("filename", u.Filename),
		zap.Int("rows", len(rows)))
	return p.Process(ctx, traceID, rows)
}

// Process runs every chunk on a bounded worker group. Chunks commit independently: when one
// fails its siblings still run to completion and the first failure is returned.
func (p *PipelineConfig) Process(ctx context.Context, traceID string, rows []models.Transaction) ([]models.ScoredRow, error) {
	chunks := SplitChunks(rows, p.ChunkSize)
	if len(chunks) == 0 {
		return []models.ScoredRow{}, nil
	}
	start := time.Now()

	results := make([][]models.ScoredRow, len(chunks))
	var g errgroup.Group
	g.SetLimit(p.MaxConcurrentChunks)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			scored, err := p.Scorer.ScoreChunk(ctx, traceID, i, chunk)
			if err != nil {
				return err
			}
			results[i] = scored
			return nil
		})
	}
	err := g.Wait()

	committed := 0
	for _, r := range results {
		if r != nil {
			committed++
		}
	}
	if committed > 0 && p.Invalidator != nil {
		p.Invalidator.InvalidateAnalytics(ctx, traceID)
	}
	if err != nil {
		p.Logger.Error("batch_failed",
			zap.String(pkg.TraceId, traceID),
			zap.Int("chunks", len(chunks)),
			zap.Int("chunks_committed", committed),
			zap.Error(err))
		return nil, err
	}

	out := make([]models.ScoredRow, 0, len(rows))
	for _, r := range results {
		out = append(out, r...)
	}
	p.Logger.Info("batch_scored",
		zap.String(pkg.TraceId, traceID),
		zap.Int("rows", len(out)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (p *PipelineConfig) ScoreOne(ctx context.Context, traceID string, txn models.Transaction) (models.ScoredRow, error) {
	rows, err := p.Process(ctx, traceID, []models.Transaction{txn})
	if err != nil {
		return models.ScoredRow{}, err
	}
	return rows[0], nil
}
