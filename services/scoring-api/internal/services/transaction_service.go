package services

import (
	"context"
	"errors"
	"math"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/cache"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/database"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/repositories"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/views"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	analyticsCacheKey  = "summary"
	balanceBucketWidth = 100000
	amountBucketWidth  = 100
)

// AnalyticsCache stores the computed analytics between requests.
type AnalyticsCache interface {
	Get(ctx context.Context, key string, out any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// TransactionService serves read models over stored transactions and predictions.
type TransactionService interface {
	List(ctx context.Context, traceID string, page, pageSize int) (views.TransactionPage, error)
	Analytics(ctx context.Context, traceID string) (models.Analytics, error)
	AnalyticsInvalidator
}

type TransactionServiceConfig struct {
	Logger          *zap.Logger
	DB              database.Querier
	TransactionRepo repositories.TransactionRepository
	Cache           AnalyticsCache // optional
}

func NewTransactionService(cfg TransactionServiceConfig) TransactionService {
	return &cfg
}

func (s *TransactionServiceConfig) List(ctx context.Context, traceID string, page, pageSize int) (views.TransactionPage, error) {
	if page < 1 || pageSize < 1 || pageSize > 1000 {
		return views.TransactionPage{}, pkg.NewAppError(pkg.ErrInvalidInputCode, "page must be >= 1 and page_size between 1 and 1000", nil)
	}
	total, err := s.TransactionRepo.Count(ctx, s.DB)
	if err != nil {
		return views.TransactionPage{}, pkg.HandleSQLError(traceID, s.Logger, err)
	}
	rows, err := s.TransactionRepo.FindPage(ctx, s.DB, pageSize, (page-1)*pageSize)
	if err != nil {
		return views.TransactionPage{}, pkg.HandleSQLError(traceID, s.Logger, err)
	}

	data := make([]views.TransactionView, 0, len(rows))
	for _, row := range rows {
		data = append(data, views.NewTransactionView(row))
	}
	return views.TransactionPage{
		Data:       data,
		Pagination: views.NewPagination(total, page, pageSize),
	}, nil
}

// Analytics returns aggregates over every scored transaction, from cache when possible.
func (s *TransactionServiceConfig) Analytics(ctx context.Context, traceID string) (models.Analytics, error) {
	var a models.Analytics
	if s.Cache != nil {
		err := s.Cache.Get(ctx, analyticsCacheKey, &a)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.Logger.Warn("analytics_cache_read_failed", zap.String(pkg.TraceId, traceID), zap.Error(err))
		}
	}

	a, err := s.TransactionRepo.Analytics(ctx, s.DB)
	if err != nil {
		return models.Analytics{}, pkg.HandleSQLError(traceID, s.Logger, err)
	}
	summarize(&a)

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, analyticsCacheKey, a); err != nil {
			s.Logger.Warn("analytics_cache_write_failed", zap.String(pkg.TraceId, traceID), zap.Error(err))
		}
	}
	return a, nil
}

func (s *TransactionServiceConfig) InvalidateAnalytics(ctx context.Context, traceID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, analyticsCacheKey); err != nil {
		s.Logger.Warn("analytics_cache_invalidate_failed", zap.String(pkg.TraceId, traceID), zap.Error(err))
	}
}

// summarize derives totals, the fraud percentage and bucket labels from the raw aggregates.
func summarize(a *models.Analytics) {
	a.LegitimateCount, a.FraudulentCount = 0, 0
	for _, s := range a.StepDistribution {
		a.LegitimateCount += s.Legitimate
		a.FraudulentCount += s.Fraudulent
	}
	a.FraudulentPercentage = 0
	if total := a.LegitimateCount + a.FraudulentCount; total > 0 {
		a.FraudulentPercentage = math.Round(float64(a.FraudulentCount)/float64(total)*100*100) / 100
	}

	p := message.NewPrinter(language.English)
	for i := range a.BalanceDistribution {
		b := &a.BalanceDistribution[i]
		b.BalanceRange = p.Sprintf("%d - %d", int64(b.Lower), int64(b.Lower)+balanceBucketWidth)
	}
	for i := range a.AmountDistribution {
		b := &a.AmountDistribution[i]
		b.AmountRange = p.Sprintf("%d - %d", int64(b.Lower), int64(b.Lower)+amountBucketWidth)
	}
	if a.StepDistribution == nil {
		a.StepDistribution = []models.StepCount{}
	}
	if a.BalanceDistribution == nil {
		a.BalanceDistribution = []models.BalanceBucket{}
	}
	if a.AmountDistribution == nil {
		a.AmountDistribution = []models.AmountBucket{}
	}
}
