package services

import (
	"context"
	"testing"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newReviewFixture(t *testing.T) (*memStore, ReviewService) {
	store := newMemStore()
	store.predictions[7] = models.Prediction{ID: 7, TransactionID: 3, Prediction: 0, Probability: 0.5, ManualReview: true}
	svc := NewReviewService(ReviewServiceConfig{
		Logger:         zaptest.NewLogger(t),
		DB:             store,
		PredictionRepo: &memPredictionRepo{store: store},
	})
	return store, svc
}

func TestReview_RecordsHumanLabel(t *testing.T) {
	store, svc := newReviewFixture(t)

	got, err := svc.Review(context.Background(), "trace", 7, 1)
	require.NoError(t, err)
	assert.True(t, got.Reviewed)
	require.NotNil(t, got.ReviewedPrediction)
	assert.Equal(t, 1, *got.ReviewedPrediction)
	assert.NotNil(t, got.ReviewedAt)
	assert.Equal(t, 0, got.Prediction, "model label is kept")
	assert.True(t, store.predictions[7].Reviewed)
}

func TestReview_UnknownPrediction(t *testing.T) {
	_, svc := newReviewFixture(t)

	_, err := svc.Review(context.Background(), "trace", 99, 0)
	require.Error(t, err)
	assert.True(t, pkg.HasCode(err, pkg.ErrRecordNotFoundCode))
	assert.Contains(t, err.Error(), "Prediction not found")
}

func TestReview_RejectsInvalidLabel(t *testing.T) {
	store, svc := newReviewFixture(t)

	_, err := svc.Review(context.Background(), "trace", 7, 2)
	require.Error(t, err)
	assert.True(t, pkg.HasCode(err, pkg.ErrInvalidInputCode))
	assert.False(t, store.predictions[7].Reviewed)
}

func listedRows(n int) []models.TransactionWithPrediction {
	rows := make([]models.TransactionWithPrediction, n)
	for i := range rows {
		rows[i] = models.TransactionWithPrediction{Transaction: models.Transaction{ID: int64(i + 1)}}
	}
	return rows
}

func TestList_Pages(t *testing.T) {
	repo := &memTransactionRepo{page: listedRows(3), count: 3}
	svc := NewTransactionService(TransactionServiceConfig{Logger: zaptest.NewLogger(t), TransactionRepo: repo})

	got, err := svc.List(context.Background(), "trace", 2, 2)
	require.NoError(t, err)
	require.Len(t, got.Data, 1)
	assert.Equal(t, int64(3), got.Data[0].ID)
	assert.Nil(t, got.Data[0].Prediction)
	assert.Equal(t, int64(2), got.Pagination.TotalPages)
	assert.False(t, got.Pagination.HasNext)
	assert.True(t, got.Pagination.HasPrevious)

	got, err = svc.List(context.Background(), "trace", 5, 2)
	require.NoError(t, err)
	assert.NotNil(t, got.Data)
	assert.Empty(t, got.Data)
}

func TestList_InvalidPaging(t *testing.T) {
	svc := NewTransactionService(TransactionServiceConfig{Logger: zaptest.NewLogger(t), TransactionRepo: &memTransactionRepo{}})
	for _, tc := range [][2]int{{0, 10}, {1, 0}, {1, 1001}} {
		_, err := svc.List(context.Background(), "trace", tc[0], tc[1])
		assert.True(t, pkg.HasCode(err, pkg.ErrInvalidInputCode), "page=%d size=%d", tc[0], tc[1])
	}
}

func TestList_StorageError(t *testing.T) {
	svc := NewTransactionService(TransactionServiceConfig{
		Logger:          zaptest.NewLogger(t),
		TransactionRepo: &memTransactionRepo{failWith: assert.AnError},
	})
	_, err := svc.List(context.Background(), "trace", 1, 10)
	assert.True(t, pkg.HasCode(err, pkg.ErrSQLUnknownCode))
}

func rawAnalytics() models.Analytics {
	return models.Analytics{
		StepDistribution: []models.StepCount{
			{Step: 1, Legitimate: 2, Fraudulent: 1},
			{Step: 2, Legitimate: 0, Fraudulent: 0},
			{Step: 3, Legitimate: 0, Fraudulent: 0},
		},
		BalanceDistribution: []models.BalanceBucket{
			{Lower: 100000, Legitimate: 2, Fraudulent: 1, AvgBalance: 120000},
			{Lower: 1200000, Fraudulent: 1},
		},
		AmountDistribution: []models.AmountBucket{
			{Lower: 0, Count: 1},
			{Lower: 9800, Count: 2},
		},
		SummaryStats: models.SummaryStats{AvgAmount: 50, MinAmount: 1, MaxAmount: 9839.64, TotalTransactions: 3},
	}
}

func TestAnalytics_Summarizes(t *testing.T) {
	a := rawAnalytics()
	a.StepDistribution[1].Legitimate = 3
	repo := &memTransactionRepo{analytics: a}
	svc := NewTransactionService(TransactionServiceConfig{Logger: zaptest.NewLogger(t), TransactionRepo: repo})

	got, err := svc.Analytics(context.Background(), "trace")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.LegitimateCount)
	assert.Equal(t, int64(1), got.FraudulentCount)
	assert.Equal(t, 16.67, got.FraudulentPercentage)
	assert.Equal(t, "100,000 - 200,000", got.BalanceDistribution[0].BalanceRange)
	assert.Equal(t, "1,200,000 - 1,300,000", got.BalanceDistribution[1].BalanceRange)
	assert.Equal(t, "0 - 100", got.AmountDistribution[0].AmountRange)
	assert.Equal(t, "9,800 - 9,900", got.AmountDistribution[1].AmountRange)
}

func TestAnalytics_EmptyStore(t *testing.T) {
	svc := NewTransactionService(TransactionServiceConfig{Logger: zaptest.NewLogger(t), TransactionRepo: &memTransactionRepo{}})

	got, err := svc.Analytics(context.Background(), "trace")
	require.NoError(t, err)
	assert.Zero(t, got.FraudulentPercentage)
	assert.NotNil(t, got.StepDistribution)
	assert.NotNil(t, got.BalanceDistribution)
	assert.NotNil(t, got.AmountDistribution)
}

func TestAnalytics_CacheAside(t *testing.T) {
	repo := &memTransactionRepo{analytics: rawAnalytics()}
	c := &memCache{}
	svc := NewTransactionService(TransactionServiceConfig{Logger: zaptest.NewLogger(t), TransactionRepo: repo, Cache: c})
	ctx := context.Background()

	first, err := svc.Analytics(ctx, "trace")
	require.NoError(t, err)
	second, err := svc.Analytics(ctx, "trace")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.analyzed, "second call is served from cache")

	svc.InvalidateAnalytics(ctx, "trace")
	_, err = svc.Analytics(ctx, "trace")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.analyzed)
}

func TestAnalytics_StorageError(t *testing.T) {
	c := &memCache{}
	svc := NewTransactionService(TransactionServiceConfig{
		Logger:          zaptest.NewLogger(t),
		TransactionRepo: &memTransactionRepo{failWith: assert.AnError},
		Cache:           c,
	})
	_, err := svc.Analytics(context.Background(), "trace")
	assert.True(t, pkg.HasCode(err, pkg.ErrSQLUnknownCode))
	assert.Empty(t, c.values)
}
