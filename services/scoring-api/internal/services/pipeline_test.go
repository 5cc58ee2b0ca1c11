package services

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/classifier"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type pipelineFixture struct {
	store     *memStore
	publisher *recordingPublisher
	scorer    ChunkScorer
}

func newPipelineFixture(t *testing.T, clf classifier.Classifier) pipelineFixture {
	store := newMemStore()
	pub := &recordingPublisher{}
	scorer := NewChunkScorer(ChunkScorerConfig{
		Logger:          zaptest.NewLogger(t),
		DB:              store,
		Classifier:      clf,
		TransactionRepo: &memTransactionRepo{store: store},
		PredictionRepo:  &memPredictionRepo{store: store},
		Publisher:       pub,
	})
	return pipelineFixture{store: store, publisher: pub, scorer: scorer}
}

func (f pipelineFixture) pipeline(t *testing.T, chunkSize, workers int) Pipeline {
	return NewPipeline(PipelineConfig{
		Logger:              zaptest.NewLogger(t),
		Scorer:              f.scorer,
		ChunkSize:           chunkSize,
		MaxConcurrentChunks: workers,
	})
}

func transferRow() models.Transaction {
	return models.Transaction{
		Step: 1, Amount: 100.0, Type: pkg.TransactionTypeTransfer,
		OldBalanceOrg: 1000.0, NewBalanceOrig: 900.0, OldBalanceDest: 0.0, NewBalanceDest: 100.0,
	}
}

func numberedRows(n int) []models.Transaction {
	rows := make([]models.Transaction, n)
	for i := range rows {
		rows[i] = transferRow()
		rows[i].Amount = float64(i)
	}
	return rows
}

func TestScoreOne_BoundaryProbabilityIsFlaggedForReview(t *testing.T) {
	f := newPipelineFixture(t, constantClassifier(0, 0.5))
	p := f.pipeline(t, DefaultChunkSize, 1)

	row, err := p.ScoreOne(context.Background(), "trace", transferRow())
	require.NoError(t, err)

	assert.NotZero(t, row.ID)
	assert.Equal(t, 0, row.Prediction)
	assert.Equal(t, 0.5, row.Probability)
	assert.True(t, row.ManualReview)
	assert.Equal(t, pkg.TransactionTypeTransfer, row.Type)
	assert.Equal(t, 900.0, row.NewBalanceOrig)

	assert.Equal(t, 1, f.store.transactionCount())
	assert.Equal(t, 1, f.store.predictionCount())
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, row.ID, f.publisher.events[0].TransactionID)
	assert.Equal(t, "trace", f.publisher.events[0].TraceID)
}

func TestScoreOne_IdenticalInputCreatesDistinctRecords(t *testing.T) {
	f := newPipelineFixture(t, constantClassifier(0, 0.1))
	p := f.pipeline(t, DefaultChunkSize, 1)

	first, err := p.ScoreOne(context.Background(), "trace", transferRow())
	require.NoError(t, err)
	second, err := p.ScoreOne(context.Background(), "trace", transferRow())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.store.transactionCount())
	assert.Equal(t, 2, f.store.predictionCount())
	assert.Empty(t, f.publisher.events)
}

// shufflingScorer delays each chunk randomly so chunks finish out of order.
type shufflingScorer struct {
	inner ChunkScorer
	mu    sync.Mutex
	sizes map[int]int
}

func (s *shufflingScorer) ScoreChunk(ctx context.Context, traceID string, chunkIndex int, chunk []models.Transaction) ([]models.ScoredRow, error) {
	s.mu.Lock()
	s.sizes[chunkIndex] = len(chunk)
	delay := time.Duration(rand.Intn(20)) * time.Millisecond
	s.mu.Unlock()
	time.Sleep(delay)
	return s.inner.ScoreChunk(ctx, traceID, chunkIndex, chunk)
}

func TestProcess_ChunksAndPreservesOrderUnderConcurrency(t *testing.T) {
	f := newPipelineFixture(t, constantClassifier(1, 0.9))
	scorer := &shufflingScorer{inner: f.scorer, sizes: map[int]int{}}
	p := NewPipeline(PipelineConfig{
		Logger:              zaptest.NewLogger(t),
		Scorer:              scorer,
		ChunkSize:           1000,
		MaxConcurrentChunks: 3,
	})

	rows := numberedRows(2500)
	out, err := p.Process(context.Background(), "trace", rows)
	require.NoError(t, err)

	assert.Equal(t, map[int]int{0: 1000, 1: 1000, 2: 500}, scorer.sizes)
	require.Len(t, out, 2500)
	for i, row := range out {
		require.Equal(t, float64(i), row.Amount, "row %d out of order", i)
	}
	assert.Equal(t, 2500, f.store.transactionCount())
	assert.Equal(t, 2500, f.store.predictionCount())
	assert.Equal(t, 3, f.store.commits)
}

func TestProcess_EmptyInput(t *testing.T) {
	f := newPipelineFixture(t, constantClassifier(0, 0.1))
	out, err := f.pipeline(t, 1000, 2).Process(context.Background(), "trace", nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Zero(t, f.store.commits)
}

func TestProcess_FailedChunkRollsBackAndSiblingsComplete(t *testing.T) {
	clf := classifierFunc(func(features classifier.Features) (classifier.Result, error) {
		if features.Numeric[models.ColumnAmount] == 1500 {
			return classifier.Result{}, &classifier.MissingFeatureError{Feature: models.ColumnNewBalanceDest}
		}
		return classifier.Result{Prediction: 0, Probability: 0.2}, nil
	})
	f := newPipelineFixture(t, clf)

	_, err := f.pipeline(t, 1000, 3).Process(context.Background(), "trace", numberedRows(2500))
	require.Error(t, err)
	assert.True(t, pkg.HasCode(err, pkg.ErrMissingFeatureCode))
	assert.Contains(t, err.Error(), "Missing feature: newbalanceDest")

	assert.Equal(t, 1500, f.store.transactionCount(), "chunks 0 and 2 commit, chunk 1 is rolled back")
	assert.Equal(t, 1500, f.store.predictionCount())
	assert.Equal(t, 1, f.store.rollbacks)
	for _, txn := range f.store.transactions {
		assert.False(t, txn.Amount >= 1000 && txn.Amount < 2000, "row %v of the failed chunk was stored", txn.Amount)
	}
}

func TestProcess_InvalidatesAnalyticsAfterCommit(t *testing.T) {
	f := newPipelineFixture(t, constantClassifier(0, 0.1))
	c := &memCache{values: map[string]models.Analytics{analyticsCacheKey: {}}}
	svc := NewTransactionService(TransactionServiceConfig{Logger: zaptest.NewLogger(t), Cache: c})
	p := NewPipeline(PipelineConfig{Logger: zaptest.NewLogger(t), Scorer: f.scorer, Invalidator: svc})

	_, err := p.Process(context.Background(), "trace", numberedRows(3))
	require.NoError(t, err)
	assert.Equal(t, 1, c.deletes)
	assert.Empty(t, c.values)
}

func TestProcessUpload_MissingColumnStoresNothing(t *testing.T) {
	f := newPipelineFixture(t, constantClassifier(0, 0.1))
	p := f.pipeline(t, 1000, 2)

	csv := "step,type,amount,oldbalanceOrg,newbalanceOrig,oldbalanceDest\n1,TRANSFER,100,1000,900,0\n"
	_, err := p.ProcessUpload(context.Background(), "trace", Upload{
		Filename: "batch.csv", ContentType: "text/csv", Size: int64(len(csv)), Body: strings.NewReader(csv),
	})
	require.Error(t, err)
	assert.True(t, pkg.HasCode(err, pkg.ErrInvalidInputCode))
	assert.Contains(t, err.Error(), "newbalanceDest")
	assert.Zero(t, f.store.transactionCount())
	assert.Zero(t, f.store.commits+f.store.rollbacks)
}

func TestProcessUpload_ScoresValidFile(t *testing.T) {
	f := newPipelineFixture(t, constantClassifier(0, 0.46))
	p := f.pipeline(t, 2, 2)

	csv := "step,type,amount,nameOrig,oldbalanceOrg,newbalanceOrig,oldbalanceDest,newbalanceDest,isFraud\n" +
		"1,PAYMENT,9839.64,C1231006815,170136,160296.36,0,0,0\n" +
		"1,TRANSFER,181,C1305486145,181,0,0,0,1\n" +
		"2,CASH_OUT,181,C840083671,181,0,21182,0,1\n"
	out, err := p.ProcessUpload(context.Background(), "trace", Upload{
		Filename: "batch.csv", ContentType: "text/csv; charset=utf-8", Size: int64(len(csv)), Body: strings.NewReader(csv),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, pkg.TransactionTypePayment, out[0].Type)
	assert.Equal(t, pkg.TransactionTypeCashOut, out[2].Type)
	assert.Equal(t, 21182.0, out[2].OldBalanceDest)
	for _, row := range out {
		assert.True(t, row.ManualReview)
	}
	assert.Len(t, f.publisher.events, 3)
}

func TestChunkScorer_PublisherFailureDoesNotFailChunk(t *testing.T) {
	f := newPipelineFixture(t, constantClassifier(0, 0.5))
	f.publisher.err = assert.AnError

	rows, err := f.scorer.ScoreChunk(context.Background(), "trace", 0, numberedRows(2))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 2, f.store.transactionCount())
}

func TestChunkScorer_StorageFailureRollsBack(t *testing.T) {
	store := newMemStore()
	scorer := NewChunkScorer(ChunkScorerConfig{
		Logger:          zaptest.NewLogger(t),
		DB:              store,
		Classifier:      constantClassifier(0, 0.1),
		TransactionRepo: &memTransactionRepo{store: store, failWith: assert.AnError},
		PredictionRepo:  &memPredictionRepo{store: store},
	})

	_, err := scorer.ScoreChunk(context.Background(), "trace", 0, numberedRows(3))
	require.Error(t, err)
	assert.True(t, pkg.HasCode(err, pkg.ErrSQLUnknownCode))
	assert.Zero(t, store.transactionCount())
	assert.Equal(t, 1, store.rollbacks)
}

func TestChunkScorer_CommitFailureIsStorageError(t *testing.T) {
	f := newPipelineFixture(t, constantClassifier(0, 0.5))
	f.store.failCommit = assert.AnError

	_, err := f.scorer.ScoreChunk(context.Background(), "trace", 0, numberedRows(2))
	require.Error(t, err)
	assert.True(t, pkg.HasCode(err, pkg.ErrSQLUnknownCode))
	assert.Empty(t, f.publisher.events, "nothing is announced for an uncommitted chunk")
}

func TestChunkScorer_UnknownCategory(t *testing.T) {
	clf := classifierFunc(func(classifier.Features) (classifier.Result, error) {
		return classifier.Result{}, &classifier.UnknownCategoryError{Feature: "type", Value: "WIRE"}
	})
	f := newPipelineFixture(t, clf)

	_, err := f.scorer.ScoreChunk(context.Background(), "trace", 0, numberedRows(1))
	require.Error(t, err)
	assert.True(t, pkg.HasCode(err, pkg.ErrModelInputCode))
	assert.Zero(t, f.store.transactionCount())
}
