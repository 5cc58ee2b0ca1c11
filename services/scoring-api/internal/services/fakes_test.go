package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/cache"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/classifier"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/database"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/views"
)

// memStore is an in-memory stand-in for Postgres. Writes made inside WithTransaction are
// staged on the context and only become visible when fn returns nil.
type memStore struct {
	mu           sync.Mutex
	nextTxnID    int64
	nextPredID   int64
	transactions map[int64]models.Transaction
	predictions  map[int64]models.Prediction
	commits      int
	rollbacks    int
	failCommit   error
}

func newMemStore() *memStore {
	return &memStore{
		transactions: map[int64]models.Transaction{},
		predictions:  map[int64]models.Prediction{},
	}
}

type stageKey struct{}

type stage struct {
	txns  []models.Transaction
	preds []models.Prediction
}

func stageFrom(ctx context.Context) *stage {
	s, _ := ctx.Value(stageKey{}).(*stage)
	return s
}

func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	st := &stage{}
	err := fn(context.WithValue(ctx, stageKey{}, st), nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil && m.failCommit != nil {
		err = m.failCommit
	}
	if err != nil {
		m.rollbacks++
		return err
	}
	for _, t := range st.txns {
		m.transactions[t.ID] = t
	}
	for _, p := range st.preds {
		m.nextPredID++
		p.ID = m.nextPredID
		m.predictions[p.ID] = p
	}
	m.commits++
	return nil
}

func (m *memStore) transactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

func (m *memStore) predictionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.predictions)
}

var _ database.TxRunner = (*memStore)(nil)

// memTransactionRepo implements repositories.TransactionRepository over memStore.
type memTransactionRepo struct {
	store     *memStore
	failWith  error
	page      []models.TransactionWithPrediction
	count     int64
	analytics models.Analytics
	analyzed  int
}

func (r *memTransactionRepo) CreateBatch(ctx context.Context, _ pgx.Tx, txns []models.Transaction) ([]int64, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	st := stageFrom(ctx)
	ids := make([]int64, len(txns))
	r.store.mu.Lock()
	for i, t := range txns {
		r.store.nextTxnID++
		t.ID = r.store.nextTxnID
		ids[i] = t.ID
		st.txns = append(st.txns, t)
	}
	r.store.mu.Unlock()
	return ids, nil
}

func (r *memTransactionRepo) Count(context.Context, database.Querier) (int64, error) {
	return r.count, r.failWith
}

func (r *memTransactionRepo) FindPage(_ context.Context, _ database.Querier, limit, offset int) ([]models.TransactionWithPrediction, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	if offset >= len(r.page) {
		return nil, nil
	}
	return r.page[offset:min(offset+limit, len(r.page))], nil
}

func (r *memTransactionRepo) Analytics(context.Context, database.Querier) (models.Analytics, error) {
	r.analyzed++
	return r.analytics, r.failWith
}

// memPredictionRepo implements repositories.PredictionRepository over memStore.
type memPredictionRepo struct {
	store *memStore
}

func (r *memPredictionRepo) CreateBatch(ctx context.Context, _ pgx.Tx, preds []models.Prediction) error {
	st := stageFrom(ctx)
	staged := make(map[int64]bool, len(st.txns))
	for _, t := range st.txns {
		staged[t.ID] = true
	}
	for _, p := range preds {
		if !staged[p.TransactionID] {
			return errors.New("foreign key violation")
		}
	}
	st.preds = append(st.preds, preds...)
	return nil
}

func (r *memPredictionRepo) Review(_ context.Context, _ pgx.Tx, predictionID int64, reviewedPrediction int) (models.Prediction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.predictions[predictionID]
	if !ok {
		return models.Prediction{}, pgx.ErrNoRows
	}
	now := time.Now().UTC()
	p.Reviewed = true
	p.ReviewedPrediction = &reviewedPrediction
	p.ReviewedAt = &now
	r.store.predictions[predictionID] = p
	return p, nil
}

// classifierFunc adapts a function to classifier.Classifier.
type classifierFunc func(classifier.Features) (classifier.Result, error)

func (f classifierFunc) PredictProba(features classifier.Features) (classifier.Result, error) {
	return f(features)
}

func constantClassifier(prediction int, probability float64) classifier.Classifier {
	return classifierFunc(func(classifier.Features) (classifier.Result, error) {
		return classifier.Result{Prediction: prediction, Probability: probability}, nil
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []views.ReviewEvent
	err    error
}

func (p *recordingPublisher) PublishReviews(_ context.Context, events []views.ReviewEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) Close() {}

// memCache implements AnalyticsCache with the same miss semantics as cache.JSONCache.
type memCache struct {
	values  map[string]models.Analytics
	deletes int
}

func (c *memCache) Get(_ context.Context, key string, out any) error {
	v, ok := c.values[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	*out.(*models.Analytics) = v
	return nil
}

func (c *memCache) Set(_ context.Context, key string, value any) error {
	if c.values == nil {
		c.values = map[string]models.Analytics{}
	}
	c.values[key] = value.(models.Analytics)
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.deletes++
	delete(c.values, key)
	return nil
}
