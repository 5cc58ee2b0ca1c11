package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/database"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
)

// TransactionRepository defines the interface for transaction storage.
type TransactionRepository interface {
	// CreateBatch inserts txns in one round trip and returns the generated ids in input order.
	CreateBatch(ctx context.Context, tx pgx.Tx, txns []models.Transaction) ([]int64, error)
	// Count returns the number of stored transactions.
	Count(ctx context.Context, q database.Querier) (int64, error)
	// FindPage returns transactions ordered by id, joined with their prediction when one exists.
	FindPage(ctx context.Context, q database.Querier, limit, offset int) ([]models.TransactionWithPrediction, error)
	// Analytics aggregates every transaction that has a prediction.
	Analytics(ctx context.Context, q database.Querier) (models.Analytics, error)
}

type TransactionRepositoryImpl struct {
}

func NewTransactionRepository() TransactionRepository {
	return &TransactionRepositoryImpl{}
}

const insertTransactionSQL = `
	INSERT INTO transactions (step, amount, type, old_balance_org, new_balance_orig, old_balance_dest, new_balance_dest)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

func (r TransactionRepositoryImpl) CreateBatch(ctx context.Context, tx pgx.Tx, txns []models.Transaction) ([]int64, error) {
	if len(txns) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for _, t := range txns {
		batch.Queue(insertTransactionSQL,
			t.Step,
			t.Amount,
			string(t.Type),
			t.OldBalanceOrg,
			t.NewBalanceOrig,
			t.OldBalanceDest,
			t.NewBalanceDest,
		)
	}

	results := tx.SendBatch(ctx, batch)
	ids := make([]int64, len(txns))
	for i := range txns {
		if err := results.QueryRow().Scan(&ids[i]); err != nil {
			_ = results.Close()
			return nil, fmt.Errorf("insert transaction %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r TransactionRepositoryImpl) Count(ctx context.Context, q database.Querier) (int64, error) {
	var n int64
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

func (r TransactionRepositoryImpl) FindPage(ctx context.Context, q database.Querier, limit, offset int) ([]models.TransactionWithPrediction, error) {
	rows, err := q.Query(ctx, `
		SELECT t.id, t.step, t.amount, t.type, t.old_balance_org, t.new_balance_orig,
		       t.old_balance_dest, t.new_balance_dest, t.created_at,
		       p.id, p.prediction, p.probability, p.manual_review, p.reviewed, p.reviewed_prediction, p.reviewed_at
		FROM transactions t
		LEFT JOIN predictions p ON p.transaction_id = t.id
		ORDER BY t.id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.TransactionWithPrediction, 0, limit)
	for rows.Next() {
		var (
			t            models.Transaction
			txnType      string
			predID       *int64
			label        *int
			probability  *float64
			manualReview *bool
			reviewed     *bool
			p            models.Prediction
		)
		if err = rows.Scan(
			&t.ID, &t.Step, &t.Amount, &txnType, &t.OldBalanceOrg, &t.NewBalanceOrig,
			&t.OldBalanceDest, &t.NewBalanceDest, &t.CreatedAt,
			&predID, &label, &probability, &manualReview, &reviewed, &p.ReviewedPrediction, &p.ReviewedAt,
		); err != nil {
			return nil, err
		}
		t.Type = pkg.TransactionType(txnType)
		row := models.TransactionWithPrediction{Transaction: t}
		if predID != nil {
			p.ID = *predID
			p.TransactionID = t.ID
			p.Prediction = *label
			p.Probability = *probability
			p.ManualReview = *manualReview
			p.Reviewed = *reviewed
			row.Prediction = &p
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r TransactionRepositoryImpl) Analytics(ctx context.Context, q database.Querier) (models.Analytics, error) {
	var a models.Analytics
	var err error
	if a.StepDistribution, err = r.stepDistribution(ctx, q); err != nil {
		return a, fmt.Errorf("step distribution: %w", err)
	}
	if a.BalanceDistribution, err = r.balanceDistribution(ctx, q); err != nil {
		return a, fmt.Errorf("balance distribution: %w", err)
	}
	if a.AmountDistribution, err = r.amountDistribution(ctx, q); err != nil {
		return a, fmt.Errorf("amount distribution: %w", err)
	}
	err = q.QueryRow(ctx, `
		SELECT COALESCE(AVG(t.amount), 0), COALESCE(MIN(t.amount), 0), COALESCE(MAX(t.amount), 0), COUNT(t.amount)
		FROM transactions t
		JOIN predictions p ON p.transaction_id = t.id`).Scan(
		&a.SummaryStats.AvgAmount, &a.SummaryStats.MinAmount, &a.SummaryStats.MaxAmount, &a.SummaryStats.TotalTransactions)
	if err != nil {
		return a, fmt.Errorf("summary stats: %w", err)
	}
	return a, nil
}

func (r TransactionRepositoryImpl) stepDistribution(ctx context.Context, q database.Querier) ([]models.StepCount, error) {
	rows, err := q.Query(ctx, `
		SELECT t.step,
		       COUNT(*) FILTER (WHERE p.prediction = 0),
		       COUNT(*) FILTER (WHERE p.prediction = 1)
		FROM transactions t
		JOIN predictions p ON p.transaction_id = t.id
		GROUP BY t.step
		ORDER BY t.step`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.StepCount, error) {
		var s models.StepCount
		err := row.Scan(&s.Step, &s.Legitimate, &s.Fraudulent)
		return s, err
	})
}

// Buckets use Postgres ROUND(x, -n) on NUMERIC, i.e. half away from zero.
func (r TransactionRepositoryImpl) balanceDistribution(ctx context.Context, q database.Querier) ([]models.BalanceBucket, error) {
	rows, err := q.Query(ctx, `
		SELECT ROUND(t.old_balance_org::numeric, -5)::float8 AS bucket,
		       COUNT(*) FILTER (WHERE p.prediction = 0),
		       COUNT(*) FILTER (WHERE p.prediction = 1),
		       AVG(t.old_balance_org)
		FROM transactions t
		JOIN predictions p ON p.transaction_id = t.id
		GROUP BY bucket
		ORDER BY bucket`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.BalanceBucket, error) {
		var b models.BalanceBucket
		err := row.Scan(&b.Lower, &b.Legitimate, &b.Fraudulent, &b.AvgBalance)
		return b, err
	})
}

func (r TransactionRepositoryImpl) amountDistribution(ctx context.Context, q database.Querier) ([]models.AmountBucket, error) {
	rows, err := q.Query(ctx, `
		SELECT ROUND(t.amount::numeric, -2)::float8 AS bucket, COUNT(*)
		FROM transactions t
		JOIN predictions p ON p.transaction_id = t.id
		GROUP BY bucket
		ORDER BY bucket`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AmountBucket, error) {
		var b models.AmountBucket
		err := row.Scan(&b.Lower, &b.Count)
		return b, err
	})
}
