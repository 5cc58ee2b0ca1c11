package models

import (
	"encoding/json"
	"testing"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiresManualReview(t *testing.T) {
	tests := []struct {
		name        string
		prediction  int
		probability float64
		want        bool
	}{
		{"lower bound inclusive", 0, 0.45, true},
		{"upper bound inclusive", 0, 0.55, true},
		{"centre of band", 0, 0.5, true},
		{"just below band", 0, 0.449, false},
		{"just above band", 0, 0.551, false},
		{"confident legitimate", 0, 0.02, false},
		{"fraud label never flagged", 1, 0.5, false},
		{"fraud label inside band", 1, 0.52, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RequiresManualReview(tc.prediction, tc.probability))
		})
	}
}

func TestNewPrediction_DerivesManualReview(t *testing.T) {
	p := NewPrediction(42, classifier.Result{Prediction: 0, Probability: 0.5})
	assert.Equal(t, int64(42), p.TransactionID)
	assert.True(t, p.ManualReview)
	assert.False(t, p.Reviewed)
	assert.Nil(t, p.ReviewedPrediction)

	p = NewPrediction(43, classifier.Result{Prediction: 1, Probability: 0.9})
	assert.False(t, p.ManualReview)
}

func TestScoredRow_JSONFieldNames(t *testing.T) {
	txn := Transaction{
		ID: 7, Step: 1, Amount: 100, Type: pkg.TransactionTypeTransfer,
		OldBalanceOrg: 1000, NewBalanceOrig: 900, OldBalanceDest: 0, NewBalanceDest: 100,
	}
	row := NewScoredRow(txn, NewPrediction(txn.ID, classifier.Result{Prediction: 0, Probability: 0.5}))

	b, err := json.Marshal(row)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))

	for _, key := range []string{"id", "step", "amount", "type", "oldbalanceOrg", "newbalanceOrig",
		"oldbalanceDest", "newbalanceDest", "prediction", "probability", "manual_review"} {
		assert.Contains(t, out, key)
	}
	assert.Len(t, out, 11)
	assert.Equal(t, "TRANSFER", out["type"])
	assert.Equal(t, true, out["manual_review"])
}

func TestTransaction_Features(t *testing.T) {
	txn := Transaction{Step: 3, Amount: 12.5, Type: pkg.TransactionTypeCashOut, OldBalanceDest: 4}
	f := txn.Features()
	assert.Equal(t, 3.0, f.Numeric[ColumnStep])
	assert.Equal(t, 12.5, f.Numeric[ColumnAmount])
	assert.Equal(t, 4.0, f.Numeric[ColumnOldBalanceDest])
	assert.Len(t, f.Numeric, 6)
	assert.Equal(t, "CASH_OUT", f.Categorical[ColumnType])
}
