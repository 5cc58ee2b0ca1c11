package main

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratedFileIsAcceptedByUpload(t *testing.T) {
	txns := generateTransactions(rand.New(rand.NewSource(7)), 500, 0.2)
	var buf bytes.Buffer
	require.NoError(t, writeTransactionsCSV(&buf, txns))

	rows, err := services.ParseUpload(services.Upload{
		Filename:    "generated.csv",
		ContentType: "text/csv",
		Size:        int64(buf.Len()),
		Body:        &buf,
	}, services.UploadLimits{})
	require.NoError(t, err)
	require.Len(t, rows, 500)

	for i := range rows {
		assert.Equal(t, txns[i].Type, rows[i].Type)
		assert.Equal(t, txns[i].Amount, rows[i].Amount)
		assert.True(t, rows[i].Step >= 1 && rows[i].Step <= 743)
	}
}

func TestGenerateTransactions_FraudPattern(t *testing.T) {
	txns := generateTransactions(rand.New(rand.NewSource(1)), 2000, 1)
	for _, txn := range txns {
		assert.Contains(t, []pkg.TransactionType{pkg.TransactionTypeTransfer, pkg.TransactionTypeCashOut}, txn.Type)
		assert.Equal(t, txn.OldBalanceOrg, txn.Amount)
		assert.Zero(t, txn.NewBalanceOrig)
	}

	none := generateTransactions(rand.New(rand.NewSource(1)), 2000, 0)
	for _, txn := range none {
		assert.GreaterOrEqual(t, txn.Amount, 0.0)
	}
}

func TestGenerateTransactions_Deterministic(t *testing.T) {
	a := generateTransactions(rand.New(rand.NewSource(42)), 100, 0.1)
	b := generateTransactions(rand.New(rand.NewSource(42)), 100, 0.1)
	assert.Equal(t, a, b)
}
