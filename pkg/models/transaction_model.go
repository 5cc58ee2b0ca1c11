package models

import (
	"time"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/classifier"
)

// Column names shared by the CSV upload, the JSON API and the model artifact.
const (
	ColumnStep           = "step"
	ColumnAmount         = "amount"
	ColumnType           = "type"
	ColumnOldBalanceOrg  = "oldbalanceOrg"
	ColumnNewBalanceOrig = "newbalanceOrig"
	ColumnOldBalanceDest = "oldbalanceDest"
	ColumnNewBalanceDest = "newbalanceDest"
)

// RequiredColumns is the set of columns every input record must carry, in CSV header order.
var RequiredColumns = []string{
	ColumnStep,
	ColumnType,
	ColumnAmount,
	ColumnOldBalanceOrg,
	ColumnNewBalanceOrig,
	ColumnOldBalanceDest,
	ColumnNewBalanceDest,
}

// Transaction maps to table `transactions`. ID is zero until the row is inserted.
type Transaction struct {
	ID             int64
	Step           int
	Amount         float64
	Type           pkg.TransactionType
	OldBalanceOrg  float64
	NewBalanceOrig float64
	OldBalanceDest float64
	NewBalanceDest float64
	CreatedAt      time.Time
}

// Features converts the record into classifier input.
func (t Transaction) Features() classifier.Features {
	return classifier.Features{
		Numeric: map[string]float64{
			ColumnStep:           float64(t.Step),
			ColumnAmount:         t.Amount,
			ColumnOldBalanceOrg:  t.OldBalanceOrg,
			ColumnNewBalanceOrig: t.NewBalanceOrig,
			ColumnOldBalanceDest: t.OldBalanceDest,
			ColumnNewBalanceDest: t.NewBalanceDest,
		},
		Categorical: map[string]string{
			ColumnType: string(t.Type),
		},
	}
}
