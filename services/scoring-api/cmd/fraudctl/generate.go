package main

import (
	"encoding/csv"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// generateCmd writes a synthetic transaction file shaped like the scoring input, for load
// testing POST /predict_batch. Nothing is stored.
func generateCmd(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic transaction CSV for load testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, _ := cmd.Flags().GetInt("rows")
			fraudRate, _ := cmd.Flags().GetFloat64("fraud-rate")
			seed, _ := cmd.Flags().GetInt64("seed")
			out, _ := cmd.Flags().GetString("out")

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			txns := generateTransactions(rand.New(rand.NewSource(seed)), rows, fraudRate)
			if err := writeTransactionsCSV(w, txns); err != nil {
				return err
			}
			logger.Info("transactions_generated", zap.Int("rows", len(txns)), zap.Float64("fraud_rate", fraudRate))
			return nil
		},
	}

	cmd.Flags().IntP("rows", "n", 1000, "Number of rows")
	cmd.Flags().Float64("fraud-rate", 0.01, "Share of rows following the account-draining pattern")
	cmd.Flags().Int64("seed", 1, "Random seed")
	cmd.Flags().StringP("out", "o", "", "Write to this file instead of stdout")

	return cmd
}

var legitimateTypes = []pkg.TransactionType{
	pkg.TransactionTypeCashIn,
	pkg.TransactionTypeCashOut,
	pkg.TransactionTypeDebit,
	pkg.TransactionTypePayment,
	pkg.TransactionTypeTransfer,
}

// generateTransactions draws n rows. Fraudulent rows empty the origin account through a
// TRANSFER or CASH_OUT, the pattern the bundled model keys on.
func generateTransactions(r *rand.Rand, n int, fraudRate float64) []models.Transaction {
	txns := make([]models.Transaction, n)
	for i := range txns {
		step := 1 + i*743/max(n, 1)
		oldOrg := round2(r.Float64() * 500000)
		oldDest := round2(r.Float64() * 1000000)

		if r.Float64() < fraudRate {
			t := pkg.TransactionTypeTransfer
			if r.Intn(2) == 1 {
				t = pkg.TransactionTypeCashOut
			}
			txns[i] = models.Transaction{
				Step: step, Type: t, Amount: oldOrg,
				OldBalanceOrg: oldOrg, NewBalanceOrig: 0,
				OldBalanceDest: oldDest, NewBalanceDest: oldDest,
			}
			continue
		}

		t := legitimateTypes[r.Intn(len(legitimateTypes))]
		amount := round2(r.Float64() * math.Min(oldOrg, 20000))
		newOrg, newDest := oldOrg-amount, oldDest+amount
		if t == pkg.TransactionTypeCashIn {
			newOrg, newDest = oldOrg+amount, math.Max(oldDest-amount, 0)
		}
		txns[i] = models.Transaction{
			Step: step, Type: t, Amount: amount,
			OldBalanceOrg: oldOrg, NewBalanceOrig: round2(newOrg),
			OldBalanceDest: oldDest, NewBalanceDest: round2(newDest),
		}
	}
	return txns
}

func writeTransactionsCSV(w io.Writer, txns []models.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.RequiredColumns); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, t := range txns {
		record := []string{
			strconv.Itoa(t.Step),
			string(t.Type),
			f(t.Amount),
			f(t.OldBalanceOrg),
			f(t.NewBalanceOrig),
			f(t.OldBalanceDest),
			f(t.NewBalanceDest),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
