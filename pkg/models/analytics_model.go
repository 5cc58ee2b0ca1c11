package models

// StepCount is the number of legitimate and fraudulent predictions at one simulation step.
type StepCount struct {
	Step       int   `json:"step"`
	Legitimate int64 `json:"legitimate"`
	Fraudulent int64 `json:"fraudulent"`
}

// BalanceBucket groups scored transactions by origin balance rounded to the nearest 100 000.
type BalanceBucket struct {
	Lower        float64 `json:"-"`
	BalanceRange string  `json:"balanceRange"`
	Legitimate   int64   `json:"legitimate"`
	Fraudulent   int64   `json:"fraudulent"`
	AvgBalance   float64 `json:"avgBalance"`
}

// AmountBucket groups scored transactions by amount rounded to the nearest 100.
type AmountBucket struct {
	Lower       float64 `json:"-"`
	AmountRange string  `json:"amountRange"`
	Count       int64   `json:"count"`
}

type SummaryStats struct {
	AvgAmount         float64 `json:"avgAmount"`
	MinAmount         float64 `json:"minAmount"`
	MaxAmount         float64 `json:"maxAmount"`
	TotalTransactions int64   `json:"totalTransactions"`
}

// Analytics is the aggregate view over every scored transaction.
type Analytics struct {
	StepDistribution     []StepCount     `json:"stepDistribution"`
	LegitimateCount      int64           `json:"legitimateCount"`
	FraudulentCount      int64           `json:"fraudulentCount"`
	FraudulentPercentage float64         `json:"fraudulentPercentage"`
	BalanceDistribution  []BalanceBucket `json:"balanceDistribution"`
	AmountDistribution   []AmountBucket  `json:"amountDistribution"`
	SummaryStats         SummaryStats    `json:"summaryStats"`
}
