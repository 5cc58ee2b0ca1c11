package views

import (
	"time"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
)

// PredictRequest is the body of POST /predict. Pointers keep zero values distinguishable from absent fields.
type PredictRequest struct {
	Step           *int     `json:"step" binding:"required,gte=0"`
	Amount         *float64 `json:"amount" binding:"required,gte=0"`
	Type           string   `json:"type" binding:"required,oneof=CASH_IN CASH_OUT DEBIT PAYMENT TRANSFER"`
	OldBalanceOrg  *float64 `json:"oldbalanceOrg" binding:"required"`
	NewBalanceOrig *float64 `json:"newbalanceOrig" binding:"required"`
	OldBalanceDest *float64 `json:"oldbalanceDest" binding:"required"`
	NewBalanceDest *float64 `json:"newbalanceDest" binding:"required"`
}

// ToTransaction converts a bound request. Call only after binding succeeded.
func (r PredictRequest) ToTransaction() models.Transaction {
	return models.Transaction{
		Step:           *r.Step,
		Amount:         *r.Amount,
		Type:           pkg.TransactionType(r.Type),
		OldBalanceOrg:  *r.OldBalanceOrg,
		NewBalanceOrig: *r.NewBalanceOrig,
		OldBalanceDest: *r.OldBalanceDest,
		NewBalanceDest: *r.NewBalanceDest,
	}
}

type BatchPredictionResponse struct {
	Message     string             `json:"message"`
	Predictions []models.ScoredRow `json:"predictions"`
}

// PageQuery binds GET /transactions query parameters.
type PageQuery struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=100" binding:"min=1,max=1000"`
}

// TransactionView is one listed transaction. Prediction fields are null for unscored transactions.
type TransactionView struct {
	ID                 int64               `json:"id"`
	Step               int                 `json:"step"`
	Amount             float64             `json:"amount"`
	Type               pkg.TransactionType `json:"type"`
	OldBalanceOrg      float64             `json:"oldbalanceOrg"`
	NewBalanceOrig     float64             `json:"newbalanceOrig"`
	OldBalanceDest     float64             `json:"oldbalanceDest"`
	NewBalanceDest     float64             `json:"newbalanceDest"`
	PredictionID       *int64              `json:"prediction_id"`
	Prediction         *int                `json:"prediction"`
	Probability        *float64            `json:"probability"`
	ManualReview       *bool               `json:"manual_review"`
	Reviewed           bool                `json:"reviewed"`
	ReviewedPrediction *int                `json:"reviewed_prediction"`
	CreatedAt          time.Time           `json:"created_at"`
}

// NewTransactionView flattens a listing row. manual_review is derived from the stored label
// and probability rather than read back.
func NewTransactionView(row models.TransactionWithPrediction) TransactionView {
	t := row.Transaction
	v := TransactionView{
		ID:             t.ID,
		Step:           t.Step,
		Amount:         t.Amount,
		Type:           t.Type,
		OldBalanceOrg:  t.OldBalanceOrg,
		NewBalanceOrig: t.NewBalanceOrig,
		OldBalanceDest: t.OldBalanceDest,
		NewBalanceDest: t.NewBalanceDest,
		CreatedAt:      t.CreatedAt,
	}
	if p := row.Prediction; p != nil {
		manual := models.RequiresManualReview(p.Prediction, p.Probability)
		v.PredictionID = &p.ID
		v.Prediction = &p.Prediction
		v.Probability = &p.Probability
		v.ManualReview = &manual
		v.Reviewed = p.Reviewed
		v.ReviewedPrediction = p.ReviewedPrediction
	}
	return v
}

type Pagination struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int64 `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// NewPagination computes page metadata for total items split into pages of pageSize.
func NewPagination(total int64, page, pageSize int) Pagination {
	offset := int64(page-1) * int64(pageSize)
	return Pagination{
		TotalItems:  total,
		TotalPages:  (total + int64(pageSize) - 1) / int64(pageSize),
		CurrentPage: page,
		PageSize:    pageSize,
		HasNext:     offset+int64(pageSize) < total,
		HasPrevious: page > 1,
	}
}

type TransactionPage struct {
	Data       []TransactionView `json:"data"`
	Pagination Pagination        `json:"pagination"`
}
