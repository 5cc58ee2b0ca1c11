package pkg

const (
	HeaderTraceId   string = "X-Trace-Id"
	HeaderRequestId string = "X-Request-Id"
)

const (
	TraceId       string = "trace_id"
	RequestId     string = "request_id"
	ChunkIndex    string = "chunk_index"
	TransactionId string = "transaction_id"
	PredictionId  string = "prediction_id"
)

// TransactionType is the categorical `type` column of a transaction.
type TransactionType string

const (
	TransactionTypeCashIn   TransactionType = "CASH_IN"
	TransactionTypeCashOut  TransactionType = "CASH_OUT"
	TransactionTypeDebit    TransactionType = "DEBIT"
	TransactionTypePayment  TransactionType = "PAYMENT"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// TransactionTypes lists every accepted transaction type.
var TransactionTypes = []TransactionType{
	TransactionTypeCashIn,
	TransactionTypeCashOut,
	TransactionTypeDebit,
	TransactionTypePayment,
	TransactionTypeTransfer,
}

// IsValid reports whether t is one of TransactionTypes.
func (t TransactionType) IsValid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}
