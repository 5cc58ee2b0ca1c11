package pkg

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestHandleSQLError(t *testing.T) {
	logger := zaptest.NewLogger(t)
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"no rows", pgx.ErrNoRows, ErrRecordNotFoundCode},
		{"unique", &pgconn.PgError{Code: "23505"}, ErrSQLDuplicateCode},
		{"foreign key", &pgconn.PgError{Code: "23503"}, ErrSQLConflictCode},
		{"check", &pgconn.PgError{Code: "23514"}, ErrSQLInvalidInput},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), ErrSQLDuplicateCode},
		{"other pg", &pgconn.PgError{Code: "40001"}, ErrSQLUnknownCode},
		{"not pg", errors.New("conn reset"), ErrSQLUnknownCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, HasCode(HandleSQLError("trace", logger, tt.err), tt.want))
		})
	}
}

func TestToErrorResponse(t *testing.T) {
	logger := zaptest.NewLogger(t)

	resp := ToErrorResponse(logger, "trace", NewAppError(ErrMissingFeatureCode, "Missing feature: amount", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Equal(t, "MODEL_MISSING_FEATURE", resp.Code)
	assert.Equal(t, "Missing feature: amount", resp.Message)

	resp = ToErrorResponse(logger, "trace", fmt.Errorf("chunk 2: %w", NewAppError(ErrInvalidInputCode, "bad", nil)))
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = ToErrorResponse(logger, "trace", errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, ErrServerCode.Message, resp.Message)
}
