package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/services"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/views"
	"go.uber.org/zap"
)

type TransactionHandler struct {
	logger  *zap.Logger
	service services.TransactionService
}

func NewTransactionHandler(logger *zap.Logger, svc services.TransactionService) *TransactionHandler {
	return &TransactionHandler{logger: logger, service: svc}
}

func (h *TransactionHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/transactions", h.ListTransactions)
	r.GET("/transactions/analytics", h.GetAnalytics)
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	traceID, ok := traceIDOrAbort(c, h.logger)
	if !ok {
		return
	}

	var q views.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "page must be >= 1 and page_size between 1 and 1000", err))
		return
	}

	page, err := h.service.List(c.Request.Context(), traceID, q.Page, q.PageSize)
	if err != nil {
		writeError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *TransactionHandler) GetAnalytics(c *gin.Context) {
	traceID, ok := traceIDOrAbort(c, h.logger)
	if !ok {
		return
	}

	a, err := h.service.Analytics(c.Request.Context(), traceID)
	if err != nil {
		writeError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
