package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/utils"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/services"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/views"
	"go.uber.org/zap"
)

// multipartOverhead is the slack allowed on top of the file limit for boundaries and part headers.
const multipartOverhead = 1 << 20

// BatchLimiter gates batch uploads. *pkg.DistributedLimiter satisfies it.
type BatchLimiter interface {
	Allow(ctx context.Context) bool
}

type PredictionHandler struct {
	logger         *zap.Logger
	pipeline       services.Pipeline
	reviews        services.ReviewService
	limiter        BatchLimiter // nil: unlimited
	maxUploadBytes int64
}

func NewPredictionHandler(logger *zap.Logger, pipeline services.Pipeline, reviews services.ReviewService, limiter BatchLimiter, maxUploadBytes int64) *PredictionHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = services.DefaultMaxUploadBytes
	}
	return &PredictionHandler{
		logger:         logger,
		pipeline:       pipeline,
		reviews:        reviews,
		limiter:        limiter,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers scoring and review routes.
func (h *PredictionHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/predict", h.Predict)
	r.POST("/predict_batch", h.PredictBatch)
	r.PUT("/review/:prediction_id", h.Review)
}

// Predict scores a single transaction.
func (h *PredictionHandler) Predict(c *gin.Context) {
	traceID, ok := traceIDOrAbort(c, h.logger)
	if !ok {
		return
	}

	var req views.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "Invalid request body", err))
		return
	}

	row, err := h.pipeline.ScoreOne(c.Request.Context(), traceID, req.ToTransaction())
	if err != nil {
		writeError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// PredictBatch scores every row of an uploaded CSV file.
func (h *PredictionHandler) PredictBatch(c *gin.Context) {
	traceID, ok := traceIDOrAbort(c, h.logger)
	if !ok {
		return
	}
	if h.limiter != nil && !h.limiter.Allow(c.Request.Context()) {
		writeError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrRateLimitedCode, "Too many batch uploads, retry later", pkg.ErrRateLimitExceeded))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, h.logger, traceID, services.NewFileSizeError(h.maxUploadBytes))
			return
		}
		writeError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "No file uploaded", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrServerCode, "failed to read uploaded file", err))
		return
	}
	defer f.Close()

	rows, err := h.pipeline.ProcessUpload(c.Request.Context(), traceID, services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		writeError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, views.BatchPredictionResponse{
		Message:     "File processed successfully",
		Predictions: rows,
	})
}

// Review records a human decision on a stored prediction.
func (h *PredictionHandler) Review(c *gin.Context) {
	traceID, ok := traceIDOrAbort(c, h.logger)
	if !ok {
		return
	}

	var uri views.ReviewURI
	if err := c.ShouldBindUri(&uri); err != nil {
		writeError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "Invalid prediction id", err))
		return
	}
	var query views.ReviewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		writeError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "reviewed_prediction must be 0 or 1", err))
		return
	}

	p, err := h.reviews.Review(c.Request.Context(), traceID, uri.PredictionID, *query.ReviewedPrediction)
	if err != nil {
		writeError(c, h.logger, traceID, err)
		return
	}
	c.JSON(http.StatusOK, views.ReviewResponse{
		Message:    "Review status updated",
		Prediction: views.NewPredictionView(p),
	})
}

func traceIDOrAbort(c *gin.Context, logger *zap.Logger) (string, bool) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		logger.Error("trace_id_missing", zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, pkg.ErrorResponse{
			Code:    pkg.ErrServerCode.Code,
			Message: err.Error(),
		})
		return "", false
	}
	return traceID, true
}

func writeError(c *gin.Context, logger *zap.Logger, traceID string, err error) {
	_ = c.Error(err)
	resp := pkg.ToErrorResponse(logger, traceID, err)
	c.JSON(resp.Status, resp)
}
