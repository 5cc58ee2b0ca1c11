package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/utils"
	"go.uber.org/zap"
)

// TraceID returns Gin middleware that reuses the caller's X-Trace-Id or mints one,
// stores it on the context for handlers and echoes it back on the response.
func TraceID(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.Request.Header.Get(pkg.HeaderTraceId)
		if utils.IsEmpty(traceID) {
			traceID = uuid.NewString()
		}
		c.Set(pkg.TraceId, traceID)
		c.Writer.Header().Set(pkg.HeaderTraceId, traceID)
		c.Next()

		if len(c.Errors) > 0 {
			logger.Warn("request_completed_with_errors",
				zap.String(pkg.TraceId, traceID),
				zap.String("path", c.FullPath()),
				zap.String("errors", c.Errors.String()))
		}
	}
}
