package middleware

import (
	"tax_analysis/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware counts responses by status code.
func MetricsMiddleware(rec metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		rec.RecordHTTPStatus(c.Writer.Status())
	}
}
