package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Middleware records request metrics and logs each request.
func Middleware(logger *Logger, metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(
			ContextWithRequestID(c.Request.Context(), requestID),
		)

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		metrics.RecordRequest(duration, status >= 500)
		logger.RequestLogger(c.Request.Method, c.Request.URL.Path, c.ClientIP(), status, duration)

		if status >= 500 {
			var err error
			if len(c.Errors) > 0 {
				err = c.Errors.Last().Err
			}
			logger.APIErrorLogger(c.Request.Method, c.Request.URL.Path, status, err)
		}
	}
}
