package ratelimit

import (
	"fmt"

	"github.com/gin-gonic/gin"

	apperrors "leadscore/internal/errors"
	"leadscore/internal/monitoring"
)

// CheckFunc selects which limit applies to a request.
type CheckFunc func(rl *RateLimiter, c *gin.Context) (*Result, error)

// PredictCheck applies the single-lead prediction limit.
func PredictCheck(rl *RateLimiter, c *gin.Context) (*Result, error) {
	return rl.AllowPredict(c.Request.Context(), c.ClientIP())
}

// BatchCheck applies the batch prediction limit.
func BatchCheck(rl *RateLimiter, c *gin.Context) (*Result, error) {
	return rl.AllowBatch(c.Request.Context(), c.ClientIP())
}

// Middleware enforces a per-IP limit and sets standard rate limit headers.
// Limiter errors fail open so scoring stays available.
func Middleware(rl *RateLimiter, metrics *monitoring.Metrics, check CheckFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := check(rl, c)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))

		if !result.Allowed {
			if metrics != nil {
				metrics.RecordRateLimited()
			}
			retryAfter := fmt.Sprintf("%.0f", result.RetryAfter.Seconds())
			c.Header("Retry-After", retryAfter)

			appErr := apperrors.NewRateLimitError(retryAfter)
			apperrors.LogError(c, appErr)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		c.Next()
	}
}
