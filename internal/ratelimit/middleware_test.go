package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"leadscore/internal/monitoring"
)

func newLimitedRouter(t *testing.T, limit int) (*gin.Engine, *monitoring.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	config := Config{
		PredictLimitPerMin: limit,
		BatchLimitPerMin:   limit,
		BurstMultiplier:    1,
	}
	metrics := monitoring.NewMetrics()
	rl := NewRateLimiter(&RedisClient{enabled: false}, config, metrics)
	t.Cleanup(rl.Stop)

	r := gin.New()
	r.POST("/leads/:id/predict", Middleware(rl, metrics, PredictCheck), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, metrics
}

func TestMiddlewareAllowsWithinLimit(t *testing.T) {
	r, _ := newLimitedRouter(t, 100)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/leads/l1/predict", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	r, metrics := newLimitedRouter(t, 1)

	// burst floor is 5 tokens
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/leads/l1/predict", nil))
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/leads/l1/predict", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"category":"rate_limit"`)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats["rate_limited_total"])
}
