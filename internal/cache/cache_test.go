package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"leadscore/internal/monitoring"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("k1", []byte(`{"probability":0.5}`))

	data, found := c.Get("k1")
	assert.True(t, found)
	assert.Equal(t, []byte(`{"probability":0.5}`), data)

	_, found = c.Get("missing")
	assert.False(t, found)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	defer c.Stop()

	c.Set("k1", []byte("v"))
	time.Sleep(25 * time.Millisecond)

	_, found := c.Get("k1")
	assert.False(t, found)
}

func TestCacheDeleteAndClear(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("k1", []byte("a"))
	c.Set("k2", []byte("b"))
	assert.Equal(t, 2, c.Size())

	c.Delete("k1")
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestInvalidatePath(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.SetPath("k1", "/leads/l1/predictions", []byte("a"))
	c.SetPath("k2", "/leads/l1/predictions", []byte("b"))
	c.SetPath("k3", "/models", []byte("c"))

	dropped := c.InvalidatePath("/leads/l1/predictions")
	assert.Equal(t, 2, dropped)

	_, found := c.Get("k1")
	assert.False(t, found)
	_, found = c.Get("k2")
	assert.False(t, found)

	// Other paths are untouched
	_, found = c.Get("k3")
	assert.True(t, found)
}

func TestHistoryReadReflectsAppend(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)
	defer c.Stop()

	predictions := []string{}

	r := gin.New()
	r.Use(c.Middleware(monitoring.NewMetrics()))
	r.GET("/leads/:id/predictions", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"predictions": predictions})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/leads/l1/predictions", nil))
	assert.Contains(t, w.Body.String(), `"predictions":[]`)

	// A new prediction lands; the write path drops the cached history
	predictions = append(predictions, "p1")
	c.InvalidatePath("/leads/l1/predictions")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/leads/l1/predictions", nil))
	assert.Contains(t, w.Body.String(), "p1",
		"history read after an append must reflect the new prediction")
}

func TestCacheable(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{"GET", "/models", true},
		{"GET", "/models/active", true},
		{"GET", "/leads/abc/predictions", true},
		{"POST", "/models", false},
		{"POST", "/leads/abc/predict", false},
		{"GET", "/health", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cacheable(tt.method, tt.path), "%s %s", tt.method, tt.path)
	}
}

func TestCacheStats(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("k1", []byte("a"))

	stats := c.Stats()
	assert.Equal(t, 1, stats["total_items"])
	assert.Equal(t, 1, stats["active_items"])
	assert.Equal(t, 60.0, stats["ttl_seconds"])
}

func TestStopEndsCleanupGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewCache(time.Minute)
	c.Set("k1", []byte("a"))
	c.Stop()
}
