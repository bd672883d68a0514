package cache

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"leadscore/internal/monitoring"
)

// CacheItem represents a cached item with expiration. Path records the
// request path the item was cached for, so writes can invalidate it.
type CacheItem struct {
	Data      []byte    `json:"data"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the cache item has expired
func (c *CacheItem) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Cache provides thread-safe caching with TTL
type Cache struct {
	mu    sync.RWMutex
	items map[string]*CacheItem
	ttl   time.Duration
	stop  chan struct{}
}

// NewCache creates a new cache with the specified TTL
func NewCache(ttl time.Duration) *Cache {
	cache := &Cache{
		items: make(map[string]*CacheItem),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}

	// Start cleanup goroutine
	go cache.cleanup()

	return cache
}

// Stop ends the background cleanup goroutine. Call once on shutdown.
func (c *Cache) Stop() {
	close(c.stop)
}

// cleanup removes expired items periodically
func (c *Cache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			for key, item := range c.items {
				if item.IsExpired() {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// generateKey creates a consistent key from the input
func (c *Cache) generateKey(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// Get retrieves an item from the cache
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || item.IsExpired() {
		if exists && item.IsExpired() {
			// Clean up expired item
			go func() {
				c.mu.Lock()
				delete(c.items, key)
				c.mu.Unlock()
			}()
		}
		return nil, false
	}

	return item.Data, true
}

// Set stores an item in the cache
func (c *Cache) Set(key string, data []byte) {
	c.SetPath(key, "", data)
}

// SetPath stores an item tagged with the request path it answers, so a
// later write to that path can invalidate it.
func (c *Cache) SetPath(key, path string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &CacheItem{
		Data:      data,
		Path:      path,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// InvalidatePath removes every entry cached for the given request path.
// Returns the number of entries dropped.
func (c *Cache) InvalidatePath(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, item := range c.items {
		if item.Path == path {
			delete(c.items, key)
			n++
		}
	}
	return n
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*CacheItem)
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	totalItems := len(c.items)
	expiredItems := 0

	for _, item := range c.items {
		if item.IsExpired() {
			expiredItems++
		}
	}

	return map[string]interface{}{
		"total_items":   totalItems,
		"expired_items": expiredItems,
		"active_items":  totalItems - expiredItems,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

// cacheable reports whether a request hits one of the model read paths
// that are safe to serve from cache.
func cacheable(method, path string) bool {
	if method != http.MethodGet {
		return false
	}
	return path == "/models" || path == "/models/active" ||
		strings.HasSuffix(path, "/predictions")
}

// Middleware creates a Gin middleware for caching model and prediction
// history reads
func (c *Cache) Middleware(metrics *monitoring.Metrics) func(*gin.Context) {
	return func(ctx *gin.Context) {
		if !cacheable(ctx.Request.Method, ctx.Request.URL.Path) {
			ctx.Next()
			return
		}

		// Generate cache key from path and query
		cacheKey := c.generateKey(ctx.Request.URL.Path + "?" + ctx.Request.URL.RawQuery)

		// Check cache
		if cachedData, found := c.Get(cacheKey); found {
			slog.Info("Cache hit", "key", cacheKey[:8]+"...")
			metrics.RecordCacheHit()
			ctx.Data(http.StatusOK, "application/json", cachedData)
			ctx.Abort()
			return
		}

		// Cache miss - capture response
		slog.Info("Cache miss", "key", cacheKey[:8]+"...")
		metrics.RecordCacheMiss()

		// Create a response writer wrapper to capture the response
		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}

		ctx.Writer = wrapper
		ctx.Next()

		// Cache the response if successful
		if ctx.Writer.Status() == http.StatusOK {
			c.SetPath(cacheKey, ctx.Request.URL.Path, wrapper.body.Bytes())
			slog.Info("Response cached", "key", cacheKey[:8]+"...")
		}
	}
}

// responseWriter wraps gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
