package monitoring

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 10000

// Metrics collects service-level counters and response time samples.
type Metrics struct {
	mu sync.RWMutex

	requestsTotal  int64
	errorsTotal    int64
	cacheHits      int64
	cacheMisses    int64
	rateLimited    int64
	predictions    int64
	batchRequests  int64
	batchLeads     int64
	trainingJobs   int64
	trainingFailed int64

	responseTimes []time.Duration
	startedAt     time.Time
}

// NewMetrics creates an empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		responseTimes: make([]time.Duration, 0, 1024),
		startedAt:     time.Now(),
	}
}

// RecordRequest records one handled HTTP request.
func (m *Metrics) RecordRequest(duration time.Duration, isError bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestsTotal++
	if isError {
		m.errorsTotal++
	}

	m.responseTimes = append(m.responseTimes, duration)
	if len(m.responseTimes) > maxSamples {
		// drop the oldest half to bound memory
		copy(m.responseTimes, m.responseTimes[len(m.responseTimes)/2:])
		m.responseTimes = m.responseTimes[:len(m.responseTimes)-len(m.responseTimes)/2]
	}
}

// RecordCacheHit increments the cache hit counter.
func (m *Metrics) RecordCacheHit() {
	m.mu.Lock()
	m.cacheHits++
	m.mu.Unlock()
}

// RecordCacheMiss increments the cache miss counter.
func (m *Metrics) RecordCacheMiss() {
	m.mu.Lock()
	m.cacheMisses++
	m.mu.Unlock()
}

// RecordRateLimited increments the rejected-request counter.
func (m *Metrics) RecordRateLimited() {
	m.mu.Lock()
	m.rateLimited++
	m.mu.Unlock()
}

// RecordPrediction counts a single-lead scoring run.
func (m *Metrics) RecordPrediction() {
	m.mu.Lock()
	m.predictions++
	m.mu.Unlock()
}

// RecordBatch counts a batch scoring run covering n leads.
func (m *Metrics) RecordBatch(n int) {
	m.mu.Lock()
	m.batchRequests++
	m.batchLeads += int64(n)
	m.mu.Unlock()
}

// RecordTrainingJob counts a started training job and its eventual failure.
func (m *Metrics) RecordTrainingJob(failed bool) {
	m.mu.Lock()
	m.trainingJobs++
	if failed {
		m.trainingFailed++
	}
	m.mu.Unlock()
}

// GetStats returns a snapshot of all counters and latency percentiles.
func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]interface{}{
		"uptime_seconds":     int64(time.Since(m.startedAt).Seconds()),
		"requests_total":     m.requestsTotal,
		"errors_total":       m.errorsTotal,
		"cache_hits":         m.cacheHits,
		"cache_misses":       m.cacheMisses,
		"rate_limited_total": m.rateLimited,
		"predictions_total":  m.predictions,
		"batch_requests":     m.batchRequests,
		"batch_leads_scored": m.batchLeads,
		"training_jobs":      m.trainingJobs,
		"training_failed":    m.trainingFailed,
	}

	if len(m.responseTimes) > 0 {
		sorted := make([]time.Duration, len(m.responseTimes))
		copy(sorted, m.responseTimes)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		stats["response_time_p50_ms"] = percentile(sorted, 0.50).Milliseconds()
		stats["response_time_p95_ms"] = percentile(sorted, 0.95).Milliseconds()
		stats["response_time_p99_ms"] = percentile(sorted, 0.99).Milliseconds()
	}

	return stats
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
