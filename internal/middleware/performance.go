package middleware

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"windscapes-barcode/internal/logger"
)

// PerformanceMetrics is a snapshot of request statistics
type PerformanceMetrics struct {
	RequestCount  int64            `json:"request_count"`
	ErrorRate     float64          `json:"error_rate"`
	MemoryUsage   MemoryStats      `json:"memory_usage"`
	EndpointStats map[string]Stats `json:"endpoint_stats"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated uint64 `json:"allocated"`
	Sys       uint64 `json:"sys"`
	GCRuns    uint32 `json:"gc_runs"`
}

// Stats represents endpoint-specific statistics
type Stats struct {
	Count         int64         `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	AverageTime   time.Duration `json:"average_time"`
	ErrorCount    int64         `json:"error_count"`
	SlowCount     int64         `json:"slow_count"`
}

// PerformanceMonitor tracks request timings per endpoint
type PerformanceMonitor struct {
	mu            sync.Mutex
	requests      int64
	errors        int64
	endpoints     map[string]Stats
	slowThreshold time.Duration
	startTime     time.Time
	log           *logger.StructuredLogger
}

func NewPerformanceMonitor(slowThreshold time.Duration, log *logger.StructuredLogger) *PerformanceMonitor {
	if log == nil {
		log = logger.Nop()
	}
	return &PerformanceMonitor{
		endpoints:     make(map[string]Stats),
		slowThreshold: slowThreshold,
		startTime:     time.Now(),
		log:           log,
	}
}

// PerformanceMiddleware records each request except health checks
func (pm *PerformanceMonitor) PerformanceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		endpoint := fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())
		pm.record(endpoint, duration, status >= 500)

		if duration > pm.slowThreshold {
			pm.log.Warn("Slow request", map[string]interface{}{
				"endpoint": endpoint,
				"duration": duration.String(),
				"status":   status,
			})
		}
	}
}

func (pm *PerformanceMonitor) record(endpoint string, duration time.Duration, isError bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.requests++
	stats := pm.endpoints[endpoint]
	stats.Count++
	stats.TotalDuration += duration
	stats.AverageTime = stats.TotalDuration / time.Duration(stats.Count)
	if isError {
		stats.ErrorCount++
		pm.errors++
	}
	if duration > pm.slowThreshold {
		stats.SlowCount++
	}
	pm.endpoints[endpoint] = stats
}

// GetMetrics returns a copy of the current metrics
func (pm *PerformanceMonitor) GetMetrics() PerformanceMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	pm.mu.Lock()
	defer pm.mu.Unlock()

	out := PerformanceMetrics{
		RequestCount:  pm.requests,
		EndpointStats: make(map[string]Stats, len(pm.endpoints)),
		MemoryUsage: MemoryStats{
			Allocated: m.Alloc,
			Sys:       m.Sys,
			GCRuns:    m.NumGC,
		},
	}
	for k, v := range pm.endpoints {
		out.EndpointStats[k] = v
	}
	if pm.requests > 0 {
		out.ErrorRate = float64(pm.errors) / float64(pm.requests) * 100
	}
	return out
}

// EndpointSummary represents endpoint performance summary
type EndpointSummary struct {
	Endpoint    string        `json:"endpoint"`
	AverageTime time.Duration `json:"average_time"`
	Count       int64         `json:"count"`
}

// GetTopSlowEndpoints returns endpoints by descending average time
func (pm *PerformanceMonitor) GetTopSlowEndpoints(limit int) []EndpointSummary {
	metrics := pm.GetMetrics()
	endpoints := make([]EndpointSummary, 0, len(metrics.EndpointStats))
	for endpoint, stats := range metrics.EndpointStats {
		endpoints = append(endpoints, EndpointSummary{
			Endpoint:    endpoint,
			AverageTime: stats.AverageTime,
			Count:       stats.Count,
		})
	}
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].AverageTime > endpoints[j].AverageTime
	})
	if limit > 0 && limit < len(endpoints) {
		endpoints = endpoints[:limit]
	}
	return endpoints
}

func (pm *PerformanceMonitor) Uptime() time.Duration {
	return time.Since(pm.startTime)
}

// HealthStatus grades the error rate
func HealthStatus(errorRate float64) string {
	switch {
	case errorRate > 25:
		return "unhealthy"
	case errorRate > 10:
		return "degraded"
	default:
		return "healthy"
	}
}

// FormatBytes formats byte count as human readable string
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
