package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	for k, v := range header {
		for _, value := range v {
			req.Header.Add(k, value)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth(t *testing.T) {
	hash, err := HashAPIKey("s3cret")
	require.NoError(t, err)

	r := gin.New()
	r.POST("/print", APIKeyAuth(hash, nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/print", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/print", http.Header{APIKeyHeader: {"wrong"}}).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/print", http.Header{APIKeyHeader: {"s3cret"}}).Code)
}

func TestAPIKeyAuthDisabled(t *testing.T) {
	r := gin.New()
	r.POST("/print", APIKeyAuth("", nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/print", nil).Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimitMiddleware(2), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/x", nil).Code)
}

func TestRequestSizeLimit(t *testing.T) {
	r := gin.New()
	r.POST("/x", RequestSizeLimitMiddleware(1), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(r, http.MethodPost, "/x", nil).Code)
}

func TestPerformanceMonitor(t *testing.T) {
	pm := NewPerformanceMonitor(time.Hour, nil)

	r := gin.New()
	r.Use(pm.PerformanceMiddleware())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/ok", nil)
	serve(r, http.MethodGet, "/ok", nil)
	serve(r, http.MethodGet, "/fail", nil)
	serve(r, http.MethodGet, "/health", nil)

	m := pm.GetMetrics()
	assert.Equal(t, int64(3), m.RequestCount)
	assert.Equal(t, int64(2), m.EndpointStats["GET /ok"].Count)
	assert.Equal(t, int64(1), m.EndpointStats["GET /fail"].ErrorCount)
	assert.InDelta(t, 33.3, m.ErrorRate, 0.1)
	assert.Len(t, pm.GetTopSlowEndpoints(1), 1)

	assert.Equal(t, "unhealthy", HealthStatus(m.ErrorRate))
	assert.Equal(t, "healthy", HealthStatus(0))
	assert.Equal(t, "degraded", HealthStatus(12))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
}
