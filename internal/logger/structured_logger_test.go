package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewStructuredLogger(LoggerConfig{
		Level:       level,
		Service:     "windscapes-barcode",
		Version:     "test",
		Environment: "test",
		Output:      &buf,
	})
	require.NoError(t, err)
	return l, &buf
}

func entries(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" Warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newTestLogger(t, WARN)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown", map[string]interface{}{"payload": "000000000007"})
	l.Error("failed", errors.New("boom"))

	got := entries(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "shown", got[0]["message"])
	assert.Equal(t, "warn", got[0]["level"])
	assert.Equal(t, "000000000007", got[0]["payload"])
	assert.Equal(t, "windscapes-barcode", got[0]["service"])
	assert.Equal(t, "boom", got[1]["error"])
}

func TestEventHelpers(t *testing.T) {
	l, buf := newTestLogger(t, DEBUG)

	l.LogBusinessEvent("labels printed", "label", "print", map[string]interface{}{"labels": 3})
	l.LogDeviceEvent("state changed", "/dev/ttyUSB0")
	l.With(map[string]interface{}{"job_id": "j1"}).Info("child")

	got := entries(t, buf)
	require.Len(t, got, 3)
	assert.Equal(t, "business", got[0]["component"])
	assert.Equal(t, "print", got[0]["operation"])
	assert.EqualValues(t, 3, got[0]["labels"])
	assert.Equal(t, "device", got[1]["component"])
	assert.Equal(t, "j1", got[2]["job_id"])
}

func TestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, buf := newTestLogger(t, INFO)

	r := gin.New()
	r.Use(l.LoggingMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/x?code=1", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "HTTP Request", got[0]["message"])
	assert.EqualValues(t, http.StatusTeapot, got[0]["status_code"])
	assert.Equal(t, "code=1", got[0]["query"])
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	l.Error("nothing", errors.New("x"))
	assert.NoError(t, l.Close())
}
