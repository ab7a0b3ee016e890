package routes

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windscapes-barcode/internal/device"
	"windscapes-barcode/internal/ean"
	"windscapes-barcode/internal/handlers"
	"windscapes-barcode/internal/label"
	"windscapes-barcode/internal/middleware"
	"windscapes-barcode/internal/monitoring"
	"windscapes-barcode/internal/models"
	"windscapes-barcode/internal/repository"
	"windscapes-barcode/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type captureSender struct {
	mu      sync.Mutex
	streams [][]byte
	err     error
}

func (s *captureSender) Send(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.streams = append(s.streams, data)
	return nil
}

func (s *captureSender) State() device.State { return device.Disconnected }

type testServer struct {
	router  *gin.Engine
	sender  *captureSender
	catalog *repository.MemoryCatalog
}

func newTestServer(t *testing.T, apiKeyHash string) *testServer {
	t.Helper()
	catalog := repository.NewMemoryCatalog(
		models.Product{Identifier: "PROD-008", Name: "Lavender", Quantity: 1},
		models.Product{Identifier: "Rose-7", Name: "Climbing rose", Quantity: 5},
	)
	sender := &captureSender{}
	cfg := label.DefaultConfig()

	printer := services.NewLabelPrintService(cfg, services.PrintOptions{PerRow: 2, PerSheet: 6}, sender, nil, nil)
	products := services.NewProductService(catalog, printer, nil)
	scans := services.NewScanService(catalog, nil)
	monitor := middleware.NewPerformanceMonitor(time.Second, nil)
	tracker := monitoring.NewErrorTracker(50, 0)

	r := NewRouter(Handlers{
		Labels:   handlers.NewLabelHandler(printer, nil),
		Barcodes: handlers.NewBarcodeHandler(services.NewBarcodeService(ean.DefaultOptions())),
		Scans:    handlers.NewScanHandler(scans, true, nil),
		Products: handlers.NewProductHandler(products, catalog, nil),
		Health:   handlers.NewHealthHandler(monitor, tracker, catalog, sender, "test"),
	}, Options{APIKeyHash: apiKeyHash, Monitor: monitor, Errors: tracker})

	return &testServer{router: r, sender: sender, catalog: catalog}
}

func (s *testServer) do(method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		for _, value := range v {
			req.Header.Add(k, value)
		}
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPrintLabelsEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodPost, "/api/labels/print", gin.H{"identifier": "Rose-7", "quantity": 3}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "000000000007", body["payload"])
	assert.Equal(t, "device", body["method"])

	require.Len(t, s.sender.streams, 1)
	assert.Equal(t, 3, bytes.Count(s.sender.streams[0], []byte("BARCODE ")))
	assert.Equal(t, 1, bytes.Count(s.sender.streams[0], []byte("PRINT 1,1")))
}

func TestPrintLabelsEndpointFailures(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodPost, "/api/labels/print", gin.H{"identifier": "Rose-7", "quantity": 0}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/labels/print", gin.H{"identifier": "Rose-7", "quantity": math.MaxInt}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/labels/print", gin.H{"quantity": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.sender.err = device.ErrDeviceNotFound
	w = s.do(http.MethodPost, "/api/labels/print", gin.H{"identifier": "Rose-7", "quantity": 1}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "No label printer found", decodeBody(t, w)["message"])

	w = s.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tracked, ok := decodeBody(t, w)["errors"].(map[string]interface{})
	require.True(t, ok)
	httpErrors, ok := tracked["http"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), httpErrors["count"])
	assert.Equal(t, "No label printer found", httpErrors["message"])
}

func TestAPIKeyGuardsMutations(t *testing.T) {
	hash, err := middleware.HashAPIKey("nursery")
	require.NoError(t, err)
	s := newTestServer(t, hash)

	w := s.do(http.MethodPost, "/api/labels/print", gin.H{"identifier": "Rose-7", "quantity": 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/labels/print", gin.H{"identifier": "Rose-7", "quantity": 1},
		http.Header{middleware.APIKeyHeader: {"nursery"}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/scan/resolve?code=0000000000086", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBarcodeEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodGet, "/api/barcodes/PROD-008.svg", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Equal(t, "0000000000086", w.Header().Get("X-Barcode-Code"))
	assert.Contains(t, w.Body.String(), "<svg")

	w = s.do(http.MethodGet, "/api/barcodes/PROD-008.png", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = s.do(http.MethodGet, "/api/barcodes/PROD-008?format=qr", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = s.do(http.MethodGet, "/api/barcodes/PROD-008?format=gif", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanEndpoints(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodGet, "/api/scan/resolve?code=0000000000086", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "000000000008", body["payload"])

	w = s.do(http.MethodGet, "/api/scan/resolve?code=4006381333931", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["found"])

	w = s.do(http.MethodGet, "/api/scan/resolve", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/scan/deduct", gin.H{"code": "0000000000086"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "deducted", decodeBody(t, w)["status"])

	w = s.do(http.MethodPost, "/api/scan/deduct", gin.H{"code": "0000000000086"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/scan/deduct", gin.H{"code": "999"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDecodeEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	opts := ean.DefaultOptions()
	opts.BarWidth = 3
	png, err := ean.RenderPNG("000000000007", opts)
	require.NoError(t, err)

	w := s.do(http.MethodPost, "/api/scan/decode", gin.H{"imageData": base64.StdEncoding.EncodeToString(png)}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, true, body["found"])
	product := body["product"].(map[string]interface{})
	assert.Equal(t, "Rose-7", product["id"])

	w = s.do(http.MethodPost, "/api/scan/decode", gin.H{"imageData": base64.StdEncoding.EncodeToString(png[:10])}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodPost, "/api/products", gin.H{"name": "Fern", "quantity": 3, "printLabels": 2}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	product := body["product"].(map[string]interface{})
	assert.Equal(t, "200000000009", product["id"])
	assert.Equal(t, "200000000009", body["payload"])
	assert.Len(t, s.sender.streams, 1)

	s.sender.err = device.ErrUnavailable
	w = s.do(http.MethodPost, "/api/products", gin.H{"name": "Moss", "printLabels": 1}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, decodeBody(t, w)["notice"], "not printed")

	w = s.do(http.MethodGet, "/api/products?search=fern", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	w = s.do(http.MethodGet, "/api/products/PROD-008", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0000000000086", decodeBody(t, w)["fullCode"])

	w = s.do(http.MethodGet, "/api/products/NOPE", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/products", gin.H{"quantity": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "disconnected", body["printer"])
	assert.Equal(t, "ok", body["catalog"])

	w = s.do(http.MethodGet, "/api/nothing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
