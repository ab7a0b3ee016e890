package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"windscapes-barcode/internal/device"
	"windscapes-barcode/internal/middleware"
	"windscapes-barcode/internal/monitoring"
	"windscapes-barcode/internal/services"
)

// PrinterState reports where the printer link is in its session lifecycle.
type PrinterState interface {
	State() device.State
}

type HealthHandler struct {
	monitor *middleware.PerformanceMonitor
	errors  *monitoring.ErrorTracker
	catalog services.Catalog
	printer PrinterState
	version string
}

func NewHealthHandler(monitor *middleware.PerformanceMonitor, errors *monitoring.ErrorTracker, catalog services.Catalog, printer PrinterState, version string) *HealthHandler {
	return &HealthHandler{monitor: monitor, errors: errors, catalog: catalog, printer: printer, version: version}
}

// Health answers 503 only when the catalog cannot be read; a missing
// printer still leaves the fallback path.
func (h *HealthHandler) Health(c *gin.Context) {
	health := gin.H{
		"status":    "healthy",
		"version":   h.version,
		"timestamp": time.Now().UTC(),
	}

	if h.monitor != nil {
		metrics := h.monitor.GetMetrics()
		health["status"] = middleware.HealthStatus(metrics.ErrorRate)
		health["uptime"] = h.monitor.Uptime().String()
		health["requests"] = metrics.RequestCount
		health["memory"] = gin.H{
			"allocated": middleware.FormatBytes(metrics.MemoryUsage.Allocated),
			"sys":       middleware.FormatBytes(metrics.MemoryUsage.Sys),
		}
	}

	if h.errors != nil {
		health["errors"] = h.errors.GetErrorSummary()
	}

	if h.printer != nil {
		health["printer"] = h.printer.State().String()
	} else {
		health["printer"] = "unavailable"
	}

	code := http.StatusOK
	if h.catalog != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if _, err := h.catalog.Identifiers(ctx); err != nil {
			health["status"] = "unhealthy"
			health["catalog"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			health["catalog"] = "ok"
		}
	}

	c.JSON(code, health)
}
