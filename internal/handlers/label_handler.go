package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"windscapes-barcode/internal/label"
	"windscapes-barcode/internal/logger"
	"windscapes-barcode/internal/services"
)

type LabelHandler struct {
	printer services.LabelPrinter
	log     *logger.StructuredLogger
}

func NewLabelHandler(printer services.LabelPrinter, log *logger.StructuredLogger) *LabelHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &LabelHandler{printer: printer, log: log}
}

type PrintLabelsRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Quantity   int    `json:"quantity"`
}

// PrintLabels answers 200 when labels reached a printer by either path and
// 503 when they did not. The body is the PrintResult in both cases.
func (h *LabelHandler) PrintLabels(c *gin.Context) {
	var req PrintLabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifier is required"})
		return
	}
	if req.Quantity < 1 || req.Quantity > label.MaxQuantity {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Quantity must be between 1 and %d", label.MaxQuantity)})
		return
	}

	result := h.printer.PrintLabels(c.Request.Context(), req.Identifier, req.Quantity)
	if !result.Success {
		h.log.WithRequestContext(c).Warn("Label print failed", map[string]interface{}{
			"identifier": req.Identifier,
			"job_id":     result.JobID,
			"message":    result.Message,
		})
		_ = c.Error(errors.New(result.Message))
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
