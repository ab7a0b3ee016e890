package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"windscapes-barcode/internal/logger"
	"windscapes-barcode/internal/models"
	"windscapes-barcode/internal/scan"
	"windscapes-barcode/internal/services"
)

// ScanResolver is the scan side of the catalog as the HTTP layer sees it.
type ScanResolver interface {
	ResolveScan(ctx context.Context, raw string) (*models.Product, error)
	DeductScan(ctx context.Context, raw string) (services.ScanOutcome, error)
}

type ScanHandler struct {
	scans   ScanResolver
	decoder *scan.ServerDecoder
	// decodeEnabled gates server-side image decoding.
	decodeEnabled bool
	log           *logger.StructuredLogger
}

func NewScanHandler(scans ScanResolver, decodeEnabled bool, log *logger.StructuredLogger) *ScanHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ScanHandler{
		scans:         scans,
		decoder:       scan.NewServerDecoder(),
		decodeEnabled: decodeEnabled,
		log:           log,
	}
}

type resolveResponse struct {
	Found   bool            `json:"found"`
	Code    string          `json:"code"`
	Payload string          `json:"payload,omitempty"`
	Product *models.Product `json:"product,omitempty"`
}

func (h *ScanHandler) resolve(c *gin.Context, code string) (resolveResponse, bool) {
	resp := resolveResponse{Code: code}
	resp.Payload, _ = scan.Candidate(code)

	product, err := h.scans.ResolveScan(c.Request.Context(), code)
	if err != nil {
		h.log.WithRequestContext(c).Error("Failed to resolve scan", err, map[string]interface{}{"code": code})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load catalog"})
		return resp, false
	}
	resp.Found = product != nil
	resp.Product = product
	return resp, true
}

// Resolve looks up GET ?code=. A miss is 200 with found=false.
func (h *ScanHandler) Resolve(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code is required"})
		return
	}
	if resp, ok := h.resolve(c, code); ok {
		c.JSON(http.StatusOK, resp)
	}
}

type deductRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *ScanHandler) Deduct(c *gin.Context) {
	var req deductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code is required"})
		return
	}

	outcome, err := h.scans.DeductScan(c.Request.Context(), req.Code)
	if err != nil {
		h.log.WithRequestContext(c).Error("Failed to deduct scan", err, map[string]interface{}{"code": req.Code})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update stock"})
		return
	}

	status := http.StatusOK
	switch outcome.Status {
	case services.OutcomeNotFound:
		status = http.StatusNotFound
	case services.OutcomeOutOfStock:
		status = http.StatusConflict
	}
	c.JSON(status, outcome)
}

// Decode reads a barcode from an uploaded image and resolves it. 422 means
// the request was fine but no barcode was found.
func (h *ScanHandler) Decode(c *gin.Context) {
	if !h.decodeEnabled {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "FEATURE_DISABLED",
			"message": "Server-side decode is disabled",
		})
		return
	}

	var req scan.DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "INVALID_REQUEST",
			"message": err.Error(),
		})
		return
	}

	decoded := h.decoder.Decode(&req)
	if !decoded.Success {
		c.JSON(http.StatusUnprocessableEntity, decoded)
		return
	}

	resp, ok := h.resolve(c, decoded.Result.Text)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"decode":  decoded,
		"found":   resp.Found,
		"payload": resp.Payload,
		"product": resp.Product,
	})
}

func (h *ScanHandler) DecoderStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled":          h.decodeEnabled,
		"supportedFormats": []string{"EAN_13", "UPC_A", "EAN_8", "CODE_128", "QR_CODE"},
	})
}
