package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"windscapes-barcode/internal/services"
)

type BarcodeHandler struct {
	barcodeService *services.BarcodeService
}

func NewBarcodeHandler(barcodeService *services.BarcodeService) *BarcodeHandler {
	return &BarcodeHandler{barcodeService: barcodeService}
}

// splitFormat reads "PROD-008.svg" style names; ?format= wins over the
// extension and SVG is the default.
func splitFormat(c *gin.Context) (string, string) {
	name := c.Param("identifier")
	format := "svg"
	for _, ext := range []string{".svg", ".png"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			name = name[:len(name)-len(ext)]
			format = ext[1:]
			break
		}
	}
	if f := strings.ToLower(c.Query("format")); f != "" {
		format = f
	}
	return name, format
}

// GetBarcode serves the preview of an identifier's EAN-13 symbol, or its
// product QR code with format=qr.
func (h *BarcodeHandler) GetBarcode(c *gin.Context) {
	identifier, format := splitFormat(c)
	if identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifier is required"})
		return
	}

	var (
		preview     *services.Preview
		err         error
		contentType string
	)
	switch format {
	case "svg":
		preview, err = h.barcodeService.GenerateSVG(identifier)
		contentType = "image/svg+xml"
	case "png":
		preview, err = h.barcodeService.GeneratePNG(identifier)
		contentType = "image/png"
	case "qr":
		size, _ := strconv.Atoi(c.DefaultQuery("size", "256"))
		if size < 64 || size > 2048 {
			size = 256
		}
		preview, err = h.barcodeService.GenerateProductQR(identifier, size)
		contentType = "image/png"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format " + format})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Barcode-Payload", preview.Payload)
	c.Header("X-Barcode-Code", preview.FullCode)
	c.Header("Content-Disposition", "inline; filename=barcode_"+preview.FullCode+"."+extension(format))
	c.Data(http.StatusOK, contentType, preview.Data)
}

func extension(format string) string {
	if format == "svg" {
		return "svg"
	}
	return "png"
}
