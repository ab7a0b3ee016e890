package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"windscapes-barcode/internal/ean"
	"windscapes-barcode/internal/logger"
	"windscapes-barcode/internal/models"
	"windscapes-barcode/internal/repository"
	"windscapes-barcode/internal/services"
)

type ProductHandler struct {
	products *services.ProductService
	catalog  services.Catalog
	log      *logger.StructuredLogger
}

func NewProductHandler(products *services.ProductService, catalog services.Catalog, log *logger.StructuredLogger) *ProductHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ProductHandler{products: products, catalog: catalog, log: log}
}

type productView struct {
	models.Product
	Payload  string `json:"payload"`
	FullCode string `json:"fullCode"`
}

func viewOf(p models.Product) productView {
	payload := ean.Encode(p.Identifier)
	full, _ := ean.FullCode(payload)
	return productView{Product: p, Payload: payload, FullCode: full}
}

// ListProducts supports ?search= on name and identifier.
func (h *ProductHandler) ListProducts(c *gin.Context) {
	var params models.FilterParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	products, err := h.products.List(c.Request.Context())
	if err != nil {
		h.log.WithRequestContext(c).Error("Failed to list products", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return
	}

	term := strings.ToLower(strings.TrimSpace(params.SearchTerm))
	views := make([]productView, 0, len(products))
	for _, p := range products {
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Identifier), term) {
			continue
		}
		views = append(views, viewOf(p))
	}

	if params.Offset > 0 {
		views = views[min(params.Offset, len(views)):]
	}
	if params.Limit > 0 && params.Limit < len(views) {
		views = views[:params.Limit]
	}

	c.JSON(http.StatusOK, gin.H{"products": views, "count": len(views)})
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetByIdentifier(c.Request.Context(), c.Param("identifier"))
	if errors.Is(err, repository.ErrProductNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, viewOf(*product))
}

// CreateProduct answers 201 even when label printing failed; the notice
// field says so.
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req services.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.products.Create(c.Request.Context(), req)
	switch {
	case errors.Is(err, services.ErrInvalidProduct):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, repository.ErrDuplicateIdentifier):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.log.WithRequestContext(c).Error("Failed to create product", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, result)
}
