package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"windscapes-barcode/internal/ean"
	"windscapes-barcode/internal/label"
	"windscapes-barcode/internal/logger"
	"windscapes-barcode/internal/models"
)

var ErrInvalidProduct = errors.New("invalid product")

// LabelPrinter is the part of LabelPrintService the product flow needs.
type LabelPrinter interface {
	PrintLabels(ctx context.Context, identifier string, quantity int) PrintResult
}

type CreateProductRequest struct {
	Name     string  `json:"name" binding:"required"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Rate     float64 `json:"rate"`
	Size     *string `json:"size,omitempty"`
	Nursery  *string `json:"nursery,omitempty"`
	// PrintLabels is the number of labels to print once the product is
	// saved; zero prints nothing.
	PrintLabels int `json:"printLabels"`
}

type CreateProductResult struct {
	Product *models.Product `json:"product"`
	Payload string          `json:"payload"`
	Print   *PrintResult    `json:"print,omitempty"`
	Notice  string          `json:"notice,omitempty"`
}

type ProductService struct {
	catalog Catalog
	printer LabelPrinter
	mu      sync.Mutex
	log     *logger.StructuredLogger
}

func NewProductService(catalog Catalog, printer LabelPrinter, log *logger.StructuredLogger) *ProductService {
	if log == nil {
		log = logger.Nop()
	}
	return &ProductService{catalog: catalog, printer: printer, log: log}
}

func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	return s.catalog.ListProducts(ctx)
}

// Create allocates the next identifier, saves the product and then prints
// its labels if asked. A failed print leaves the product in place and is
// reported as a notice.
func (s *ProductService) Create(ctx context.Context, req CreateProductRequest) (*CreateProductResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if req.Quantity < 0 || req.PrintLabels < 0 {
		return nil, fmt.Errorf("%w: quantities cannot be negative", ErrInvalidProduct)
	}
	if req.PrintLabels > label.MaxQuantity {
		return nil, fmt.Errorf("%w: at most %d labels per request", ErrInvalidProduct, label.MaxQuantity)
	}

	product, err := s.save(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &CreateProductResult{Product: product, Payload: ean.Encode(product.Identifier)}
	s.log.LogBusinessEvent("Product created", "product", "create", map[string]interface{}{
		"identifier": product.Identifier,
		"payload":    result.Payload,
		"quantity":   product.Quantity,
	})

	if req.PrintLabels == 0 || s.printer == nil {
		return result, nil
	}

	pr := s.printer.PrintLabels(ctx, product.Identifier, req.PrintLabels)
	result.Print = &pr
	if !pr.Success {
		result.Notice = "Product saved, but labels were not printed: " + pr.Message
	}
	return result, nil
}

// save holds the allocation lock so concurrent creates never share an id.
func (s *ProductService) save(ctx context.Context, req CreateProductRequest) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.catalog.Identifiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read identifiers: %w", err)
	}
	identifier, err := NextIdentifier(existing)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Identifier: identifier,
		Name:       req.Name,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Rate:       req.Rate,
		Size:       req.Size,
		Nursery:    req.Nursery,
	}
	if err := s.catalog.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to save product: %w", err)
	}
	return product, nil
}
