package services

import (
	"context"
	"errors"
	"fmt"

	"windscapes-barcode/internal/ean"
	"windscapes-barcode/internal/logger"
	"windscapes-barcode/internal/models"
	"windscapes-barcode/internal/repository"
	"windscapes-barcode/internal/scan"
)

const (
	OutcomeNotFound   = "not_found"
	OutcomeOutOfStock = "out_of_stock"
	OutcomeDeducted   = "deducted"
)

// ScanOutcome reports a stock deduction made from a scan.
type ScanOutcome struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Code      string          `json:"code"`
	Product   *models.Product `json:"product,omitempty"`
	Remaining int             `json:"remaining"`
}

type ScanService struct {
	catalog Catalog
	log     *logger.StructuredLogger
}

func NewScanService(catalog Catalog, log *logger.StructuredLogger) *ScanService {
	if log == nil {
		log = logger.Nop()
	}
	return &ScanService{catalog: catalog, log: log}
}

// ResolveScan matches a reading against a fresh catalog snapshot. It returns
// a nil product and no error when nothing matches.
func (s *ScanService) ResolveScan(ctx context.Context, raw string) (*models.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	if !scan.ChecksumValid(raw) {
		s.log.Warn("Scanned code has a bad check digit", map[string]interface{}{"code": raw})
	}

	product, ok := scan.Resolve(raw, products)
	if !ok {
		s.log.Debug("Scan did not match any product", map[string]interface{}{"code": raw})
		return nil, nil
	}
	return &product, nil
}

// DeductScan resolves a reading and takes one unit of the product out of
// stock.
func (s *ScanService) DeductScan(ctx context.Context, raw string) (ScanOutcome, error) {
	outcome := ScanOutcome{Code: raw}

	product, err := s.ResolveScan(ctx, raw)
	if err != nil {
		return outcome, err
	}
	if product == nil {
		outcome.Status = OutcomeNotFound
		outcome.Message = "Product not found"
		return outcome, nil
	}
	outcome.Product = product

	if !product.InStock() {
		outcome.Status = OutcomeOutOfStock
		outcome.Message = product.Name + " is out of stock"
		return outcome, nil
	}

	remaining, err := s.catalog.AdjustQuantity(ctx, product.Identifier, -1)
	switch {
	case errors.Is(err, repository.ErrInsufficientStock):
		outcome.Status = OutcomeOutOfStock
		outcome.Message = product.Name + " is out of stock"
		return outcome, nil
	case err != nil:
		return outcome, fmt.Errorf("failed to deduct stock: %w", err)
	}

	product.Quantity = remaining
	outcome.Status = OutcomeDeducted
	outcome.Remaining = remaining
	outcome.Message = fmt.Sprintf("Sold 1 %s (%d left)", product.Name, remaining)

	s.log.LogBusinessEvent("Stock deducted by scan", "product", "deduct", map[string]interface{}{
		"identifier": product.Identifier,
		"payload":    ean.Encode(product.Identifier),
		"remaining":  remaining,
	})
	return outcome, nil
}
