package services

import (
	"fmt"

	"github.com/skip2/go-qrcode"

	"windscapes-barcode/internal/ean"
	"windscapes-barcode/internal/scan"
)

// QRPrefix marks product QR codes so the decoder can tell them from other
// QR content.
const QRPrefix = scan.ProductQRPrefix

type BarcodeService struct {
	opts ean.Options
}

func NewBarcodeService(opts ean.Options) *BarcodeService {
	return &BarcodeService{opts: opts}
}

// Preview is a rendered symbol plus the codes it carries.
type Preview struct {
	Payload  string
	FullCode string
	Data     []byte
}

func (s *BarcodeService) GenerateSVG(identifier string) (*Preview, error) {
	payload := ean.Encode(identifier)
	sym, err := ean.Render(payload, s.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to render barcode: %w", err)
	}
	return &Preview{Payload: payload, FullCode: sym.Text, Data: sym.SVG()}, nil
}

func (s *BarcodeService) GeneratePNG(identifier string) (*Preview, error) {
	payload := ean.Encode(identifier)
	png, err := ean.RenderPNG(payload, s.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to render barcode: %w", err)
	}
	full, _ := ean.FullCode(payload)
	return &Preview{Payload: payload, FullCode: full, Data: png}, nil
}

func (s *BarcodeService) GenerateQRCode(data string, size int) ([]byte, error) {
	pngBytes, err := qrcode.Encode(data, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	return pngBytes, nil
}

// GenerateProductQR encodes the product's full EAN-13 code behind QRPrefix.
func (s *BarcodeService) GenerateProductQR(identifier string, size int) (*Preview, error) {
	payload := ean.Encode(identifier)
	full, _ := ean.FullCode(payload)
	png, err := s.GenerateQRCode(QRPrefix+full, size)
	if err != nil {
		return nil, err
	}
	return &Preview{Payload: payload, FullCode: full, Data: png}, nil
}
