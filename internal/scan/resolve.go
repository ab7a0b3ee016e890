package scan

import (
	"strings"
	"unicode"

	"windscapes-barcode/internal/ean"
	"windscapes-barcode/internal/models"
)

// ProductQRPrefix precedes the full EAN-13 code in product QR codes.
const ProductQRPrefix = "PRODUCT:"

// Candidate reduces a scanner reading to the 12-character value compared
// against encoded identifiers. A 13-character reading loses its check digit,
// 12 characters are kept, anything else is left-padded with zeros and cut
// to 12. An empty reading yields ok=false.
func Candidate(raw string) (string, bool) {
	code := strings.TrimPrefix(strings.TrimSpace(raw), ProductQRPrefix)
	code = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, code)
	if code == "" {
		return "", false
	}

	switch len(code) {
	case ean.PayloadLength + 1:
		return code[:ean.PayloadLength], true
	case ean.PayloadLength:
		return code, true
	default:
		if len(code) < ean.PayloadLength {
			code = strings.Repeat("0", ean.PayloadLength-len(code)) + code
		}
		return code[:ean.PayloadLength], true
	}
}

// Resolve returns the first product in catalog whose encoded identifier
// equals the reading's candidate. The check digit of a 13-digit reading is
// not verified; ChecksumValid reports it separately.
func Resolve(raw string, catalog []models.Product) (models.Product, bool) {
	candidate, ok := Candidate(raw)
	if !ok {
		return models.Product{}, false
	}
	for _, p := range catalog {
		if ean.Encode(p.Identifier) == candidate {
			return p, true
		}
	}
	return models.Product{}, false
}

// ChecksumValid reports whether a 13-digit reading carries a correct check
// digit. Other lengths report true since they carry none.
func ChecksumValid(raw string) bool {
	code := strings.TrimPrefix(strings.TrimSpace(raw), ProductQRPrefix)
	if len(code) != ean.PayloadLength+1 {
		return true
	}
	return ean.VerifyFullCode(code)
}
