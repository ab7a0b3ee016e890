package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"windscapes-barcode/internal/ean"
	"windscapes-barcode/internal/models"
)

// Catalog is the product store the label and scan services read and update.
type Catalog interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	AdjustQuantity(ctx context.Context, identifier string, delta int) (int, error)
	Identifiers(ctx context.Context) ([]string, error)
}

// IdentifierPrefix is the GS1 in-store prefix given to new identifiers.
const IdentifierPrefix = "200"

// maxSequence is the largest sequence that keeps an identifier at 12 digits.
const maxSequence = 999_999_999

var ErrIdentifiersExhausted = errors.New("identifier sequence exhausted")

// NextIdentifier allocates "200" followed by a 9-digit sequence one past the
// highest sequence in use. Legacy PROD-<n> ids, 200-prefixed 12-digit ids
// and plain numbers all count toward the sequence; numbers too large for
// nine digits are outside it. A candidate whose payload is already taken
// is skipped.
func NextIdentifier(existing []string) (string, error) {
	highest := 0
	taken := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		taken[ean.Encode(id)] = struct{}{}
		if n := sequenceOf(id); n > highest && n <= maxSequence {
			highest = n
		}
	}

	for n := highest + 1; n <= maxSequence; n++ {
		id := fmt.Sprintf("%s%09d", IdentifierPrefix, n)
		if _, ok := taken[ean.Encode(id)]; !ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: highest sequence is %d", ErrIdentifiersExhausted, highest)
}

func sequenceOf(id string) int {
	switch {
	case strings.HasPrefix(id, "PROD-"):
		return leadingInt(strings.TrimPrefix(id, "PROD-"))
	case strings.HasPrefix(id, IdentifierPrefix) && len(id) == 12:
		return leadingInt(id[len(IdentifierPrefix):])
	default:
		return leadingInt(id)
	}
}

// leadingInt parses the run of ASCII digits at the start of s.
func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
