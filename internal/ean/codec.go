package ean

import (
	"errors"
	"fmt"
	"strings"
)

// PayloadLength is the number of data digits in an EAN-13 symbol.
const PayloadLength = 12

// SentinelPayload is returned for identifiers that contain no digits at all.
// The leading 2 is the GS1 in-store prefix, so the symbol is never all zeros.
const SentinelPayload = "200000000000"

var (
	ErrInvalidPayload = errors.New("invalid EAN-13 payload")
	ErrInvalidOptions = errors.New("invalid render options")
)

// Encode converts a product identifier of either scheme (legacy "PROD-008"
// or current "200000000042") into its canonical 12-digit payload.
// It never fails and depends on nothing but the identifier.
func Encode(identifier string) string {
	if Valid(identifier) {
		return identifier
	}

	var digits strings.Builder
	for _, r := range identifier {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	switch {
	case len(d) == 0:
		return SentinelPayload
	case len(d) >= PayloadLength:
		return d[:PayloadLength]
	default:
		return strings.Repeat("0", PayloadLength-len(d)) + d
	}
}

// Valid reports whether payload is exactly 12 decimal digits.
func Valid(payload string) bool {
	if len(payload) != PayloadLength {
		return false
	}
	for i := 0; i < len(payload); i++ {
		if payload[i] < '0' || payload[i] > '9' {
			return false
		}
	}
	return true
}

// CheckDigit computes the weighted modulo-10 check digit of a 12-digit payload.
// Even indexes weigh 1 and odd indexes weigh 3.
func CheckDigit(payload string) (byte, error) {
	if !Valid(payload) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
	return checkDigit(payload), nil
}

func checkDigit(payload string) byte {
	sum := 0
	for i := 0; i < PayloadLength; i++ {
		d := int(payload[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return byte('0' + (10-sum%10)%10)
}

// FullCode returns the 13-digit symbol value: payload followed by its check digit.
func FullCode(payload string) (string, error) {
	cd, err := CheckDigit(payload)
	if err != nil {
		return "", err
	}
	return payload + string(cd), nil
}

// VerifyFullCode reports whether a 13-digit code carries a correct check digit.
func VerifyFullCode(code string) bool {
	if len(code) != PayloadLength+1 || !Valid(code[:PayloadLength]) {
		return false
	}
	return checkDigit(code[:PayloadLength]) == code[PayloadLength]
}
