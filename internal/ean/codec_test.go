package ean

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{"legacy prefixed id", "PROD-008", "000000000008"},
		{"canonical passthrough", "200000000042", "200000000042"},
		{"short raw id", "Rose-7", "000000000007"},
		{"digits scattered", "A1-B2-C3", "000000000123"},
		{"more than twelve digits", "12345678901234", "123456789012"},
		{"twelve digits with separators", "1234-5678-9012", "123456789012"},
		{"no digits", "ROSE", SentinelPayload},
		{"empty", "", SentinelPayload},
		{"unicode digits ignored", "٣PROD-5", "000000000005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.identifier))
		})
	}
}

func TestEncodeIsTotalAndIdempotent(t *testing.T) {
	inputs := []string{
		"", " ", "PROD-001", "PROD-1234567890123", "200000000001", "x", "007",
		"Lavender 12in pot", "000000000000", "99999999999999999",
	}
	for i := 0; i < 200; i++ {
		inputs = append(inputs, fmt.Sprintf("SKU-%d-%c", i*7919, 'A'+rune(i%26)))
	}

	for _, in := range inputs {
		got := Encode(in)
		require.Len(t, got, PayloadLength, "input %q", in)
		assert.True(t, Valid(got), "input %q produced %q", in, got)
		assert.Equal(t, got, Encode(got), "encode must be idempotent on its range")
		assert.Equal(t, got, Encode(in), "encode must be deterministic")
	}
}

func TestCheckDigit(t *testing.T) {
	tests := []struct {
		payload string
		want    byte
	}{
		{"000000000008", '6'},
		{"200000000042", '8'},
		{"000000000007", '9'},
		{"400638133393", '1'},
		{"590123412345", '7'},
		{"000000000000", '0'},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := CheckDigit(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, string(tt.want), string(got))
		})
	}
}

func TestCheckDigitRange(t *testing.T) {
	for n := 0; n < 5000; n++ {
		payload := fmt.Sprintf("%012d", n*104729)
		cd, err := CheckDigit(payload)
		require.NoError(t, err)
		assert.True(t, cd >= '0' && cd <= '9')

		again, _ := CheckDigit(payload)
		assert.Equal(t, cd, again)
	}
}

func TestCheckDigitRejectsBadPayload(t *testing.T) {
	for _, p := range []string{"", "12345", "1234567890123", "12345678901a", "PROD-0000008"} {
		_, err := CheckDigit(p)
		assert.ErrorIs(t, err, ErrInvalidPayload, "payload %q", p)
	}
}

func TestFullCode(t *testing.T) {
	code, err := FullCode("000000000008")
	require.NoError(t, err)
	assert.Equal(t, "0000000000086", code)

	_, err = FullCode("8")
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestVerifyFullCode(t *testing.T) {
	assert.True(t, VerifyFullCode("2000000000428"))
	assert.False(t, VerifyFullCode("2000000000421"))
	assert.False(t, VerifyFullCode("200000000042"))
	assert.False(t, VerifyFullCode("20000000004x8"))
}
