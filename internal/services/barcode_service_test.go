package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windscapes-barcode/internal/ean"
)

func TestBarcodeServicePreviews(t *testing.T) {
	svc := NewBarcodeService(ean.DefaultOptions())

	svg, err := svc.GenerateSVG("PROD-008")
	require.NoError(t, err)
	assert.Equal(t, "000000000008", svg.Payload)
	assert.Equal(t, "0000000000086", svg.FullCode)
	assert.True(t, bytes.Contains(svg.Data, []byte("<svg")))

	png, err := svc.GeneratePNG("PROD-008")
	require.NoError(t, err)
	assert.Equal(t, "0000000000086", png.FullCode)
	assert.True(t, bytes.HasPrefix(png.Data, []byte("\x89PNG")))

	qr, err := svc.GenerateProductQR("200000000042", 128)
	require.NoError(t, err)
	assert.Equal(t, "2000000000428", qr.FullCode)
	assert.True(t, bytes.HasPrefix(qr.Data, []byte("\x89PNG")))
}
