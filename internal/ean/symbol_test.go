package ean

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePayloads = []string{
	"000000000008",
	"200000000042",
	"400638133393",
	"590123412345",
	"123456789012",
	"987654321098",
	SentinelPayload,
}

func TestRenderModules(t *testing.T) {
	cases := map[string]string{
		"400638133393": "10100011010100111010111101111010001001011001101010100001010000101000010111010010000101100110101",
		"200000000042": "10100011010001101010011101001110001101010011101010111001011100101110010101110011011001001000101",
	}
	for payload, want := range cases {
		t.Run(payload, func(t *testing.T) {
			sym, err := Render(payload, DefaultOptions())
			require.NoError(t, err)

			var got strings.Builder
			for _, dark := range sym.Modules {
				if dark {
					got.WriteByte('1')
				} else {
					got.WriteByte('0')
				}
			}
			assert.Equal(t, want, got.String())
		})
	}
}

func TestRenderGuardsAndModuleCount(t *testing.T) {
	for _, payload := range samplePayloads {
		sym, err := Render(payload, DefaultOptions())
		require.NoError(t, err, payload)

		for _, i := range []int{0, 2, 46, 48, 92, 94} {
			assert.True(t, sym.Modules[i], "%s module %d", payload, i)
		}
		for _, i := range []int{1, 45, 47, 49, 93} {
			assert.False(t, sym.Modules[i], "%s module %d", payload, i)
		}
	}
}

func TestRenderGeometry(t *testing.T) {
	sym, err := Render("200000000042", Options{BarWidth: 3, Height: 90, QuietZone: 12})
	require.NoError(t, err)

	assert.Equal(t, "2000000000428", sym.Text)
	assert.Equal(t, (2*12+Modules)*3, sym.Width)
	assert.Equal(t, 90, sym.Height)
	assert.Len(t, sym.Bars, 30)

	dark := 0
	for _, b := range sym.Bars {
		assert.GreaterOrEqual(t, b.X, 12*3)
		assert.LessOrEqual(t, b.X+b.Width, sym.Width-12*3)
		dark += b.Width
	}
	modules := 0
	for _, m := range sym.Modules {
		if m {
			modules++
		}
	}
	assert.Equal(t, modules*3, dark)
}

func TestRenderWidensQuietZone(t *testing.T) {
	sym, err := Render("000000000008", Options{BarWidth: 2, Height: 50, QuietZone: 4})
	require.NoError(t, err)

	assert.Equal(t, MinQuietZone, sym.QuietZone)
	assert.Equal(t, (2*MinQuietZone+Modules)*2, sym.Width)
	assert.Equal(t, MinQuietZone*2, sym.Bars[0].X)
}

func TestRenderTextBand(t *testing.T) {
	sym, err := Render("000000000008", Options{BarWidth: 2, Height: 80, ShowText: true})
	require.NoError(t, err)
	assert.Equal(t, 80+20, sym.Height)

	small, err := Render("000000000008", Options{BarWidth: 1, Height: 40, ShowText: true})
	require.NoError(t, err)
	assert.Equal(t, 40+16, small.Height)
}

func TestRenderRejectsInvalidInput(t *testing.T) {
	_, err := Render("PROD-008", DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Render("000000000008", Options{BarWidth: 0, Height: 10})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = Render("000000000008", Options{BarWidth: 1, Height: 0})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestSVGIsDeterministic(t *testing.T) {
	a, err := Render("200000000042", DefaultOptions())
	require.NoError(t, err)
	b, err := Render("200000000042", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, a.SVG(), b.SVG())
	assert.Contains(t, string(a.SVG()), ">2000000000428</text>")
	assert.Equal(t, 30, bytes.Count(a.SVG(), []byte(`<rect x=`))-1)
}

func TestSVGWithoutText(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowText = false
	sym, err := Render("200000000042", opts)
	require.NoError(t, err)
	assert.NotContains(t, string(sym.SVG()), "<text")
}

func TestRenderImageDecodesBack(t *testing.T) {
	for _, payload := range samplePayloads {
		t.Run(payload, func(t *testing.T) {
			img, err := RenderImage(payload, Options{BarWidth: 3, Height: 120, QuietZone: MinQuietZone})
			require.NoError(t, err)

			bmp, err := gozxing.NewBinaryBitmapFromImage(img)
			require.NoError(t, err)

			result, err := oned.NewEAN13Reader().Decode(bmp, nil)
			require.NoError(t, err)

			full, _ := FullCode(payload)
			assert.Equal(t, full, result.GetText())
		})
	}
}

func TestRenderPNG(t *testing.T) {
	opts := DefaultOptions()
	data, err := RenderPNG("000000000008", opts)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	sym, _ := Render("000000000008", opts)
	assert.Equal(t, sym.Width, img.Bounds().Dx())
	assert.Equal(t, sym.Height, img.Bounds().Dy())

	quiet, _, _, _ := img.At(0, 10).RGBA()
	assert.Equal(t, uint32(0xffff), quiet)
	guard, _, _, _ := img.At(sym.Bars[0].X, 10).RGBA()
	assert.Equal(t, uint32(0), guard)
}
