package ean

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/boombuler/barcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RenderImage rasterises the symbol at one pixel per device unit, quiet zones
// and (optionally) the human-readable digits included.
func RenderImage(payload string, opts Options) (*image.Gray, error) {
	sym, err := Render(payload, opts)
	if err != nil {
		return nil, err
	}

	scaled, err := barcode.Scale(sym.code, Modules*sym.BarWidth, sym.BarHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to scale barcode: %w", err)
	}

	canvas := image.NewGray(image.Rect(0, 0, sym.Width, sym.Height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	origin := image.Pt(sym.QuietZone*sym.BarWidth, 0)
	target := image.Rectangle{Min: origin, Max: origin.Add(scaled.Bounds().Size())}
	draw.Draw(canvas, target, scaled, scaled.Bounds().Min, draw.Src)

	if sym.ShowText {
		face := basicfont.Face7x13
		textWidth := len(sym.Text) * face.Advance
		d := font.Drawer{
			Dst:  canvas,
			Src:  image.Black,
			Face: face,
			Dot:  fixed.P((sym.Width-textWidth)/2, sym.BarHeight+face.Ascent+2),
		}
		d.DrawString(sym.Text)
	}

	return canvas, nil
}

// RenderPNG is RenderImage encoded as PNG.
func RenderPNG(payload string, opts Options) ([]byte, error) {
	img, err := RenderImage(payload, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode barcode as PNG: %w", err)
	}
	return buf.Bytes(), nil
}
