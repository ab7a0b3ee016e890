package ean

import (
	"bytes"
	"fmt"

	"github.com/boombuler/barcode"
	bcean "github.com/boombuler/barcode/ean"
)

const (
	// Modules is the width of an EAN-13 symbol in narrow-bar units, guards included.
	Modules = 95
	// MinQuietZone is the GS1 minimum blank margin on each side, in modules.
	MinQuietZone = 11
)

// Options controls symbol geometry. BarWidth and Height are in device units,
// QuietZone is in modules.
type Options struct {
	BarWidth  int
	Height    int
	ShowText  bool
	QuietZone int
}

// DefaultOptions mirrors the on-screen preview: 2 units per module, 80 units tall.
func DefaultOptions() Options {
	return Options{
		BarWidth:  2,
		Height:    80,
		ShowText:  true,
		QuietZone: 15,
	}
}

// Bar is one contiguous dark run, in device units from the symbol's left edge.
type Bar struct {
	X     int
	Width int
}

// Symbol is a rendered EAN-13 barcode.
type Symbol struct {
	Payload   string
	Text      string
	Modules   [Modules]bool
	Bars      []Bar
	BarWidth  int
	BarHeight int
	QuietZone int
	Width     int
	Height    int
	ShowText  bool

	code barcode.Barcode
}

// TextBand returns the height reserved under the bars for the digits.
func (s *Symbol) TextBand() int {
	if !s.ShowText {
		return 0
	}
	return textBand(s.BarWidth)
}

// The band never drops below 16 units so the raster font (13px) still fits.
func textBand(barWidth int) int {
	if band := 10 * barWidth; band > 16 {
		return band
	}
	return 16
}

// Render builds the symbol for a 12-digit payload. A quiet zone narrower than
// MinQuietZone is widened to it rather than rejected.
func Render(payload string, opts Options) (*Symbol, error) {
	full, err := FullCode(payload)
	if err != nil {
		return nil, err
	}
	if opts.BarWidth < 1 {
		return nil, fmt.Errorf("%w: bar width %d", ErrInvalidOptions, opts.BarWidth)
	}
	if opts.Height <= 0 {
		return nil, fmt.Errorf("%w: height %d", ErrInvalidOptions, opts.Height)
	}
	if opts.QuietZone < MinQuietZone {
		opts.QuietZone = MinQuietZone
	}

	code, err := bcean.Encode(full)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	sym := &Symbol{
		Payload:   payload,
		Text:      full,
		Modules:   modulesOf(code),
		code:      code,
		BarWidth:  opts.BarWidth,
		BarHeight: opts.Height,
		QuietZone: opts.QuietZone,
		Width:     (2*opts.QuietZone + Modules) * opts.BarWidth,
		ShowText:  opts.ShowText,
	}
	sym.Height = opts.Height + sym.TextBand()
	sym.Bars = runs(sym.Modules, opts.QuietZone, opts.BarWidth)
	return sym, nil
}

// modulesOf reads the 95 modules of an encoded symbol; true is a dark module.
func modulesOf(code barcode.Barcode) [Modules]bool {
	var modules [Modules]bool
	for x := range modules {
		r, _, _, _ := code.At(x, 0).RGBA()
		modules[x] = r < 0x8000
	}
	return modules
}

func runs(modules [Modules]bool, quiet, unit int) []Bar {
	var bars []Bar
	for i := 0; i < Modules; {
		if !modules[i] {
			i++
			continue
		}
		start := i
		for i < Modules && modules[i] {
			i++
		}
		bars = append(bars, Bar{
			X:     (quiet + start) * unit,
			Width: (i - start) * unit,
		})
	}
	return bars
}

// SVG serialises the symbol. The output is byte-identical for identical input.
func (s *Symbol) SVG() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		s.Width, s.Height, s.Width, s.Height)
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, `<rect x="0" y="0" width="%d" height="%d" fill="#FFFFFF"/>`, s.Width, s.Height)
	buf.WriteByte('\n')
	buf.WriteString(`<g fill="#000000">`)
	buf.WriteByte('\n')
	for _, b := range s.Bars {
		fmt.Fprintf(&buf, `<rect x="%d" y="0" width="%d" height="%d"/>`, b.X, b.Width, s.BarHeight)
		buf.WriteByte('\n')
	}
	buf.WriteString(`</g>`)
	buf.WriteByte('\n')
	if s.ShowText {
		fontSize := 8 * s.BarWidth
		fmt.Fprintf(&buf, `<text x="%d" y="%d" text-anchor="middle" font-family="monospace" font-size="%d">%s</text>`,
			s.Width/2, s.BarHeight+s.TextBand()-s.BarWidth, fontSize, s.Text)
		buf.WriteByte('\n')
	}
	buf.WriteString(`</svg>`)
	buf.WriteByte('\n')
	return buf.Bytes()
}
