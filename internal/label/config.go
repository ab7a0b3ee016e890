package label

import (
	"errors"
	"math"

	"windscapes-barcode/internal/ean"
)

var ErrInvalidQuantity = errors.New("invalid label quantity")

// SymbologyEAN13 is the TSPL type name for EAN-13.
const SymbologyEAN13 = "EAN13"

// Config describes the label stock and the printer it is fed through. Lengths
// are millimetres unless the field name says dots.
type Config struct {
	WidthMM       float64
	HeightMM      float64
	GapMM         float64
	DPI           int
	NarrowDots    int
	WideDots      int
	BarHeightMM   float64
	SpacingMM     float64
	MarginLeftMM  float64
	MarginTopMM   float64
	HumanReadable bool
	Density       int
	Speed         int
	Direction     int
	Symbology     string
}

// DefaultConfig is a 70x35 mm label on a 203 dpi TSC desktop printer.
func DefaultConfig() Config {
	return Config{
		WidthMM:      70,
		HeightMM:     35,
		GapMM:        2,
		DPI:          203,
		NarrowDots:   2,
		WideDots:     4,
		BarHeightMM:  25,
		SpacingMM:    3,
		MarginLeftMM: 15,
		MarginTopMM:  5,
		Density:      8,
		Speed:        4,
		Direction:    1,
		Symbology:    SymbologyEAN13,
	}
}

// MMToDots converts millimetres to printer dots: round(mm * dpi / 25.4).
func MMToDots(mm float64, dpi int) int {
	return int(math.Round(mm * float64(dpi) / 25.4))
}

// DotsToMM is the inverse of MMToDots, without rounding.
func DotsToMM(dots int, dpi int) float64 {
	return float64(dots) * 25.4 / float64(dpi)
}

func (c Config) dots(mm float64) int {
	return MMToDots(mm, c.DPI)
}

// SymbolWidthDots is the printed width of the 95 modules.
func (c Config) SymbolWidthDots() int {
	return ean.Modules * c.NarrowDots
}

// QuietZoneDots is the GS1 minimum quiet zone at the configured module width.
func (c Config) QuietZoneDots() int {
	return ean.MinQuietZone * c.NarrowDots
}

// BarHeightDots is the bar height sent to the printer.
func (c Config) BarHeightDots() int {
	return c.dots(c.BarHeightMM)
}

// SymbolHeightDots includes the human-readable line when it is enabled.
func (c Config) SymbolHeightDots() int {
	h := c.BarHeightDots()
	if c.HumanReadable {
		h += c.dots(readableTextMM)
	}
	return h
}

// readableTextMM is the band the printer's built-in font takes under the bars.
const readableTextMM = 3
