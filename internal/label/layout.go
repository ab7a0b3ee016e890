package label

import (
	"fmt"
)

// Placement is one symbol on a sheet. X and Y are printer dots from the
// sheet's top-left corner.
type Placement struct {
	Payload string
	Index   int
	Row     int
	Column  int
	X       int
	Y       int
}

// Sheet is one physical label with its placements in row-major order.
type Sheet struct {
	Number     int
	Placements []Placement
}

// MaxQuantity caps a single print request.
const MaxQuantity = 10000

// Engine lays symbols out on sheets.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// MarginLeftDots reserves at least the mandatory quiet zone.
func (e *Engine) MarginLeftDots() int {
	return max(e.cfg.dots(e.cfg.MarginLeftMM), e.cfg.QuietZoneDots())
}

func (e *Engine) MarginTopDots() int {
	return e.cfg.dots(e.cfg.MarginTopMM)
}

// ColumnPitchDots keeps a full quiet zone between neighbouring symbols even
// when the configured spacing is tighter.
func (e *Engine) ColumnPitchDots() int {
	return e.cfg.SymbolWidthDots() + max(e.cfg.dots(e.cfg.SpacingMM), e.cfg.QuietZoneDots())
}

func (e *Engine) RowPitchDots() int {
	return e.cfg.SymbolHeightDots() + e.cfg.dots(e.cfg.SpacingMM)
}

// Layout places quantity copies of payload on as many sheets as needed,
// perSheet per sheet and at most perRow per row.
func (e *Engine) Layout(payload string, quantity, perRow, perSheet int) ([]Sheet, error) {
	if quantity < 1 || quantity > MaxQuantity {
		return nil, fmt.Errorf("%w: quantity %d, want 1 to %d", ErrInvalidQuantity, quantity, MaxQuantity)
	}
	if perRow < 1 || perSheet < 1 {
		return nil, fmt.Errorf("%w: %d per row, %d per sheet", ErrInvalidQuantity, perRow, perSheet)
	}
	perRow = min(perRow, perSheet)

	sheetCount := quantity / perSheet
	if quantity%perSheet != 0 {
		sheetCount++
	}
	sheets := make([]Sheet, 0, sheetCount)

	left, top := e.MarginLeftDots(), e.MarginTopDots()
	colPitch, rowPitch := e.ColumnPitchDots(), e.RowPitchDots()

	remaining := quantity
	index := 0
	for n := 1; n <= sheetCount; n++ {
		onSheet := min(remaining, perSheet)
		sheet := Sheet{Number: n, Placements: make([]Placement, 0, onSheet)}
		for i := 0; i < onSheet; i++ {
			row, col := i/perRow, i%perRow
			sheet.Placements = append(sheet.Placements, Placement{
				Payload: payload,
				Index:   index,
				Row:     row,
				Column:  col,
				X:       left + col*colPitch,
				Y:       top + row*rowPitch,
			})
			index++
		}
		remaining -= onSheet
		sheets = append(sheets, sheet)
	}

	return sheets, nil
}

// Fits reports whether every placement, with its trailing quiet zone, lies
// inside the sheet.
func (e *Engine) Fits(sheets []Sheet) bool {
	width, height := e.cfg.dots(e.cfg.WidthMM), e.cfg.dots(e.cfg.HeightMM)
	for _, s := range sheets {
		for _, p := range s.Placements {
			if p.X+e.cfg.SymbolWidthDots()+e.cfg.QuietZoneDots() > width {
				return false
			}
			if p.Y+e.cfg.SymbolHeightDots() > height {
				return false
			}
		}
	}
	return true
}

// Labels counts the placements across sheets.
func Labels(sheets []Sheet) int {
	n := 0
	for _, s := range sheets {
		n += len(s.Placements)
	}
	return n
}
