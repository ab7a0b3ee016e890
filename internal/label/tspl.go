package label

import (
	"bytes"
	"fmt"
	"strconv"

	"windscapes-barcode/internal/ean"
)

// Encoder turns a layout into a TSPL command stream.
type Encoder struct {
	cfg Config
}

func NewEncoder(cfg Config) *Encoder {
	return &Encoder{cfg: cfg}
}

// Encode emits the job: buffer clear and media setup, then one BARCODE per
// placement followed by a PRINT. A run of identical sheets is drawn once and
// printed with a single PRINT carrying the run's sheet count, so a job whose
// last sheet is full ends in one PRINT n,1. The printer computes the check
// digit, so placements carry the 12-digit payload. Every payload is checked
// before anything is written; on error no bytes are returned.
func (e *Encoder) Encode(sheets []Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: empty layout", ErrInvalidQuantity)
	}
	for _, s := range sheets {
		if len(s.Placements) == 0 {
			return nil, fmt.Errorf("%w: sheet %d is empty", ErrInvalidQuantity, s.Number)
		}
		for _, p := range s.Placements {
			if !ean.Valid(p.Payload) {
				return nil, fmt.Errorf("%w: %q on sheet %d", ean.ErrInvalidPayload, p.Payload, s.Number)
			}
		}
	}

	var buf bytes.Buffer
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&buf, format, args...)
		buf.WriteByte('\n')
	}

	line("CLS")
	line("SIZE %s mm, %s mm", mm(e.cfg.WidthMM), mm(e.cfg.HeightMM))
	line("GAP %s mm, 0 mm", mm(e.cfg.GapMM))
	line("DIRECTION %d", e.cfg.Direction)
	line("REFERENCE 0,0")
	line("OFFSET 0 mm")
	line("DENSITY %d", e.cfg.Density)
	line("SPEED %d", e.cfg.Speed)
	line("SET TEAR ON")
	line("SET PEEL OFF")
	line("SET CUTTER OFF")

	readable := 0
	if e.cfg.HumanReadable {
		readable = 1
	}
	symbology := e.cfg.Symbology
	if symbology == "" {
		symbology = SymbologyEAN13
	}

	for i := 0; i < len(sheets); {
		run := 1
		for i+run < len(sheets) && sameContent(sheets[i], sheets[i+run]) {
			run++
		}
		if i > 0 {
			line("CLS")
		}
		for _, p := range sheets[i].Placements {
			line(`BARCODE %d,%d,"%s",%d,%d,0,%d,%d,"%s"`,
				p.X, p.Y, symbology, e.cfg.BarHeightDots(), readable,
				e.cfg.NarrowDots, e.cfg.WideDots, p.Payload)
		}
		line("PRINT %d,1", run)
		i += run
	}

	return buf.Bytes(), nil
}

// sameContent reports whether two sheets draw the same symbols in the same
// places.
func sameContent(a, b Sheet) bool {
	if len(a.Placements) != len(b.Placements) {
		return false
	}
	for i := range a.Placements {
		pa, pb := a.Placements[i], b.Placements[i]
		if pa.X != pb.X || pa.Y != pb.Y || pa.Payload != pb.Payload {
			return false
		}
	}
	return true
}

func mm(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
