package services

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/jung-kurt/gofpdf"

	"windscapes-barcode/internal/ean"
	"windscapes-barcode/internal/label"
)

// FallbackDocument is the print-ready rendition of a label job for the
// operating system's print queue.
type FallbackDocument struct {
	PDF   []byte
	HTML  []byte
	Pages int
}

// DocumentBuilder draws label sheets at their physical size: one page per
// sheet, symbols at their layout positions and nothing else.
type DocumentBuilder struct {
	cfg label.Config
}

func NewDocumentBuilder(cfg label.Config) *DocumentBuilder {
	return &DocumentBuilder{cfg: cfg}
}

func (b *DocumentBuilder) Build(sheets []label.Sheet) (*FallbackDocument, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets", label.ErrInvalidQuantity)
	}

	placed, err := b.render(sheets)
	if err != nil {
		return nil, err
	}

	pdfBytes, pages, err := b.pdf(placed)
	if err != nil {
		return nil, err
	}
	htmlBytes, err := b.html(placed)
	if err != nil {
		return nil, err
	}

	return &FallbackDocument{PDF: pdfBytes, HTML: htmlBytes, Pages: pages}, nil
}

const pointsPerMM = 72 / 25.4

type placedSymbol struct {
	sym *ean.Symbol
	// Left edge of the quiet zone and top of the bars, in dots.
	x, y int
}

func (b *DocumentBuilder) render(sheets []label.Sheet) ([][]placedSymbol, error) {
	opts := ean.Options{
		BarWidth:  b.cfg.NarrowDots,
		Height:    b.cfg.BarHeightDots(),
		ShowText:  b.cfg.HumanReadable,
		QuietZone: ean.MinQuietZone,
	}

	out := make([][]placedSymbol, 0, len(sheets))
	cache := map[string]*ean.Symbol{}
	for _, s := range sheets {
		page := make([]placedSymbol, 0, len(s.Placements))
		for _, p := range s.Placements {
			sym, ok := cache[p.Payload]
			if !ok {
				var err error
				sym, err = ean.Render(p.Payload, opts)
				if err != nil {
					return nil, err
				}
				cache[p.Payload] = sym
			}
			page = append(page, placedSymbol{
				sym: sym,
				x:   p.X - sym.QuietZone*sym.BarWidth,
				y:   p.Y,
			})
		}
		out = append(out, page)
	}
	return out, nil
}

func (b *DocumentBuilder) mm(dots int) float64 {
	return label.DotsToMM(dots, b.cfg.DPI)
}

func (b *DocumentBuilder) pdf(pages [][]placedSymbol) ([]byte, int, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: b.cfg.WidthMM, Ht: b.cfg.HeightMM},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFillColor(0, 0, 0)
	pdf.SetTextColor(0, 0, 0)

	for _, page := range pages {
		pdf.AddPage()
		for _, ps := range page {
			sym := ps.sym
			for _, bar := range sym.Bars {
				pdf.Rect(b.mm(ps.x+bar.X), b.mm(ps.y), b.mm(bar.Width), b.mm(sym.BarHeight), "F")
			}
			if sym.ShowText {
				band := b.mm(sym.TextBand())
				pdf.SetFont("Helvetica", "", band*pointsPerMM*0.8)
				w := pdf.GetStringWidth(sym.Text)
				pdf.Text(b.mm(ps.x)+(b.mm(sym.Width)-w)/2, b.mm(ps.y+sym.BarHeight)+band*0.85, sym.Text)
			}
		}
	}

	pageCount := pdf.PageCount()
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, fmt.Errorf("failed to generate PDF with gofpdf: %w", err)
	}

	pdfBytes := buf.Bytes()
	if len(pdfBytes) < 4 || string(pdfBytes[:4]) != "%PDF" {
		return nil, 0, fmt.Errorf("gofpdf did not generate valid PDF content")
	}
	return pdfBytes, pageCount, nil
}

var sheetTemplate = template.Must(template.New("labels").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Labels</title>
<style>
@page { size: {{.Width}}mm {{.Height}}mm; margin: 0; }
html, body { margin: 0; padding: 0; background: #ffffff; }
.sheet { position: relative; width: {{.Width}}mm; height: {{.Height}}mm; overflow: hidden; page-break-after: always; }
.sheet:last-child { page-break-after: auto; }
.sheet svg { position: absolute; display: block; }
</style>
</head>
<body>
{{- range .Sheets}}
<div class="sheet">
{{- range .}}
<div style="position:absolute;left:{{.Left}}mm;top:{{.Top}}mm;width:{{.Width}}mm;height:{{.Height}}mm">{{.SVG}}</div>
{{- end}}
</div>
{{- end}}
</body>
</html>
`))

type htmlSymbol struct {
	Left, Top, Width, Height string
	SVG                      template.HTML
}

func (b *DocumentBuilder) html(pages [][]placedSymbol) ([]byte, error) {
	data := struct {
		Width, Height string
		Sheets        [][]htmlSymbol
	}{
		Width:  formatMM(b.cfg.WidthMM),
		Height: formatMM(b.cfg.HeightMM),
	}

	for _, page := range pages {
		var syms []htmlSymbol
		for _, ps := range page {
			syms = append(syms, htmlSymbol{
				Left:   formatMM(b.mm(ps.x)),
				Top:    formatMM(b.mm(ps.y)),
				Width:  formatMM(b.mm(ps.sym.Width)),
				Height: formatMM(b.mm(ps.sym.Height)),
				SVG:    template.HTML(sizedSVG(ps.sym)),
			})
		}
		data.Sheets = append(data.Sheets, syms)
	}

	var buf bytes.Buffer
	if err := sheetTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render label HTML: %w", err)
	}
	return buf.Bytes(), nil
}

// sizedSVG makes the symbol fill its positioned box.
func sizedSVG(sym *ean.Symbol) []byte {
	svg := sym.SVG()
	return bytes.Replace(svg, []byte("<svg "), []byte(`<svg style="width:100%;height:100%" preserveAspectRatio="none" `), 1)
}

func formatMM(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
