package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"windscapes-barcode/internal/label"
	"windscapes-barcode/internal/logger"
)

// FallbackPrinter writes a label job as PDF and HTML and queues the PDF on
// the system printer.
type FallbackPrinter struct {
	builder   *DocumentBuilder
	spooler   Spooler
	outputDir string
	log       *logger.StructuredLogger
}

func NewFallbackPrinter(builder *DocumentBuilder, spooler Spooler, outputDir string, log *logger.StructuredLogger) *FallbackPrinter {
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FallbackPrinter{builder: builder, spooler: spooler, outputDir: outputDir, log: log}
}

// Print returns the PDF path whenever the document was written, including
// when spooling fails, so the operator can print it by hand.
func (f *FallbackPrinter) Print(ctx context.Context, jobID string, sheets []label.Sheet) (string, error) {
	doc, err := f.builder.Build(sheets)
	if err != nil {
		return "", fmt.Errorf("failed to build label document: %w", err)
	}

	if err := os.MkdirAll(f.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", f.outputDir, err)
	}
	base := filepath.Join(f.outputDir, "labels-"+jobID)
	pdfPath := base + ".pdf"
	if err := os.WriteFile(pdfPath, doc.PDF, 0644); err != nil {
		return "", fmt.Errorf("failed to write label PDF: %w", err)
	}
	if err := os.WriteFile(base+".html", doc.HTML, 0644); err != nil {
		return pdfPath, fmt.Errorf("failed to write label HTML: %w", err)
	}

	f.log.Info("Label document written", map[string]interface{}{
		"job_id": jobID,
		"path":   pdfPath,
		"pages":  doc.Pages,
	})

	if f.spooler == nil {
		return pdfPath, ErrNoSpooler
	}
	if err := f.spooler.Print(ctx, pdfPath); err != nil {
		return pdfPath, err
	}
	return pdfPath, nil
}
