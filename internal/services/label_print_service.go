package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"windscapes-barcode/internal/device"
	"windscapes-barcode/internal/ean"
	"windscapes-barcode/internal/label"
	"windscapes-barcode/internal/logger"
)

const (
	MethodDevice   = "device"
	MethodFallback = "fallback"
)

// Sender delivers a command stream to a printer.
type Sender interface {
	Send(ctx context.Context, data []byte) error
}

// PrintResult is the outcome of one print request as shown to the operator.
type PrintResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Method       string `json:"method,omitempty"`
	JobID        string `json:"jobId"`
	Payload      string `json:"payload,omitempty"`
	FullCode     string `json:"fullCode,omitempty"`
	Labels       int    `json:"labels"`
	Sheets       int    `json:"sheets"`
	DocumentPath string `json:"documentPath,omitempty"`
}

type PrintOptions struct {
	PerRow   int
	PerSheet int
	// SendTimeout bounds one device session; zero means no limit.
	SendTimeout time.Duration
}

// LabelPrintService runs label jobs one at a time: encode, lay out, emit
// TSPL, send to the printer, and on a transport failure fall back once to a
// system print document.
type LabelPrintService struct {
	engine    *label.Engine
	encoder   *label.Encoder
	opts      PrintOptions
	transport Sender
	fallback  *FallbackPrinter
	slot      chan struct{}
	log       *logger.StructuredLogger
}

func NewLabelPrintService(cfg label.Config, opts PrintOptions, transport Sender, fallback *FallbackPrinter, log *logger.StructuredLogger) *LabelPrintService {
	if opts.PerRow < 1 {
		opts.PerRow = 1
	}
	if opts.PerSheet < 1 {
		opts.PerSheet = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LabelPrintService{
		engine:    label.NewEngine(cfg),
		encoder:   label.NewEncoder(cfg),
		opts:      opts,
		transport: transport,
		fallback:  fallback,
		slot:      make(chan struct{}, 1),
		log:       log,
	}
}

// PrintLabels prints quantity labels for identifier. It never returns an
// error; failures come back as Success=false with an operator-facing message.
func (s *LabelPrintService) PrintLabels(ctx context.Context, identifier string, quantity int) PrintResult {
	result := PrintResult{JobID: uuid.NewString()}
	log := s.log.With(map[string]interface{}{"job_id": result.JobID})

	select {
	case s.slot <- struct{}{}:
		defer func() { <-s.slot }()
	case <-ctx.Done():
		result.Message = "Print request cancelled while waiting for the printer"
		return result
	}

	result.Payload = ean.Encode(identifier)
	result.FullCode, _ = ean.FullCode(result.Payload)

	sheets, err := s.engine.Layout(result.Payload, quantity, s.opts.PerRow, s.opts.PerSheet)
	if err != nil {
		result.Message = fmt.Sprintf("Invalid label quantity %d", quantity)
		log.Warn("Rejected print request", map[string]interface{}{"identifier": identifier, "error": err.Error()})
		return result
	}
	result.Labels = label.Labels(sheets)
	result.Sheets = len(sheets)

	if !s.engine.Fits(sheets) {
		log.Warn("Label layout overflows the sheet", map[string]interface{}{
			"payload":   result.Payload,
			"per_row":   s.opts.PerRow,
			"per_sheet": s.opts.PerSheet,
		})
	}

	stream, err := s.encoder.Encode(sheets)
	if err != nil {
		result.Message = "Could not build printer commands: " + err.Error()
		log.Error("Failed to encode label job", err)
		return result
	}

	sendErr := s.send(ctx, stream)
	if sendErr == nil {
		result.Success = true
		result.Method = MethodDevice
		result.Message = fmt.Sprintf("Printed %d label(s) on %d sheet(s)", result.Labels, result.Sheets)
		log.LogBusinessEvent("Labels printed", "label", "print", map[string]interface{}{
			"identifier": identifier,
			"payload":    result.Payload,
			"labels":     result.Labels,
			"sheets":     result.Sheets,
			"method":     MethodDevice,
		})
		return result
	}

	cause := transportMessage(sendErr)
	log.Warn("Direct printing failed", map[string]interface{}{
		"payload": result.Payload,
		"error":   sendErr.Error(),
	})

	if s.fallback == nil {
		result.Message = cause
		return result
	}

	// Single fallback attempt; its failure is reported, never retried.
	result.Method = MethodFallback
	path, err := s.fallback.Print(ctx, result.JobID, sheets)
	result.DocumentPath = path
	switch {
	case err == nil:
		result.Success = true
		result.Message = cause + ". Sent the label document to the system print queue"
	case path != "":
		result.Message = fmt.Sprintf("%s. Could not queue the label document (%v); print %s manually", cause, err, path)
	default:
		result.Message = fmt.Sprintf("%s. Fallback printing failed: %v", cause, err)
	}

	fields := map[string]interface{}{
		"identifier": identifier,
		"payload":    result.Payload,
		"labels":     result.Labels,
		"sheets":     result.Sheets,
		"method":     MethodFallback,
		"document":   path,
	}
	if err != nil {
		log.Error("Fallback printing failed", err, fields)
	} else {
		log.LogBusinessEvent("Labels printed", "label", "print", fields)
	}
	return result
}

func (s *LabelPrintService) send(ctx context.Context, stream []byte) error {
	if s.transport == nil {
		return device.ErrUnavailable
	}
	if s.opts.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.SendTimeout)
		defer cancel()
	}
	return s.transport.Send(ctx, stream)
}

func transportMessage(err error) string {
	switch {
	case errors.Is(err, device.ErrUnavailable):
		return "Direct printer link unavailable"
	case errors.Is(err, device.ErrSelectionCancelled):
		return "Printer selection cancelled"
	case errors.Is(err, device.ErrDeviceNotFound):
		return "No label printer found"
	case errors.Is(err, device.ErrTransport):
		return "Printer write failed: " + err.Error()
	default:
		return "Printer error: " + err.Error()
	}
}
