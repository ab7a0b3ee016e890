package scan

import (
	"fmt"
	"sync"

	"windscapes-barcode/internal/models"
)

type ScanStatus string

const (
	StatusAccepted        ScanStatus = "accepted"
	StatusNotInOrder      ScanStatus = "not_in_order"
	StatusAlreadyComplete ScanStatus = "already_complete"
)

// OrderLine is one product an order needs, by identifier.
type OrderLine struct {
	Identifier string `json:"identifier"`
	Needed     int    `json:"needed"`
}

type LineProgress struct {
	Identifier string `json:"identifier"`
	Needed     int    `json:"needed"`
	Scanned    int    `json:"scanned"`
}

func (l LineProgress) Complete() bool {
	return l.Scanned >= l.Needed
}

type ScanResult struct {
	Status       ScanStatus   `json:"status"`
	Message      string       `json:"message"`
	Line         LineProgress `json:"line"`
	LineComplete bool         `json:"lineComplete"`
}

// OrderSession counts scanned items against an order while it is picked.
type OrderSession struct {
	mu    sync.Mutex
	order []string
	lines map[string]*LineProgress
}

func NewOrderSession(lines []OrderLine) *OrderSession {
	s := &OrderSession{lines: make(map[string]*LineProgress, len(lines))}
	for _, l := range lines {
		if existing, ok := s.lines[l.Identifier]; ok {
			existing.Needed += l.Needed
			continue
		}
		s.order = append(s.order, l.Identifier)
		s.lines[l.Identifier] = &LineProgress{Identifier: l.Identifier, Needed: l.Needed}
	}
	return s
}

// Scan records one unit of product against the order.
func (s *OrderSession) Scan(product models.Product) ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[product.Identifier]
	if !ok {
		return ScanResult{Status: StatusNotInOrder, Message: "Product not in this order"}
	}
	if line.Complete() {
		return ScanResult{
			Status:       StatusAlreadyComplete,
			Message:      "Already scanned enough of this item",
			Line:         *line,
			LineComplete: true,
		}
	}

	line.Scanned++
	return ScanResult{
		Status:       StatusAccepted,
		Message:      fmt.Sprintf("Scanned: %s (%d/%d)", product.Name, line.Scanned, line.Needed),
		Line:         *line,
		LineComplete: line.Complete(),
	}
}

// Progress returns every line in order of first appearance.
func (s *OrderSession) Progress() []LineProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LineProgress, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.lines[id])
	}
	return out
}

// Totals returns units scanned and needed across all lines.
func (s *OrderSession) Totals() (scanned, needed int) {
	for _, l := range s.Progress() {
		scanned += l.Scanned
		needed += l.Needed
	}
	return scanned, needed
}

func (s *OrderSession) Complete() bool {
	for _, l := range s.Progress() {
		if !l.Complete() {
			return false
		}
	}
	return true
}
