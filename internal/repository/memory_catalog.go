package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"windscapes-barcode/internal/models"
)

// MemoryCatalog keeps products in memory, optionally backed by an ERP backup
// file ({"inventory": [...], "orders": [...], ...}). Writes go back to the
// file with every other top-level key preserved.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products []models.Product
	nextID   uint
	path     string
	extra    map[string]json.RawMessage
}

func NewMemoryCatalog(products ...models.Product) *MemoryCatalog {
	c := &MemoryCatalog{extra: map[string]json.RawMessage{}}
	for _, p := range products {
		c.add(p)
	}
	return c
}

// LoadMemoryCatalog reads path when it exists; a missing file starts empty
// and is created on the first write.
func LoadMemoryCatalog(path string) (*MemoryCatalog, error) {
	c := NewMemoryCatalog()
	c.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	var items []backupItem
	if raw, ok := doc["inventory"]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to parse inventory in %s: %w", path, err)
		}
	}
	delete(doc, "inventory")
	c.extra = doc

	for _, it := range items {
		c.add(it.product())
	}
	return c, nil
}

// backupItem accepts the loosely typed records the browser app exported.
type backupItem struct {
	ID       flexString  `json:"id"`
	Name     string      `json:"name"`
	Quantity flexFloat   `json:"quantity"`
	Price    flexFloat   `json:"price"`
	Rate     flexFloat   `json:"rate"`
	Size     *flexString `json:"size,omitempty"`
	Nursery  *flexString `json:"nursery,omitempty"`
}

func (b backupItem) product() models.Product {
	p := models.Product{
		Identifier: string(b.ID),
		Name:       b.Name,
		Quantity:   int(b.Quantity),
		Price:      float64(b.Price),
		Rate:       float64(b.Rate),
	}
	if b.Size != nil {
		s := string(*b.Size)
		p.Size = &s
	}
	if b.Nursery != nil {
		s := string(*b.Nursery)
		p.Nursery = &s
	}
	return p
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func (c *MemoryCatalog) add(p models.Product) {
	c.nextID++
	p.ProductID = c.nextID
	c.products = append(c.products, p)
}

func (c *MemoryCatalog) indexOf(identifier string) int {
	for i := range c.products {
		if c.products[i].Identifier == identifier {
			return i
		}
	}
	return -1
}

func (c *MemoryCatalog) ListProducts(context.Context) ([]models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Product, len(c.products))
	copy(out, c.products)
	return out, nil
}

func (c *MemoryCatalog) GetByIdentifier(_ context.Context, identifier string) (*models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexOf(identifier)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, identifier)
	}
	p := c.products[i]
	return &p, nil
}

func (c *MemoryCatalog) Identifiers(context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.products))
	for _, p := range c.products {
		ids = append(ids, p.Identifier)
	}
	return ids, nil
}

func (c *MemoryCatalog) Create(_ context.Context, product *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexOf(product.Identifier) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, product.Identifier)
	}
	p := *product
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.ProductID = c.nextID + 1

	next := make([]models.Product, len(c.products), len(c.products)+1)
	copy(next, c.products)
	next = append(next, p)
	if err := c.persist(next); err != nil {
		return err
	}

	c.products = next
	c.nextID = p.ProductID
	*product = p
	return nil
}

// AdjustQuantity changes stock only once the backing file has been written.
func (c *MemoryCatalog) AdjustQuantity(_ context.Context, identifier string, delta int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(identifier)
	if i < 0 {
		return 0, fmt.Errorf("%w: %s", ErrProductNotFound, identifier)
	}
	current := c.products[i]
	if current.Quantity+delta < 0 {
		return current.Quantity, fmt.Errorf("%w: %s has %d", ErrInsufficientStock, identifier, current.Quantity)
	}

	updated := current
	updated.Quantity += delta
	updated.UpdatedAt = time.Now().UTC()

	next := make([]models.Product, len(c.products))
	copy(next, c.products)
	next[i] = updated
	if err := c.persist(next); err != nil {
		return current.Quantity, err
	}

	c.products = next
	return updated.Quantity, nil
}

// persist rewrites the backing file with products through a temp file and
// rename. Callers hold the write lock.
func (c *MemoryCatalog) persist(products []models.Product) error {
	if c.path == "" {
		return nil
	}

	doc := make(map[string]interface{}, len(c.extra)+1)
	for k, v := range c.extra {
		doc[k] = v
	}
	doc["inventory"] = products

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}
