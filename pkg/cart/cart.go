// Package cart owns the shopping cart: ordered line items keyed by product id,
// with a write-through snapshot in the persistent store.
package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"julianmorley.ca/con-plar/petstore/pkg/models"
	"julianmorley.ca/con-plar/petstore/pkg/store"
)

// Cart is safe for concurrent use. Every mutation holds the lock through its
// store write, so snapshots land in mutation order.
type Cart struct {
	mu    sync.RWMutex
	store store.Store
	lines []models.CartLine
}

// Summary is the read model handed to the UI.
type Summary struct {
	Items     []models.CartLine `json:"items"`
	ItemCount int               `json:"item_count"`
	Total     decimal.Decimal   `json:"total"`
}

// New rehydrates the cart from s. A missing, unreadable or corrupt snapshot
// yields an empty cart.
func New(ctx context.Context, s store.Store) *Cart {
	c := &Cart{store: s}

	var saved []models.CartLine
	ok, err := store.LoadJSON(ctx, s, store.KeyCart, &saved)
	if err != nil {
		log.WithError(err).WithField("key", store.KeyCart).Warn("Could not rehydrate cart, starting empty")
		return c
	}
	if !ok {
		return c
	}

	seen := make(map[string]bool, len(saved))
	for _, line := range saved {
		if line.ID == "" || line.Quantity <= 0 || seen[line.ID] {
			log.WithFields(log.Fields{"id": line.ID, "quantity": line.Quantity}).Warn("Dropping invalid cart line from snapshot")
			continue
		}
		seen[line.ID] = true
		c.lines = append(c.lines, line)
	}
	return c
}

// AddToCart increments the quantity of an existing line or appends a new one
// with quantity 1. The in-memory change always happens; the returned error
// only reports a failed persistence write.
func (c *Cart) AddToCart(ctx context.Context, product models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(product.ID); i >= 0 {
		c.lines[i].Quantity++
	} else {
		c.lines = append(c.lines, models.NewCartLine(product, 1))
	}
	return c.persist(ctx)
}

// UpdateQuantity sets the quantity of line id. A quantity <= 0 removes the
// line. Unknown ids are ignored.
func (c *Cart) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return nil
	}
	if quantity <= 0 {
		c.removeAt(i)
	} else {
		c.lines[i].Quantity = quantity
	}
	return c.persist(ctx)
}

// RemoveFromCart drops line id if present.
func (c *Cart) RemoveFromCart(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return nil
	}
	c.removeAt(i)
	return c.persist(ctx)
}

// Total returns sum(price x quantity) over the current lines.
func (c *Cart) Total() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return total(c.lines)
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []models.CartLine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// ItemCount returns the number of units across all lines.
func (c *Cart) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var count int
	for _, line := range c.lines {
		count += line.Quantity
	}
	return count
}

func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}

func (c *Cart) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexOf(id) >= 0
}

// Summary returns lines, unit count and total from one consistent read.
func (c *Cart) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]models.CartLine, len(c.lines))
	copy(items, c.lines)
	var count int
	for _, line := range c.lines {
		count += line.Quantity
	}
	return Summary{Items: items, ItemCount: count, Total: total(c.lines)}
}

func total(lines []models.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Subtotal())
	}
	return sum
}

func (c *Cart) indexOf(id string) int {
	for i := range c.lines {
		if c.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
}

// persist writes the full snapshot. Callers hold c.mu.
func (c *Cart) persist(ctx context.Context) error {
	snapshot := c.lines
	if snapshot == nil {
		snapshot = []models.CartLine{}
	}
	if err := store.SaveJSON(ctx, c.store, store.KeyCart, snapshot); err != nil {
		log.WithError(err).WithField("lines", len(snapshot)).Error("Failed to persist cart")
		return err
	}
	return nil
}
