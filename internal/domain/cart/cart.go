// Package cart holds the transient selection assembled before checkout.
package cart

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/quickpay/internal/domain/product"
)

// Sentinel errors for cart adjustments.
var (
	ErrStockExceeded   = errors.New("stock exceeded")
	ErrProductDisabled = errors.New("product disabled")
)

// StockExceededError is returned when an increment would take the line past
// the product's stock. The cart is left unchanged.
type StockExceededError struct {
	ProductID string
	Name      string
	Stock     int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("only %d units of %s in stock", e.Stock, e.Name)
}

func (e *StockExceededError) Is(target error) bool {
	return target == ErrStockExceeded
}

// Line is a product and its quantity in the cart. Quantity is always > 0.
type Line struct {
	ProductID string
	Quantity  int
}

// Cart keeps lines in first-insertion order. The zero value is an empty cart.
// Cart is not safe for concurrent use.
type Cart struct {
	lines []Line
}

// Adjust changes the quantity of p by delta. Increments are rejected when
// the product is disabled or when the new quantity would exceed its stock.
// A line whose quantity drops to zero or below is removed.
func (c *Cart) Adjust(p product.Product, delta int) error {
	if delta == 0 {
		return nil
	}

	i := c.index(p.ID)
	current := 0
	if i >= 0 {
		current = c.lines[i].Quantity
	}

	if delta > 0 {
		if !p.Enabled {
			return errors.Wrapf(ErrProductDisabled, "product %s", p.ID)
		}
		if current+delta > p.Stock {
			return &StockExceededError{ProductID: p.ID, Name: p.Name, Stock: p.Stock}
		}
	}

	next := current + delta
	switch {
	case next <= 0:
		if i >= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		}
	case i >= 0:
		c.lines[i].Quantity = next
	default:
		c.lines = append(c.lines, Line{ProductID: p.ID, Quantity: next})
	}
	return nil
}

func (c *Cart) index(id string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == id {
			return i
		}
	}
	return -1
}

// Quantity returns the in-cart quantity of a product.
func (c *Cart) Quantity(productID string) int {
	if i := c.index(productID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	return append([]Line(nil), c.lines...)
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// LookupFunc resolves a product by id against the live catalog.
type LookupFunc func(id string) (product.Product, bool)

// Total sums price × quantity over all lines using the current catalog
// prices. Lines whose product disappeared contribute nothing.
func (c *Cart) Total(lookup LookupFunc) decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		p, ok := lookup(l.ProductID)
		if !ok {
			continue
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
