package cart

import (
	"errors"
	"fmt"

	"github.com/noah-isme/kasir/internal/pricing"
)

var (
	// ErrInvalidQuantity is returned when a quantity is zero or negative.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrOutOfStock is a soft warning: the product has no stock and no line was created.
	ErrOutOfStock = errors.New("product out of stock")
	// ErrUnknownProduct is returned when SetQuantity targets a product the cart has never seen.
	ErrUnknownProduct = errors.New("unknown product")
)

// Product is the catalog snapshot a cart line is built from.
type Product struct {
	ID      string        `json:"id"`
	StoreID string        `json:"storeId"`
	Name    string        `json:"name"`
	Price   pricing.Money `json:"price"`
	Stock   int           `json:"stock"`
}

// Line is a single cart entry. UnitPrice is captured when the line is created.
type Line struct {
	ProductID string
	Name      string
	UnitPrice pricing.Money
	Quantity  int
}

// Total returns UnitPrice * Quantity.
func (l Line) Total() pricing.Money {
	return l.UnitPrice * pricing.Money(l.Quantity)
}

// Cart is the mutable selection of one cashier session. It is not safe for
// concurrent use and must never be shared between sessions.
type Cart struct {
	lines    []Line
	products map[string]Product
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{products: make(map[string]Product)}
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) remember(p Product) {
	if c.products == nil {
		c.products = make(map[string]Product)
	}
	c.products[p.ID] = p
}

// AddItem adds qty units of product, merging into an existing line. The
// resulting quantity never exceeds product.Stock. A product without stock is
// rejected with ErrOutOfStock and leaves the cart unchanged.
func (c *Cart) AddItem(product Product, qty int) (Line, error) {
	if product.ID == "" {
		return Line{}, fmt.Errorf("%w: product id is required", ErrUnknownProduct)
	}
	if qty <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	c.remember(product)
	if product.Stock <= 0 {
		return Line{}, ErrOutOfStock
	}
	if i := c.index(product.ID); i >= 0 {
		c.lines[i].Quantity = min(c.lines[i].Quantity+qty, product.Stock)
		return c.lines[i], nil
	}
	line := Line{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  min(qty, product.Stock),
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// Add is AddItem with a quantity of one.
func (c *Cart) Add(product Product) (Line, error) {
	return c.AddItem(product, 1)
}

// RemoveItem deletes the line for productID if present.
func (c *Cart) RemoveItem(productID string) {
	if i := c.index(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// SetQuantity sets the quantity of a known product, clamped to its stock.
// The line is created when the product is known but not yet in the cart.
func (c *Cart) SetQuantity(productID string, qty int) (Line, error) {
	if qty <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	product, ok := c.products[productID]
	if !ok {
		return Line{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	if product.Stock <= 0 {
		return Line{}, ErrOutOfStock
	}
	qty = min(qty, product.Stock)
	if i := c.index(productID); i >= 0 {
		c.lines[i].Quantity = qty
		return c.lines[i], nil
	}
	line := Line{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  qty,
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// Refresh updates the remembered product snapshot and re-clamps an existing
// line to the new stock. The line keeps its original unit price. A line whose
// product ran out of stock is removed; the returned bool reports whether the
// line changed.
func (c *Cart) Refresh(product Product) bool {
	c.remember(product)
	i := c.index(product.ID)
	if i < 0 {
		return false
	}
	if product.Stock <= 0 {
		c.RemoveItem(product.ID)
		return true
	}
	if c.lines[i].Quantity > product.Stock {
		c.lines[i].Quantity = product.Stock
		return true
	}
	return false
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Subtotal returns the sum of all line totals.
func (c *Cart) Subtotal() pricing.Money {
	return pricing.Subtotal(c.PricingItems())
}

// PricingItems converts the lines for the pricing calculator.
func (c *Cart) PricingItems() []pricing.Item {
	items := make([]pricing.Item, 0, len(c.lines))
	for _, l := range c.lines {
		items = append(items, pricing.Item{Qty: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return items
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns the line for productID.
func (c *Cart) Line(productID string) (Line, bool) {
	if i := c.index(productID); i >= 0 {
		return c.lines[i], true
	}
	return Line{}, false
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}
