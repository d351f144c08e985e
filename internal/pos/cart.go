package pos

import (
	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

// Product carries the catalog fields the terminal UI already holds when an
// item is rung up.
type Product struct {
	ID        string
	Name      string
	UnitPrice pricing.Money
	ImageURL  string
}

// LineItem is one cart row. Lines are owned exclusively by the Cart; callers
// only ever see copies.
type LineItem struct {
	ID        uuid.UUID
	ProductID string
	Name      string
	UnitPrice pricing.Money
	Qty       int
	Size      string
	Color     string
	ImageURL  string
	Discount  *pricing.Discount
}

// Cart owns the ordered line item collection and the single optional
// cart-wide discount. It is not safe for concurrent use; the owning Session
// serialises access.
type Cart struct {
	lines          []*LineItem
	globalDiscount *pricing.Discount
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

// AddItem merges into an existing line when product, size and color all match,
// otherwise appends a new line with quantity one. Existing line order is
// preserved; new lines go to the end.
func (c *Cart) AddItem(p Product, size, color string) LineItem {
	for _, line := range c.lines {
		if line.ProductID == p.ID && line.Size == size && line.Color == color {
			line.Qty++
			return *line
		}
	}
	line := &LineItem{
		ID:        uuid.New(),
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Qty:       1,
		Size:      size,
		Color:     color,
		ImageURL:  p.ImageURL,
	}
	c.lines = append(c.lines, line)
	return *line
}

// ChangeQuantity adjusts a line quantity by delta, flooring at one. Dropping a
// line entirely goes through RemoveItem. Unknown ids are ignored.
func (c *Cart) ChangeQuantity(lineID uuid.UUID, delta int) {
	line := c.find(lineID)
	if line == nil {
		return
	}
	line.Qty += delta
	if line.Qty < 1 {
		line.Qty = 1
	}
}

// RemoveItem deletes the line with the given id if present.
func (c *Cart) RemoveItem(lineID uuid.UUID) {
	for i, line := range c.lines {
		if line.ID == lineID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Clear empties the cart and drops the global discount.
func (c *Cart) Clear() {
	c.lines = nil
	c.globalDiscount = nil
}

// SetItemDiscount attaches a discount to one line, replacing any existing one.
// It reports whether the line was found.
func (c *Cart) SetItemDiscount(lineID uuid.UUID, d pricing.Discount) bool {
	line := c.find(lineID)
	if line == nil {
		return false
	}
	copied := d
	line.Discount = &copied
	return true
}

// ClearItemDiscount removes the discount from one line.
func (c *Cart) ClearItemDiscount(lineID uuid.UUID) bool {
	line := c.find(lineID)
	if line == nil {
		return false
	}
	line.Discount = nil
	return true
}

// SetGlobalDiscount replaces the cart-wide discount. Passing nil clears it.
func (c *Cart) SetGlobalDiscount(d *pricing.Discount) {
	if d == nil {
		c.globalDiscount = nil
		return
	}
	copied := *d
	c.globalDiscount = &copied
}

// GlobalDiscount returns a copy of the cart-wide discount if one is set.
func (c *Cart) GlobalDiscount() *pricing.Discount {
	if c.globalDiscount == nil {
		return nil
	}
	copied := *c.globalDiscount
	return &copied
}

// Lines returns copies of the cart rows in insertion order.
func (c *Cart) Lines() []LineItem {
	out := make([]LineItem, 0, len(c.lines))
	for _, line := range c.lines {
		copied := *line
		if line.Discount != nil {
			d := *line.Discount
			copied.Discount = &d
		}
		out = append(out, copied)
	}
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Totals derives the current cart totals. Derivation is pure and recomputed on
// every call; nothing is cached.
func (c *Cart) Totals() pricing.Summary {
	return pricing.Compute(c.pricingLines(), c.globalDiscount)
}

func (c *Cart) pricingLines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.lines))
	for _, line := range c.lines {
		lines = append(lines, pricing.Line{Qty: line.Qty, UnitPrice: line.UnitPrice, Discount: line.Discount})
	}
	return lines
}

func (c *Cart) find(lineID uuid.UUID) *LineItem {
	for _, line := range c.lines {
		if line.ID == lineID {
			return line
		}
	}
	return nil
}
