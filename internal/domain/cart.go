package domain

import (
	"math"
	"slices"
)

// MaxQuantity is the most units of one product a cart line can hold.
const MaxQuantity = 99

// CartItem is a product snapshot plus the quantity in the cart.
type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

// Subtotal returns price times quantity.
func (i CartItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Cart is an ordered list of items, at most one per product ID, each with a
// quantity between 1 and MaxQuantity. Items keep the order in which they were first added.
//
// Every operation is total: unknown IDs are ignored, nothing returns an error.
type Cart struct {
	Items []CartItem `json:"items"`
}

func (c *Cart) indexOf(productID int) int {
	return slices.IndexFunc(c.Items, func(it CartItem) bool { return it.ID == productID })
}

// Add puts one unit of p into the cart. An existing line is incremented in
// place, up to MaxQuantity; otherwise a new line with quantity 1 is appended.
func (c *Cart) Add(p Product) {
	if i := c.indexOf(p.ID); i >= 0 {
		c.Items[i].Quantity = clampQuantity(saturatingAdd(c.Items[i].Quantity, 1))
		return
	}
	c.Items = append(c.Items, CartItem{Product: p, Quantity: 1})
}

// Remove deletes the line for productID, if any.
func (c *Cart) Remove(productID int) {
	if i := c.indexOf(productID); i >= 0 {
		c.Items = slices.Delete(c.Items, i, i+1)
	}
}

// UpdateQuantity changes the quantity of productID by delta and clamps the
// result to [1, MaxQuantity]. Any delta is accepted. It never removes a
// line; use Remove for that.
func (c *Cart) UpdateQuantity(productID, delta int) {
	i := c.indexOf(productID)
	if i < 0 {
		return
	}
	c.Items[i].Quantity = clampQuantity(saturatingAdd(c.Items[i].Quantity, delta))
}

// TotalPrice sums price times quantity over all lines. It is recomputed on
// every call.
func (c *Cart) TotalPrice() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.Subtotal()
	}
	return total
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
}

// Find returns the line for productID.
func (c *Cart) Find(productID int) (CartItem, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i], true
	}
	return CartItem{}, false
}

// Snapshot returns a copy of the lines in insertion order.
func (c *Cart) Snapshot() []CartItem {
	return slices.Clone(c.Items)
}

// Len is the number of distinct products, which is what the header badge shows.
func (c *Cart) Len() int { return len(c.Items) }

// ItemCount is the total number of units across all lines.
func (c *Cart) ItemCount() int {
	var n int
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

func clampQuantity(q int) int {
	return min(MaxQuantity, max(1, q))
}

func saturatingAdd(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}
