// Package marketplace implements the shop cart: lines, a single applied
// promo code, totals and checkout.
package marketplace

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smiledent/clinic-site/internal/catalog"
)

var (
	ErrPromoNotFound = errors.New("marketplace: promo code not found")
	ErrItemNotFound  = errors.New("marketplace: item not found")
	ErrOutOfStock    = errors.New("marketplace: item out of stock")
	ErrEmptyCart     = errors.New("marketplace: cart is empty")
	ErrNameRequired  = errors.New("marketplace: name is required")
	ErrPhoneRequired = errors.New("marketplace: phone is required")
)

var hundred = decimal.NewFromInt(100)

// flyClock stamps the cosmetic add-to-cart animation id.
var flyClock = time.Now

// Line is one cart row: a snapshot of the item at add time and a quantity.
type Line struct {
	Item     catalog.MarketplaceItem `json:"item"`
	Quantity int                     `json:"quantity"`
}

// LineTotal is price × quantity.
func (l Line) LineTotal() decimal.Decimal {
	return l.Item.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Customer is the checkout form.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Cart keeps lines in insertion order and at most one applied promo.
type Cart struct {
	Lines    []Line             `json:"lines"`
	Promo    *catalog.PromoCode `json:"promo,omitempty"`
	Customer Customer           `json:"customer"`
}

func (c *Cart) index(id string) int {
	for i, l := range c.Lines {
		if l.Item.ID == id {
			return i
		}
	}
	return -1
}

// AddItem increments the item's quantity or appends it with quantity 1.
// The returned id keys the cosmetic "flying to cart" animation.
func (c *Cart) AddItem(item catalog.MarketplaceItem) string {
	if i := c.index(item.ID); i >= 0 {
		c.Lines[i].Quantity++
	} else {
		c.Lines = append(c.Lines, Line{Item: item, Quantity: 1})
	}
	return fmt.Sprintf("fly-%d", flyClock().UnixMilli())
}

// UpdateQuantity adds delta to the line, clamping at zero; zero removes it.
// It reports whether the item was in the cart.
func (c *Cart) UpdateQuantity(id string, delta int) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	q := c.Lines[i].Quantity + delta
	if q <= 0 {
		c.Remove(id)
		return true
	}
	c.Lines[i].Quantity = q
	return true
}

// Remove deletes the line for id.
func (c *Cart) Remove(id string) {
	if i := c.index(id); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

// ApplyPromoCode matches code case-insensitively against promos and
// replaces any previously applied promo.
func (c *Cart) ApplyPromoCode(code string, promos []catalog.PromoCode) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrPromoNotFound
	}
	for _, p := range promos {
		if strings.EqualFold(p.Code, code) {
			p := p
			c.Promo = &p
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPromoNotFound, code)
}

// ClearPromo drops the applied promo.
func (c *Cart) ClearPromo() {
	c.Promo = nil
}

// Count is the number of units in the cart.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Subtotal sums all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}

// Discount is the promo's fixed amount or percentage of the subtotal.
func (c *Cart) Discount() decimal.Decimal {
	if c.Promo == nil {
		return decimal.Zero
	}
	if c.Promo.DiscountType == catalog.DiscountPercent {
		return c.Subtotal().Mul(c.Promo.DiscountValue).Div(hundred).Round(2)
	}
	return c.Promo.DiscountValue
}

// Total is max(0, subtotal − discount).
func (c *Cart) Total() decimal.Decimal {
	return decimal.Max(decimal.Zero, c.Subtotal().Sub(c.Discount()))
}

// Clear empties the cart, the promo and the customer form.
func (c *Cart) Clear() {
	*c = Cart{}
}

// Validate checks the checkout form before any network call.
func (cu Customer) Validate() error {
	switch {
	case strings.TrimSpace(cu.Name) == "":
		return ErrNameRequired
	case strings.TrimSpace(cu.Phone) == "":
		return ErrPhoneRequired
	}
	return nil
}
