package sales

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
)

// MaxQuantity is the largest line quantity a sale accepts.
const MaxQuantity = shared.MaxCount

var hundred = decimal.NewFromInt(100)

// Totals holds the computed money fields of a sale.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals derives subtotal, tax and total. Tax is rounded to cents and
// the total never drops below zero.
func ComputeTotals(items []SaleItem, taxRate, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(lineTotal(it.Quantity, it.UnitPrice))
	}
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	total := decimal.Max(decimal.Zero, subtotal.Add(tax).Sub(discount))
	return Totals{Subtotal: subtotal, Tax: tax, Total: total}
}

func lineTotal(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// Cart is the editable line list of a sale.
type Cart struct {
	lines []SaleItem
}

// NewCart starts a cart from existing lines.
func NewCart(lines []SaleItem) *Cart {
	return &Cart{lines: append([]SaleItem(nil), lines...)}
}

// Add puts qty units of item in the cart. A line for the same inventory item
// is incremented instead of duplicated.
func (c *Cart) Add(item SaleItem) error {
	if err := checkQuantity(int64(item.Quantity)); err != nil {
		return err
	}
	if msg := shared.MoneyProblem(item.UnitPrice); msg != "" {
		return httpx.NewValidationError("unitPrice", msg)
	}
	for i := range c.lines {
		if c.lines[i].InventoryItemID == item.InventoryItemID {
			if err := checkQuantity(int64(c.lines[i].Quantity) + int64(item.Quantity)); err != nil {
				return err
			}
			c.lines[i].Quantity += item.Quantity
			c.lines[i].LineTotal = lineTotal(c.lines[i].Quantity, c.lines[i].UnitPrice)
			return nil
		}
	}
	item.LineTotal = lineTotal(item.Quantity, item.UnitPrice)
	c.lines = append(c.lines, item)
	return nil
}

func checkQuantity(qty int64) error {
	if msg := shared.CountProblem(qty, 1); msg != "" {
		return httpx.NewValidationError("quantity", msg)
	}
	return nil
}

// RemoveUnit takes one unit off a line and drops the line at zero.
func (c *Cart) RemoveUnit(itemID uuid.UUID) error {
	for i := range c.lines {
		if c.lines[i].InventoryItemID != itemID {
			continue
		}
		c.lines[i].Quantity--
		if c.lines[i].Quantity <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
		c.lines[i].LineTotal = lineTotal(c.lines[i].Quantity, c.lines[i].UnitPrice)
		return nil
	}
	return fmt.Errorf("sales: item %s not in cart: %w", itemID, httpx.ErrNotFound)
}

// SetQuantity overwrites a line's quantity.
func (c *Cart) SetQuantity(itemID uuid.UUID, qty int) error {
	if err := checkQuantity(int64(qty)); err != nil {
		return err
	}
	for i := range c.lines {
		if c.lines[i].InventoryItemID == itemID {
			c.lines[i].Quantity = qty
			c.lines[i].LineTotal = lineTotal(qty, c.lines[i].UnitPrice)
			return nil
		}
	}
	return fmt.Errorf("sales: item %s not in cart: %w", itemID, httpx.ErrNotFound)
}

// Items returns a copy of the lines.
func (c *Cart) Items() []SaleItem {
	out := make([]SaleItem, len(c.lines))
	copy(out, c.lines)
	return out
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool { return len(c.lines) == 0 }

// Totals computes the money fields for the cart.
func (c *Cart) Totals(taxRate, discount decimal.Decimal) Totals {
	return ComputeTotals(c.lines, taxRate, discount)
}
