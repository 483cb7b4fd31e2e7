package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
)

// ItemType distinguishes stocked goods from services.
type ItemType string

const (
	// ItemTypeProduct is a physical good with a stock count.
	ItemTypeProduct ItemType = "PRODUCT"
	// ItemTypeService has no stock; debits are no-ops.
	ItemTypeService ItemType = "SERVICE"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return t == ItemTypeProduct || t == ItemTypeService
}

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	MovementOpening   MovementKind = "OPENING"
	MovementSale      MovementKind = "SALE"
	MovementVoid      MovementKind = "VOID"
	MovementAdjustAdd MovementKind = "ADJUST_ADD"
	MovementAdjustSet MovementKind = "ADJUST_SET"
)

// Item is a stocked product or a billable service.
type Item struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenantId"`
	Name           string          `json:"name"`
	SKU            string          `json:"sku"`
	Type           ItemType        `json:"type"`
	Stock          int             `json:"stock"`
	PurchasePrice  decimal.Decimal `json:"purchasePrice"`
	RetailPrice    decimal.Decimal `json:"retailPrice"`
	WholesalePrice decimal.Decimal `json:"wholesalePrice"`
	ReorderLevel   int             `json:"reorderLevel"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// IsLowStock reports whether a product sits at or below its reorder level.
func (i Item) IsLowStock() bool {
	return i.Type == ItemTypeProduct && i.Stock <= i.ReorderLevel
}

// Movement is one entry on an item's stock card.
type Movement struct {
	ID           uuid.UUID    `json:"id"`
	TenantID     uuid.UUID    `json:"tenantId"`
	ItemID       uuid.UUID    `json:"itemId"`
	QtyChange    int          `json:"qtyChange"`
	Kind         MovementKind `json:"kind"`
	RefSaleID    *uuid.UUID   `json:"refSaleId,omitempty"`
	Note         string       `json:"note,omitempty"`
	Actor        string       `json:"actor,omitempty"`
	BalanceAfter int          `json:"balanceAfter"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// DebitInput describes a sale driven stock decrease.
type DebitInput struct {
	TenantID      uuid.UUID
	ItemID        uuid.UUID
	Qty           int
	AllowOversell bool
	RefSaleID     uuid.UUID
	Actor         string
}

// DebitResult reports the outcome of a debit.
type DebitResult struct {
	Item     Item
	NewStock int
	// Skipped is true for service items.
	Skipped  bool
	Oversold bool
	LowStock bool
}

// AdjustMode selects relative or absolute adjustments.
type AdjustMode string

const (
	AdjustAdd AdjustMode = "ADD"
	AdjustSet AdjustMode = "SET"
)

// AdjustInput describes a manual stock correction.
type AdjustInput struct {
	TenantID uuid.UUID
	ItemID   uuid.UUID
	Mode     AdjustMode
	// Value is a delta for ADD and the new stock for SET.
	Value int
	Note  string
	Actor string
}

// CreateItemInput describes a new catalogue entry.
type CreateItemInput struct {
	TenantID       uuid.UUID
	Name           string
	SKU            string
	Type           ItemType
	OpeningStock   int
	PurchasePrice  decimal.Decimal
	RetailPrice    decimal.Decimal
	WholesalePrice decimal.Decimal
	ReorderLevel   int
	Actor          string
}

// ListFilter narrows item listings.
type ListFilter struct {
	TenantID uuid.UUID
	Search   string
	Type     ItemType
	Page     int
	PerPage  int
}

var (
	// ErrItemNotFound is returned for unknown or foreign-tenant item ids.
	ErrItemNotFound = fmt.Errorf("inventory: item %w", httpx.ErrNotFound)
	// ErrInsufficientStock is the sentinel behind InsufficientStockError.
	ErrInsufficientStock = fmt.Errorf("inventory: insufficient stock: %w", httpx.ErrConflict)
	// ErrNegativeStock triggered when an adjustment would result in negative qty.
	ErrNegativeStock = fmt.Errorf("inventory: negative stock not allowed: %w", httpx.ErrValidation)
	// ErrInvalidQuantity indicates invalid qty.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must be positive: %w", httpx.ErrValidation)
	// ErrDuplicateSKU is returned when the SKU is already used by the tenant.
	ErrDuplicateSKU = fmt.Errorf("inventory: sku already exists: %w", httpx.ErrDuplicate)
)

// InsufficientStockError carries the item and quantities of a rejected debit.
type InsufficientStockError struct {
	ItemID    uuid.UUID
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s: available %d, requested %d", e.Name, e.Available, e.Requested)
}

// Unwrap lets callers match ErrInsufficientStock.
func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ProblemExtensions exposes the rejected line in the HTTP problem body.
func (e *InsufficientStockError) ProblemExtensions() map[string]any {
	return map[string]any{
		"itemId":    e.ItemID,
		"name":      e.Name,
		"available": e.Available,
		"requested": e.Requested,
	}
}

// IsInsufficientStock reports whether err is a stock shortfall.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// DuplicateNameWarning is returned next to a created item when a similarly
// named item already exists. It never blocks creation.
type DuplicateNameWarning struct {
	ExistingID   uuid.UUID `json:"existingId"`
	ExistingName string    `json:"existingName"`
}

func (w DuplicateNameWarning) String() string {
	return fmt.Sprintf("an item named %q already exists", w.ExistingName)
}
