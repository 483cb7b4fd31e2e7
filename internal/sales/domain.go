package sales

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vetdesk/vetdesk/internal/inventory"
	"github.com/vetdesk/vetdesk/internal/platform/httpx"
)

// ============================================================================
// STATUS
// ============================================================================

// Status is the lifecycle stage of a sale.
type Status string

const (
	StatusDraft   Status = "DRAFT"
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusVoid    Status = "VOID"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPaid, StatusVoid:
		return true
	}
	return false
}

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodCard     PaymentMethod = "CARD"
	MethodTransfer PaymentMethod = "TRANSFER"
	MethodCredit   PaymentMethod = "CREDIT"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer, MethodCredit:
		return true
	}
	return false
}

// PaymentState summarises how much of the total has been collected.
type PaymentState string

const (
	PaymentUnpaid  PaymentState = "UNPAID"
	PaymentPartial PaymentState = "PARTIAL"
	PaymentPaid    PaymentState = "PAID"
)

// ============================================================================
// SALE
// ============================================================================

// SaleItem is a line of a sale. Name, SKU, type and price are snapshots taken
// when the line was saved.
type SaleItem struct {
	InventoryItemID uuid.UUID          `json:"inventoryItemId"`
	Name            string             `json:"name"`
	SKU             string             `json:"sku"`
	ItemType        inventory.ItemType `json:"itemType"`
	Quantity        int                `json:"quantity"`
	UnitPrice       decimal.Decimal    `json:"unitPrice"`
	LineTotal       decimal.Decimal    `json:"lineTotal"`
}

// Payment is an append-only record of funds received.
type Payment struct {
	ID         uuid.UUID       `json:"id"`
	Method     PaymentMethod   `json:"method"`
	Amount     decimal.Decimal `json:"amount"`
	ReceivedAt time.Time       `json:"receivedAt"`
	RecordedBy string          `json:"recordedBy,omitempty"`
}

// Sale is the aggregate root for invoices and receipts.
type Sale struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenantId"`
	Date          time.Time       `json:"date"`
	ClientID      *uuid.UUID      `json:"clientId,omitempty"`
	ClientName    string          `json:"clientName"`
	Items         []SaleItem      `json:"items"`
	Discount      decimal.Decimal `json:"discount"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	Payments      []Payment       `json:"payments"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	BalanceDue    decimal.Decimal `json:"balanceDue"`
	PaymentState  PaymentState    `json:"paymentState"`
	InvoiceNumber *string         `json:"invoiceNumber,omitempty"`
	ReceiptNumber *string         `json:"receiptNumber,omitempty"`
	VoidReason    string          `json:"voidReason,omitempty"`
	VoidedAt      *time.Time      `json:"voidedAt,omitempty"`
	CreatedBy     string          `json:"createdBy,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	// Warnings are not persisted; they describe the save that produced this value.
	Warnings []string `json:"warnings,omitempty"`
}

// refreshPayments recomputes the derived payment fields.
func (s *Sale) refreshPayments() {
	paid := decimal.Zero
	for _, p := range s.Payments {
		paid = paid.Add(p.Amount)
	}
	s.AmountPaid = paid
	s.BalanceDue = decimal.Max(decimal.Zero, s.Total.Sub(paid))
	s.PaymentState = derivePaymentState(paid, s.Total)
}

func derivePaymentState(paid, total decimal.Decimal) PaymentState {
	switch {
	case paid.GreaterThanOrEqual(total):
		return PaymentPaid
	case paid.IsPositive():
		return PaymentPartial
	default:
		return PaymentUnpaid
	}
}

// coveredByPayments reports whether recorded payments settle the total.
// A sale with no payments is never covered, even at a zero total.
func (s *Sale) coveredByPayments() bool {
	return len(s.Payments) > 0 && s.AmountPaid.GreaterThanOrEqual(s.Total)
}

func (s *Sale) hasPayment(id uuid.UUID) bool {
	for _, p := range s.Payments {
		if p.ID == id {
			return true
		}
	}
	return false
}

// ============================================================================
// INPUTS
// ============================================================================

// LineDraft is a requested sale line. UnitPrice defaults to the item's retail
// price, or to the price already on the sale when the line exists.
type LineDraft struct {
	InventoryItemID uuid.UUID           `json:"inventoryItemId" validate:"required"`
	Quantity        int                 `json:"quantity" validate:"gte=1,lte=2147483647"`
	UnitPrice       decimal.NullDecimal `json:"unitPrice"`
}

// PaymentDraft is a payment to append. A caller supplied ID makes retries safe.
type PaymentDraft struct {
	ID         uuid.UUID       `json:"id"`
	Method     PaymentMethod   `json:"method" validate:"required,oneof=CASH CARD TRANSFER CREDIT"`
	Amount     decimal.Decimal `json:"amount"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// SaleDraft is the input of RecordSale. A zero ID creates a new sale; an
// unknown non-zero ID creates a sale with that ID.
type SaleDraft struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Date          time.Time
	ClientID      *uuid.UUID
	ClientName    string
	Lines         []LineDraft
	Discount      decimal.Decimal
	TargetStatus  Status
	Payment       *PaymentDraft
	AllowOversell bool
	// AcceptPartial stores an underpaid PAID request as PENDING instead of
	// rejecting it.
	AcceptPartial bool
	Actor         string
}

// ListFilter narrows sale listings.
type ListFilter struct {
	TenantID uuid.UUID
	Status   Status
	ClientID *uuid.UUID
	From     *time.Time
	To       *time.Time
	Page     int
	PerPage  int
}

// ============================================================================
// ERRORS
// ============================================================================

var (
	ErrSaleNotFound      = fmt.Errorf("sales: sale %w", httpx.ErrNotFound)
	ErrClientNotFound    = fmt.Errorf("sales: client %w", httpx.ErrNotFound)
	ErrEmptyCart         = httpx.NewValidationError("items", "cart must not be empty")
	ErrReasonRequired    = httpx.NewValidationError("reason", "is required")
	ErrSaleLocked        = fmt.Errorf("sales: paid sales accept only payments or a void: %w", httpx.ErrConflict)
	ErrInvalidTransition = fmt.Errorf("sales: invalid status transition: %w", httpx.ErrConflict)
	ErrAlreadyVoid       = fmt.Errorf("sales: sale already void: %w", httpx.ErrConflict)
	ErrPaymentShortfall  = fmt.Errorf("sales: payments do not cover the total: %w", httpx.ErrConflict)
)

// ShortfallError reports how far payments fall short of a PAID request.
type ShortfallError struct {
	Total decimal.Decimal
	Paid  decimal.Decimal
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("sales: paid %s of %s, confirm a partial payment to save as pending",
		e.Paid.StringFixed(2), e.Total.StringFixed(2))
}

// Unwrap lets callers match ErrPaymentShortfall.
func (e *ShortfallError) Unwrap() error { return ErrPaymentShortfall }

func (e *ShortfallError) ProblemExtensions() map[string]any {
	return map[string]any{
		"total":   e.Total.StringFixed(2),
		"paid":    e.Paid.StringFixed(2),
		"missing": e.Total.Sub(e.Paid).StringFixed(2),
	}
}

// TransitionError names the rejected transition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	from := string(e.From)
	if from == "" {
		from = "new"
	}
	return fmt.Sprintf("sales: cannot move sale from %s to %s", from, e.To)
}

// Unwrap lets callers match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
