package sales

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// allowedTransitions lists the statuses a save may move a sale to. The empty
// status stands for a sale that does not exist yet. VOID is reached only
// through DeleteSale.
var allowedTransitions = map[Status][]Status{
	"":            {StatusDraft, StatusPending, StatusPaid},
	StatusDraft:   {StatusDraft, StatusPending, StatusPaid},
	StatusPending: {StatusPending, StatusPaid},
	StatusPaid:    {StatusPaid},
}

func checkTransition(from, to Status) error {
	if from == StatusVoid {
		return ErrAlreadyVoid
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}

// sameContent reports whether a save leaves items, discount and client of a
// sale unchanged. Paid sales reject anything else.
func sameContent(existing *Sale, items []SaleItem, discount decimal.Decimal, clientID *uuid.UUID, clientName string) bool {
	if !existing.Discount.Equal(discount) || !sameClient(existing.ClientID, clientID) {
		return false
	}
	if clientID == nil && existing.ClientName != clientName {
		return false
	}
	if len(existing.Items) != len(items) {
		return false
	}
	for i := range items {
		a, b := existing.Items[i], items[i]
		if a.InventoryItemID != b.InventoryItemID || a.Quantity != b.Quantity || !a.UnitPrice.Equal(b.UnitPrice) {
			return false
		}
	}
	return true
}

func sameClient(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
