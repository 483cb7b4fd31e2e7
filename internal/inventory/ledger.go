package inventory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
)

// LedgerTx is the transactional surface the ledger operations need. The
// reconciliation service supplies its own transaction so debits commit with
// the sale that caused them.
type LedgerTx interface {
	GetItemForUpdate(ctx context.Context, tenantID, itemID uuid.UUID) (Item, error)
	UpdateStock(ctx context.Context, tenantID, itemID uuid.UUID, stock int) error
	InsertMovement(ctx context.Context, m Movement) error
	ListMovementsBySale(ctx context.Context, tenantID, saleID uuid.UUID) ([]Movement, error)
}

// Debit decreases stock for a sale. Service items are skipped. Without
// AllowOversell a debit that would go below zero fails with
// *InsufficientStockError and leaves the item untouched.
func Debit(ctx context.Context, tx LedgerTx, in DebitInput) (DebitResult, error) {
	if in.Qty <= 0 {
		return DebitResult{}, ErrInvalidQuantity
	}
	item, err := tx.GetItemForUpdate(ctx, in.TenantID, in.ItemID)
	if err != nil {
		return DebitResult{}, err
	}
	if item.Type == ItemTypeService {
		return DebitResult{Item: item, NewStock: item.Stock, Skipped: true}, nil
	}
	newStock := item.Stock - in.Qty
	oversold := newStock < 0
	if oversold && !in.AllowOversell {
		return DebitResult{}, &InsufficientStockError{ItemID: item.ID, Name: item.Name, Available: item.Stock, Requested: in.Qty}
	}
	if err := tx.UpdateStock(ctx, in.TenantID, item.ID, newStock); err != nil {
		return DebitResult{}, err
	}
	item.Stock = newStock
	ref := in.RefSaleID
	if err := tx.InsertMovement(ctx, newMovement(item, -in.Qty, MovementSale, &ref, "", in.Actor)); err != nil {
		return DebitResult{}, err
	}
	return DebitResult{Item: item, NewStock: newStock, Oversold: oversold, LowStock: item.IsLowStock()}, nil
}

// ReverseSale credits back exactly what the sale's own movements took out,
// netted per item. Items the sale never debited are untouched.
func ReverseSale(ctx context.Context, tx LedgerTx, tenantID, saleID uuid.UUID, actor string) ([]Movement, error) {
	movements, err := tx.ListMovementsBySale(ctx, tenantID, saleID)
	if err != nil {
		return nil, err
	}
	net := make(map[uuid.UUID]int)
	var order []uuid.UUID
	for _, m := range movements {
		if _, seen := net[m.ItemID]; !seen {
			order = append(order, m.ItemID)
		}
		net[m.ItemID] += m.QtyChange
	}
	SortItemIDs(order)
	var reversals []Movement
	for _, itemID := range order {
		qty := -net[itemID]
		if qty <= 0 {
			continue
		}
		m, err := Credit(ctx, tx, tenantID, itemID, qty, saleID, actor)
		if err != nil {
			return nil, fmt.Errorf("reverse sale %s: %w", saleID, err)
		}
		reversals = append(reversals, m)
	}
	return reversals, nil
}

// Credit returns qty units of a product to stock on behalf of a voided sale.
func Credit(ctx context.Context, tx LedgerTx, tenantID, itemID uuid.UUID, qty int, saleID uuid.UUID, actor string) (Movement, error) {
	if qty <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	item, err := tx.GetItemForUpdate(ctx, tenantID, itemID)
	if err != nil {
		return Movement{}, err
	}
	item.Stock += qty
	if err := tx.UpdateStock(ctx, tenantID, itemID, item.Stock); err != nil {
		return Movement{}, err
	}
	ref := saleID
	m := newMovement(item, qty, MovementVoid, &ref, "sale voided", actor)
	if err := tx.InsertMovement(ctx, m); err != nil {
		return Movement{}, err
	}
	return m, nil
}

// Adjust applies a manual correction. ADD is relative, SET overwrites.
// Neither may leave a product below zero, and neither touches any sale.
func Adjust(ctx context.Context, tx LedgerTx, in AdjustInput) (Item, *Movement, error) {
	item, err := tx.GetItemForUpdate(ctx, in.TenantID, in.ItemID)
	if err != nil {
		return Item{}, nil, err
	}
	if item.Type != ItemTypeProduct {
		return Item{}, nil, httpx.NewValidationError("itemId", "services carry no stock")
	}
	var (
		target int64
		kind   MovementKind
	)
	switch in.Mode {
	case AdjustAdd:
		if in.Value == 0 {
			return Item{}, nil, ErrInvalidQuantity
		}
		target = int64(item.Stock) + int64(in.Value)
		kind = MovementAdjustAdd
	case AdjustSet:
		target = int64(in.Value)
		kind = MovementAdjustSet
	default:
		return Item{}, nil, httpx.NewValidationError("mode", "must be ADD or SET")
	}
	if target < 0 {
		return Item{}, nil, ErrNegativeStock
	}
	if target > shared.MaxCount {
		return Item{}, nil, httpx.NewValidationError("value", fmt.Sprintf("stock would exceed %d", shared.MaxCount))
	}
	newStock := int(target)
	delta := newStock - item.Stock
	if delta == 0 {
		return item, nil, nil
	}
	if err := tx.UpdateStock(ctx, in.TenantID, item.ID, newStock); err != nil {
		return Item{}, nil, err
	}
	item.Stock = newStock
	m := newMovement(item, delta, kind, nil, in.Note, in.Actor)
	if err := tx.InsertMovement(ctx, m); err != nil {
		return Item{}, nil, err
	}
	return item, &m, nil
}

// SortItemIDs orders ids so that every writer locks item rows in the same
// sequence.
func SortItemIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
}

func newMovement(item Item, qty int, kind MovementKind, ref *uuid.UUID, note, actor string) Movement {
	return Movement{
		ID:           uuid.New(),
		TenantID:     item.TenantID,
		ItemID:       item.ID,
		QtyChange:    qty,
		Kind:         kind,
		RefSaleID:    ref,
		Note:         note,
		Actor:        actor,
		BalanceAfter: item.Stock,
		CreatedAt:    time.Now().UTC(),
	}
}
