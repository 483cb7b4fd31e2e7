package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LowStockEvent is emitted after a committed change leaves a product at or
// below its reorder level.
type LowStockEvent struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	ItemID       uuid.UUID `json:"item_id"`
	Name         string    `json:"name"`
	SKU          string    `json:"sku"`
	Stock        int       `json:"stock"`
	ReorderLevel int       `json:"reorder_level"`
	At           time.Time `json:"at"`
}

// LowStockNotifier receives low stock events, usually by queueing a job.
type LowStockNotifier interface {
	NotifyLowStock(ctx context.Context, evt LowStockEvent) error
}

// NewLowStockEvent builds the event for item.
func NewLowStockEvent(item Item, at time.Time) LowStockEvent {
	return LowStockEvent{
		TenantID:     item.TenantID,
		ItemID:       item.ID,
		Name:         item.Name,
		SKU:          item.SKU,
		Stock:        item.Stock,
		ReorderLevel: item.ReorderLevel,
		At:           at,
	}
}
