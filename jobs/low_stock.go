package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/vetdesk/vetdesk/internal/inventory"
	jobmetrics "github.com/vetdesk/vetdesk/internal/jobs"
	"github.com/vetdesk/vetdesk/internal/shared"
)

// AuditRecorder writes system entries to the clinic log.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// TenantLister enumerates tenants for sweeps.
type TenantLister interface {
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// LowStockLister returns a tenant's products at or below reorder level.
type LowStockLister interface {
	ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]inventory.Item, error)
}

// LowStockAlertJob records a post-sale low stock event in the clinic log.
type LowStockAlertJob struct {
	Audit   AuditRecorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockAlertJob initialises the alert handler.
func NewLowStockAlertJob(audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockAlertJob {
	return &LowStockAlertJob{Audit: audit, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLowStockAlert tasks.
func (j *LowStockAlertJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("low stock alert: handler not configured")
	}
	var evt inventory.LowStockEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return fmt.Errorf("low stock alert: %v: %w", err, asynq.SkipRetry)
	}
	if evt.TenantID == uuid.Nil || evt.ItemID == uuid.Nil {
		return fmt.Errorf("low stock alert: missing tenant or item: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskLowStockAlert)
	defer func() { err = tracker.End(err) }()

	logger(j.Logger).Warn("low stock",
		slog.String("tenant_id", evt.TenantID.String()),
		slog.String("item_id", evt.ItemID.String()),
		slog.String("sku", evt.SKU),
		slog.Int("stock", evt.Stock),
		slog.Int("reorder_level", evt.ReorderLevel),
	)
	j.Metrics.AddLowStock("sale", 1)
	if j.Audit == nil {
		return nil
	}
	return j.Audit.Record(ctx, shared.AuditLog{
		TenantID: evt.TenantID,
		Category: shared.AuditSystem,
		Actor:    "system",
		Action:   "inventory.low_stock",
		Entity:   "inventory_item",
		EntityID: evt.ItemID.String(),
		Details:  fmt.Sprintf("%s (%s) at %d, reorder level %d", evt.Name, evt.SKU, evt.Stock, evt.ReorderLevel),
		Meta:     map[string]any{"stock": evt.Stock, "reorder_level": evt.ReorderLevel},
	})
}

// LowStockScanJob sweeps all tenants and logs one summary entry per tenant
// that has low stock items.
type LowStockScanJob struct {
	Tenants TenantLister
	Stock   LowStockLister
	Audit   AuditRecorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(tenants TenantLister, stock LowStockLister, audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Tenants: tenants,
		Stock:   stock,
		Audit:   audit,
		Logger:  logger,
		Metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes TaskLowStockScan tasks. A failing tenant is logged and
// skipped; the run fails only when every tenant failed.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Tenants == nil || j.Stock == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("low stock scan: %v: %w", err, asynq.SkipRetry)
		}
	}
	start := j.clock()
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	log := logger(j.Logger)
	tenants, err := j.Tenants.ListTenantIDs(ctx)
	if err != nil {
		return fmt.Errorf("low stock scan: list tenants: %w", err)
	}
	var (
		failed int
		total  int
	)
	for _, tenantID := range tenants {
		items, err := j.Stock.ListLowStock(ctx, tenantID)
		if err != nil {
			failed++
			log.Error("low stock scan tenant", slog.String("tenant_id", tenantID.String()), slog.Any("error", err))
			continue
		}
		if len(items) == 0 {
			continue
		}
		total += len(items)
		if j.Audit == nil {
			continue
		}
		skus := make([]string, 0, len(items))
		for _, it := range items {
			skus = append(skus, it.SKU)
		}
		if err := j.Audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			Category: shared.AuditSystem,
			Actor:    "system",
			Action:   "inventory.low_stock_scan",
			Entity:   "tenant",
			EntityID: tenantID.String(),
			Details:  fmt.Sprintf("%d items at or below reorder level", len(items)),
			Meta:     map[string]any{"skus": skus, "scheduled_for": payload.ScheduledFor},
		}); err != nil {
			log.Warn("low stock scan audit", slog.String("tenant_id", tenantID.String()), slog.Any("error", err))
		}
	}
	j.Metrics.AddLowStock("scan", total)
	log.Info("completed low stock scan",
		slog.Int("tenants", len(tenants)),
		slog.Int("failed", failed),
		slog.Int("items", total),
		slog.Duration("duration", time.Since(start)),
	)
	if failed > 0 && failed == len(tenants) {
		return fmt.Errorf("low stock scan: all %d tenants failed", failed)
	}
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
