package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vetdesk/vetdesk/internal/inventory"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockAlert reports one item that a sale left at or below its reorder level.
	TaskLowStockAlert = "inventory:low_stock_alert"
	// TaskLowStockScan sweeps every tenant for low stock items.
	TaskLowStockScan = "inventory:low_stock_scan"
)

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockAlertTask constructs the alert task. The task id folds in the
// item and UTC day, so repeated sales of the same item queue one alert a day.
func NewLowStockAlertTask(evt inventory.LowStockEvent) (*asynq.Task, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("low-stock:%s:%s:%s", evt.TenantID, evt.ItemID, evt.At.UTC().Format("20060102"))
	return asynq.NewTask(TaskLowStockAlert, body, asynq.Queue(QueueDefault), asynq.TaskID(id), asynq.MaxRetry(5)), nil
}

// NewLowStockScanTask constructs the scheduled sweep task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}
