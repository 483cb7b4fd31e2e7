package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/vetdesk/internal/inventory"
	jobmetrics "github.com/vetdesk/vetdesk/internal/jobs"
	"github.com/vetdesk/vetdesk/internal/shared"
)

type auditSpy struct{ logs []shared.AuditLog }

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	a.logs = append(a.logs, log)
	return nil
}

type stubTenants []uuid.UUID

func (s stubTenants) ListTenantIDs(context.Context) ([]uuid.UUID, error) { return s, nil }

type stubStock struct {
	items map[uuid.UUID][]inventory.Item
	fail  map[uuid.UUID]bool
}

func (s stubStock) ListLowStock(_ context.Context, tenantID uuid.UUID) ([]inventory.Item, error) {
	if s.fail[tenantID] {
		return nil, errors.New("db down")
	}
	return s.items[tenantID], nil
}

func sampleEvent() inventory.LowStockEvent {
	return inventory.LowStockEvent{
		TenantID:     uuid.New(),
		ItemID:       uuid.New(),
		Name:         "Amoxicillin 250mg",
		SKU:          "AMX-250",
		Stock:        2,
		ReorderLevel: 5,
		At:           time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestLowStockAlertTaskCarriesEvent(t *testing.T) {
	evt := sampleEvent()
	task, err := NewLowStockAlertTask(evt)
	require.NoError(t, err)
	assert.Equal(t, TaskLowStockAlert, task.Type())

	var decoded inventory.LowStockEvent
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, evt.ItemID, decoded.ItemID)
}

func TestLowStockAlertRecordsSystemAudit(t *testing.T) {
	audit := &auditSpy{}
	job := NewLowStockAlertJob(audit, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	evt := sampleEvent()
	task, err := NewLowStockAlertTask(evt)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, audit.logs, 1)
	log := audit.logs[0]
	assert.Equal(t, shared.AuditSystem, log.Category)
	assert.Equal(t, "inventory.low_stock", log.Action)
	assert.Equal(t, evt.TenantID, log.TenantID)
	assert.Contains(t, log.Details, "AMX-250")
}

func TestLowStockAlertSkipsRetryOnBadPayload(t *testing.T) {
	job := NewLowStockAlertJob(&auditSpy{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockAlert, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskLowStockAlert, []byte(`{}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLowStockScanSummarisesPerTenant(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	stock := stubStock{
		items: map[uuid.UUID][]inventory.Item{
			a: {{SKU: "AMX-250"}, {SKU: "VAC-R"}},
			b: nil,
		},
		fail: map[uuid.UUID]bool{c: true},
	}
	audit := &auditSpy{}
	job := NewLowStockScanJob(stubTenants{a, b, c}, stock, audit, nil, nil)
	task, err := NewLowStockScanTask(time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, a, audit.logs[0].TenantID)
	assert.Equal(t, "inventory.low_stock_scan", audit.logs[0].Action)
	assert.Equal(t, []string{"AMX-250", "VAC-R"}, audit.logs[0].Meta["skus"])
}

func TestLowStockScanFailsWhenEveryTenantFails(t *testing.T) {
	a := uuid.New()
	job := NewLowStockScanJob(stubTenants{a}, stubStock{fail: map[uuid.UUID]bool{a: true}}, nil, nil, nil)
	task, err := NewLowStockScanTask(time.Now())
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0,"paused":false,"latencyMs":0}`, rec.Body.String())
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthReportsQueueInfo(t *testing.T) {
	h := &Handler{inspector: stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Retry: 1, Latency: 2 * time.Second}}}
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body QueueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Pending)
	assert.Equal(t, 1, body.Retry)
	assert.Equal(t, int64(2000), body.LatencyMS)
}

func TestHealthUnavailable(t *testing.T) {
	h := &Handler{inspector: stubInspector{err: errors.New("dial tcp: refused")}}
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewWorkerRejectsIncompleteRegistration(t *testing.T) {
	_, err := NewWorker(WorkerConfig{Handlers: []TaskHandler{{Type: TaskLowStockAlert}}})
	assert.Error(t, err)
}

func TestRedisOptFromURL(t *testing.T) {
	opt, err := RedisOpt("redis://:pw@queue:6390/3")
	require.NoError(t, err)
	assert.Equal(t, "queue:6390", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 3, opt.DB)

	_, err = RedisOpt("")
	assert.Error(t, err)
}
