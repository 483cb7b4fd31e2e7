package sales

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/vetdesk/internal/inventory"
	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
)

func newTestRouter(f *fixture) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithIdentity(req.Context(), shared.Identity{TenantID: f.tenant, UserID: "u-1", Name: "dr.lee"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/sales", h.MountRoutes)
	return r
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeSale(t *testing.T, rec *httptest.ResponseRecorder) Sale {
	t.Helper()
	var sale Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sale), rec.Body.String())
	return sale
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p), rec.Body.String())
	return p
}

func TestRecordSaleHandlerMapsRequest(t *testing.T) {
	f := newFixture(fivePercent())
	router := newTestRouter(f)
	item := f.repo.seedItem(f.tenant, "Amoxicillin", inventory.ItemTypeProduct, 5, "10.00")
	paymentID := uuid.New()

	body := `{"walkInName":"  Mr Jones ","items":[{"inventoryItemId":"` + item.ID.String() + `","quantity":2}],` +
		`"targetStatus":"PAID","paymentId":"` + paymentID.String() + `","payMethod":"CARD","payAmount":"21.00","total":"1.00"}`
	rec := do(t, router, http.MethodPost, "/sales", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sale := decodeSale(t, rec)
	assert.Equal(t, StatusPaid, sale.Status)
	assert.Equal(t, "Mr Jones", sale.ClientName)
	assert.True(t, sale.Total.Equal(dec("21.00")), sale.Total.String())
	require.Len(t, sale.Payments, 1)
	assert.Equal(t, paymentID, sale.Payments[0].ID)
	assert.Equal(t, MethodCard, sale.Payments[0].Method)
	assert.Equal(t, "dr.lee", sale.Payments[0].RecordedBy)
	assert.Equal(t, 3, f.repo.stock(item.ID))
	assert.Equal(t, "dr.lee", f.repo.state.audit[0].Actor)
}

func TestRecordSaleHandlerValidation(t *testing.T) {
	f := newFixture(fivePercent())
	router := newTestRouter(f)
	item := f.repo.seedItem(f.tenant, "Gauze", inventory.ItemTypeProduct, 5, "1.00")
	line := `"items":[{"inventoryItemId":"` + item.ID.String() + `","quantity":1}]`

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"amount without method", `{` + line + `,"targetStatus":"PENDING","payAmount":"1.00"}`, "payMethod"},
		{"unknown status", `{` + line + `,"targetStatus":"VOID"}`, "targetStatus"},
		{"sub-cent discount", `{` + line + `,"targetStatus":"PENDING","discount":"0.001"}`, "discount"},
		{"quantity above column range", `{"items":[{"inventoryItemId":"` + item.ID.String() + `","quantity":2147483648}],"targetStatus":"PENDING"}`, "items[0].quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/sales", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			p := decodeProblem(t, rec)
			assert.Contains(t, p.Errors, tc.field)
		})
	}
	assert.Empty(t, f.repo.state.sales)
}

func TestRecordSaleHandlerInsufficientStockProblem(t *testing.T) {
	f := newFixture(fivePercent())
	router := newTestRouter(f)
	item := f.repo.seedItem(f.tenant, "Insulin", inventory.ItemTypeProduct, 1, "10.00")

	body := `{"items":[{"inventoryItemId":"` + item.ID.String() + `","quantity":3}],"targetStatus":"PAID","payMethod":"CASH","payAmount":"31.50"}`
	rec := do(t, router, http.MethodPost, "/sales", body)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	p := decodeProblem(t, rec)
	assert.Equal(t, item.ID.String(), p.Extensions["itemId"])
	assert.Equal(t, "Insulin", p.Extensions["name"])
	assert.EqualValues(t, 1, p.Extensions["available"])
	assert.EqualValues(t, 3, p.Extensions["requested"])
	assert.Equal(t, 1, f.repo.stock(item.ID))
}

func TestRecordSaleHandlerShortfallProblem(t *testing.T) {
	f := newFixture(fivePercent())
	router := newTestRouter(f)
	item := f.repo.seedItem(f.tenant, "Vaccine", inventory.ItemTypeProduct, 10, "20.00")

	body := `{"items":[{"inventoryItemId":"` + item.ID.String() + `","quantity":1}],"targetStatus":"PAID","payMethod":"CASH","payAmount":"10.00"}`
	rec := do(t, router, http.MethodPost, "/sales", body)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	p := decodeProblem(t, rec)
	assert.Equal(t, "21.00", p.Extensions["total"])
	assert.Equal(t, "10.00", p.Extensions["paid"])
	assert.Equal(t, "11.00", p.Extensions["missing"])
	assert.Empty(t, f.repo.state.sales)
}

func TestAddPaymentHandlerStatusCodes(t *testing.T) {
	f := newFixture(fivePercent())
	router := newTestRouter(f)
	item := f.repo.seedItem(f.tenant, "Vaccine", inventory.ItemTypeProduct, 10, "20.00")
	pending, err := f.svc.RecordSale(t.Context(), SaleDraft{
		TenantID:     f.tenant,
		Lines:        []LineDraft{{InventoryItemID: item.ID, Quantity: 1}},
		TargetStatus: StatusPending,
	})
	require.NoError(t, err)
	draft, err := f.svc.RecordSale(t.Context(), SaleDraft{
		TenantID:     f.tenant,
		Lines:        []LineDraft{{InventoryItemID: item.ID, Quantity: 1}},
		TargetStatus: StatusDraft,
	})
	require.NoError(t, err)

	rec := do(t, router, http.MethodPost, "/sales/"+pending.ID.String()+"/payments", `{"method":"CASH","amount":"21.00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sale := decodeSale(t, rec)
	assert.Equal(t, StatusPaid, sale.Status)
	assert.NotNil(t, sale.ReceiptNumber)
	assert.Equal(t, 9, f.repo.stock(item.ID))

	cases := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"unknown sale", "/sales/" + uuid.NewString() + "/payments", `{"method":"CASH","amount":"1.00"}`, http.StatusNotFound},
		{"bad id", "/sales/not-a-uuid/payments", `{"method":"CASH","amount":"1.00"}`, http.StatusBadRequest},
		{"missing method", "/sales/" + pending.ID.String() + "/payments", `{"amount":"1.00"}`, http.StatusBadRequest},
		{"sub-cent amount", "/sales/" + pending.ID.String() + "/payments", `{"method":"CASH","amount":"0.001"}`, http.StatusBadRequest},
		{"draft sale", "/sales/" + draft.ID.String() + "/payments", `{"method":"CASH","amount":"1.00"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tc.target, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			decodeProblem(t, rec)
		})
	}

	require.NoError(t, f.svc.DeleteSale(t.Context(), f.tenant, draft.ID, "abandoned", "desk"))
	rec = do(t, router, http.MethodPost, "/sales/"+draft.ID.String()+"/payments", `{"method":"CASH","amount":"1.00"}`)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestDeleteSaleHandlerReasonSources(t *testing.T) {
	f := newFixture(fivePercent())
	router := newTestRouter(f)
	item := f.repo.seedItem(f.tenant, "Amoxicillin", inventory.ItemTypeProduct, 5, "10.00")
	record := func() Sale {
		sale, err := f.svc.RecordSale(t.Context(), SaleDraft{
			TenantID:     f.tenant,
			Lines:        []LineDraft{{InventoryItemID: item.ID, Quantity: 1}},
			TargetStatus: StatusPaid,
			Payment:      payment("10.50"),
		})
		require.NoError(t, err)
		return *sale
	}

	fromBody := record()
	rec := do(t, router, http.MethodDelete, "/sales/"+fromBody.ID.String(), `{"reason":"duplicate entry"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Body.String())
	stored, err := f.svc.GetSale(t.Context(), f.tenant, fromBody.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusVoid, stored.Status)
	assert.Equal(t, "duplicate entry", stored.VoidReason)

	fromQuery := record()
	rec = do(t, router, http.MethodDelete, "/sales/"+fromQuery.ID.String()+"?reason=wrong+client", "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	stored, err = f.svc.GetSale(t.Context(), f.tenant, fromQuery.ID)
	require.NoError(t, err)
	assert.Equal(t, "wrong client", stored.VoidReason)
	assert.Equal(t, 5, f.repo.stock(item.ID))

	last := f.repo.state.audit[len(f.repo.state.audit)-1]
	assert.Equal(t, "sale.void", last.Action)
	assert.Equal(t, "dr.lee", last.Actor)

	rec = do(t, router, http.MethodDelete, "/sales/"+fromQuery.ID.String()+"?reason=again", "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteSaleHandlerRequiresReason(t *testing.T) {
	f := newFixture(fivePercent())
	router := newTestRouter(f)
	item := f.repo.seedItem(f.tenant, "Gauze", inventory.ItemTypeProduct, 5, "1.00")
	sale, err := f.svc.RecordSale(t.Context(), SaleDraft{
		TenantID:     f.tenant,
		Lines:        []LineDraft{{InventoryItemID: item.ID, Quantity: 1}},
		TargetStatus: StatusPending,
	})
	require.NoError(t, err)

	for _, tc := range []struct{ target, body string }{
		{"/sales/" + sale.ID.String(), ""},
		{"/sales/" + sale.ID.String(), `{"reason":"   "}`},
		{"/sales/" + sale.ID.String() + "?reason=", ""},
	} {
		rec := do(t, router, http.MethodDelete, tc.target, tc.body)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, decodeProblem(t, rec).Errors, "reason")
	}

	stored, err := f.svc.GetSale(t.Context(), f.tenant, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestLineEditHandlers(t *testing.T) {
	f := newFixture(fivePercent())
	router := newTestRouter(f)
	item := f.repo.seedItem(f.tenant, "Vaccine", inventory.ItemTypeProduct, 10, "20.00")
	sale, err := f.svc.RecordSale(t.Context(), SaleDraft{
		TenantID:     f.tenant,
		Lines:        []LineDraft{{InventoryItemID: item.ID, Quantity: 1}},
		TargetStatus: StatusPending,
	})
	require.NoError(t, err)
	base := "/sales/" + sale.ID.String() + "/items/" + item.ID.String()

	rec := do(t, router, http.MethodPut, base, `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decodeSale(t, rec)
	assert.Equal(t, 3, edited.Items[0].Quantity)
	assert.True(t, edited.Total.Equal(dec("63.00")), edited.Total.String())

	rec = do(t, router, http.MethodPost, base+"/remove-unit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decodeSale(t, rec).Items[0].Quantity)

	rec = do(t, router, http.MethodPut, base, `{"quantity":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	rec = do(t, router, http.MethodPut, "/sales/"+sale.ID.String()+"/items/"+uuid.NewString(), `{"quantity":2}`)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	rec = do(t, router, http.MethodPut, "/sales/"+sale.ID.String()+"/items/nope", `{"quantity":2}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
