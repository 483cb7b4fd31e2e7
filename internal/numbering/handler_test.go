package numbering

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
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/vetdesk/internal/shared"
)

func newTestRouter(svc *Service, tenant uuid.UUID) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithIdentity(req.Context(), shared.Identity{TenantID: tenant, UserID: "u-1"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/numbering", h.MountRoutes)
	return r
}

func TestIssueHandler(t *testing.T) {
	tenant := uuid.New()
	router := newTestRouter(newTestService(newMemoryRepo(), nil), tenant)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/numbering/INVOICE/issue", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var issued Issued
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.Equal(t, "INV-2026-00001", issued.Number)
	require.Equal(t, KindInvoice, issued.Kind)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/numbering/order/issue", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetPatternHandler(t *testing.T) {
	tenant := uuid.New()
	repo := newMemoryRepo()
	router := newTestRouter(newTestService(repo, nil), tenant)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/numbering/receipt", strings.NewReader(`{"pattern":"R-year-000"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var seq Sequence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &seq))
	require.Equal(t, "R-2026-001", seq.Next)
	require.Equal(t, "R-year-000", repo.rows[seqKey{tenant, KindReceipt}].Pattern)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/numbering/receipt", strings.NewReader(`{"pattern":""}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewHandler(t *testing.T) {
	router := newTestRouter(newTestService(newMemoryRepo(), nil), uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/numbering/preview?pattern=CL-0000", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "CL-0001", body["preview"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/numbering/preview", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
