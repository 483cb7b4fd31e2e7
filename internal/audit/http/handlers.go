package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vetdesk/vetdesk/internal/audit"
	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
	"github.com/vetdesk/vetdesk/internal/tenancy"
)

const maxRange = 90 * 24 * time.Hour

// TimelineService adalah kontrak service yang dipakai handler.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler melayani audit log timeline dan export CSV.
type Handler struct {
	logger   *slog.Logger
	service  TimelineService
	exporter *audit.Exporter
	now      func() time.Time
}

// NewHandler membuat handler audit.
func NewHandler(logger *slog.Logger, service TimelineService, exporter *audit.Exporter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if exporter == nil {
		exporter = audit.NewExporter(time.UTC)
	}
	return &Handler{logger: logger, service: service, exporter: exporter, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	data, err := h.exporter.WriteCSV(rows)
	if err != nil {
		h.logger.Error("audit export csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.csv", filters.To.Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// parseFilters membaca query string. Default rentang tujuh hari terakhir,
// maksimal 90 hari.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	q := r.URL.Query()
	today := h.now().UTC().Truncate(24 * time.Hour)

	to := today.Add(24 * time.Hour)
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		day, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return audit.TimelineFilters{}, httpx.NewValidationError("to", "must be YYYY-MM-DD")
		}
		to = day.Add(24 * time.Hour)
	}
	from := to.AddDate(0, 0, -7)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		day, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return audit.TimelineFilters{}, httpx.NewValidationError("from", "must be YYYY-MM-DD")
		}
		from = day
	}
	if !from.Before(to) {
		return audit.TimelineFilters{}, httpx.NewValidationError("from", "must not be after to")
	}
	if to.Sub(from) > maxRange {
		return audit.TimelineFilters{}, httpx.NewValidationError("from", "range must be at most 90 days")
	}

	category := shared.AuditCategory(strings.ToLower(strings.TrimSpace(q.Get("category"))))
	if category != "" && !category.Valid() {
		return audit.TimelineFilters{}, httpx.NewValidationError("category", "must be one of clinical financial admin system")
	}

	filters := audit.TimelineFilters{
		TenantID: tenantID,
		From:     from,
		To:       to,
		Category: category,
		Actor:    q.Get("actor"),
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		Action:   q.Get("action"),
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return audit.TimelineFilters{}, httpx.NewValidationError("page", "must be a positive integer")
		}
		filters.Page = page
	}
	if v := q.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return audit.TimelineFilters{}, httpx.NewValidationError("page_size", "must be a positive integer")
		}
		filters.PageSize = size
	}
	return filters, nil
}
