package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/tenancy"
)

// Handler serves report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/daily", h.daily)
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	day := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		day, err = time.Parse(time.DateOnly, v)
		if err != nil {
			httpx.RespondError(w, httpx.NewValidationError("date", "must be YYYY-MM-DD"))
			return
		}
	}
	summary, err := h.service.DailySummary(r.Context(), tenantID, day)
	if err != nil {
		h.logger.Error("daily summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
