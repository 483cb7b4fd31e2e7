package tenancy

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
)

// Handler exposes clinic settings endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the settings handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.update)
}

type updateSettingsRequest struct {
	TaxRate       decimal.Decimal `json:"taxRate"`
	AllowOversell bool            `json:"allowOversell"`
	Currency      string          `json:"currency" validate:"required,len=3"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	settings, err := h.service.Get(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("get settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateSettingsRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	saved, err := h.service.Update(r.Context(), Settings{
		TenantID:      tenantID,
		TaxRate:       req.TaxRate,
		AllowOversell: req.AllowOversell,
		Currency:      req.Currency,
	})
	if err != nil {
		h.logger.Warn("update settings", slog.String("tenant_id", tenantID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}
