package numbering

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/tenancy"
)

// Handler wires HTTP endpoints for the numbering authority.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the numbering handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers numbering routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/preview", h.preview)
	r.Put("/{kind}", h.setPattern)
	r.Post("/{kind}/issue", h.issue)
}

type setPatternRequest struct {
	Pattern string `json:"pattern" validate:"required,max=64"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	seqs, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("list sequences", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sequences": seqs})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if err := ValidatePattern(pattern); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"pattern": pattern, "preview": h.service.Preview(pattern)})
}

func (h *Handler) setPattern(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req setPatternRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	seq, err := h.service.SetPattern(r.Context(), tenantID, kind, req.Pattern)
	if err != nil {
		h.logger.Error("set pattern", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, seq)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	issued, err := h.service.Issue(r.Context(), tenantID, kind)
	if err != nil {
		h.logger.Error("issue number", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if issued.Widened {
		h.logger.Warn("sequence widened", slog.String("tenant_id", tenantID.String()), slog.String("number", issued.Number))
	}
	httpx.JSON(w, http.StatusCreated, issued)
}
