package clients

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
	"github.com/vetdesk/vetdesk/internal/tenancy"
)

// Handler exposes client and patient endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Get("/{id}/patients", h.listPatients)
	r.Post("/{id}/patients", h.createPatient)
}

type createClientResponse struct {
	Client   Client   `json:"client"`
	Warnings []string `json:"warnings,omitempty"`
}

type createPatientResponse struct {
	Patient  Patient  `json:"patient"`
	Warnings []string `json:"warnings,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, perPage := shared.PageParams(r)
	clients, paging, err := h.service.ListClients(r.Context(), ListFilter{
		TenantID: tenantID,
		Search:   r.URL.Query().Get("q"),
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		h.logger.Error("list clients", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"clients": clients, "pagination": paging})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in CreateClientInput
	if err := httpx.Bind(w, r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.TenantID = tenantID
	in.Actor = shared.ActorFromContext(r.Context())
	client, warnings, err := h.service.CreateClient(r.Context(), in)
	if err != nil {
		h.logger.Warn("create client", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createClientResponse{Client: client, Warnings: warnings})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	client, err := h.service.GetClient(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) listPatients(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	patients, err := h.service.ListPatients(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"patients": patients})
}

func (h *Handler) createPatient(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	var in CreatePatientInput
	if err := httpx.Bind(w, r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.TenantID = tenantID
	in.ClientID = id
	in.Actor = shared.ActorFromContext(r.Context())
	patient, warnings, err := h.service.CreatePatient(r.Context(), in)
	if err != nil {
		h.logger.Warn("create patient", slog.String("client_id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createPatientResponse{Patient: patient, Warnings: warnings})
}

func scope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.NewValidationError("id", "must be a valid uuid"))
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, id, true
}
