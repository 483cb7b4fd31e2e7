package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
	"github.com/vetdesk/vetdesk/internal/tenancy"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Post("/items", h.createItem)
	r.Get("/items/{id}", h.getItem)
	r.Post("/items/{id}/adjust", h.adjust)
	r.Get("/items/{id}/movements", h.movements)
	r.Get("/low-stock", h.lowStock)
	r.Get("/duplicates", h.duplicates)
}

type createItemRequest struct {
	Name           string          `json:"name" validate:"required,max=200"`
	SKU            string          `json:"sku" validate:"required,max=64"`
	Type           string          `json:"type" validate:"required,oneof=PRODUCT SERVICE"`
	OpeningStock   int             `json:"openingStock" validate:"gte=0"`
	PurchasePrice  decimal.Decimal `json:"purchasePrice"`
	RetailPrice    decimal.Decimal `json:"retailPrice"`
	WholesalePrice decimal.Decimal `json:"wholesalePrice"`
	ReorderLevel   int             `json:"reorderLevel" validate:"gte=0"`
}

type createItemResponse struct {
	Item     Item     `json:"item"`
	Warnings []string `json:"warnings,omitempty"`
	// Duplicate points at the existing item that triggered the warning.
	Duplicate *DuplicateNameWarning `json:"duplicate,omitempty"`
}

type adjustRequest struct {
	Mode  string `json:"mode" validate:"required,oneof=ADD SET"`
	Value int    `json:"value"`
	Note  string `json:"note" validate:"max=500"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, perPage := shared.PageParams(r)
	filter := ListFilter{
		TenantID: tenantID,
		Search:   r.URL.Query().Get("q"),
		Type:     ItemType(strings.ToUpper(r.URL.Query().Get("type"))),
		Page:     page,
		PerPage:  perPage,
	}
	if filter.Type != "" && !filter.Type.Valid() {
		httpx.RespondError(w, httpx.NewValidationError("type", "must be PRODUCT or SERVICE"))
		return
	}
	items, paging, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		h.logger.Error("list items", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": paging})
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createItemRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, warning, err := h.service.CreateItem(r.Context(), CreateItemInput{
		TenantID:       tenantID,
		Name:           req.Name,
		SKU:            req.SKU,
		Type:           ItemType(req.Type),
		OpeningStock:   req.OpeningStock,
		PurchasePrice:  req.PurchasePrice,
		RetailPrice:    req.RetailPrice,
		WholesalePrice: req.WholesalePrice,
		ReorderLevel:   req.ReorderLevel,
		Actor:          shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Warn("create item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := createItemResponse{Item: item, Duplicate: warning}
	if warning != nil {
		resp.Warnings = []string{warning.String()}
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	item, err := h.service.GetItem(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.Adjust(r.Context(), AdjustInput{
		TenantID: tenantID,
		ItemID:   id,
		Mode:     AdjustMode(req.Mode),
		Value:    req.Value,
		Note:     req.Note,
		Actor:    shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Warn("adjust stock", slog.String("item_id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	moves, err := h.service.StockCard(r.Context(), tenantID, id, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": moves})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListLowStock(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("list low stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) duplicates(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		httpx.RespondError(w, httpx.NewValidationError("name", "is required"))
		return
	}
	match, err := h.service.CheckDuplicateName(r.Context(), tenantID, name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"match": match})
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
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
