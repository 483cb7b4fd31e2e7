package sales

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
	"github.com/vetdesk/vetdesk/internal/tenancy"
)

// Handler manages sales endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listSales)
	r.Post("/", h.recordSale)
	r.Get("/{id}", h.showSale)
	r.Post("/{id}/payments", h.addPayment)
	r.Put("/{id}/items/{itemId}", h.setLineQuantity)
	r.Post("/{id}/items/{itemId}/remove-unit", h.removeLineUnit)
	r.Delete("/{id}", h.deleteSale)
}

type recordSaleRequest struct {
	ID            uuid.UUID           `json:"id"`
	Date          *time.Time          `json:"date"`
	ClientID      *uuid.UUID          `json:"clientId"`
	WalkInName    string              `json:"walkInName" validate:"max=200"`
	Items         []LineDraft         `json:"items" validate:"dive"`
	Discount      decimal.Decimal     `json:"discount"`
	TargetStatus  string              `json:"targetStatus" validate:"required,oneof=DRAFT PENDING PAID"`
	PaymentID     uuid.UUID           `json:"paymentId"`
	PayMethod     string              `json:"payMethod" validate:"omitempty,oneof=CASH CARD TRANSFER CREDIT"`
	PayAmount     decimal.NullDecimal `json:"payAmount"`
	AllowOversell bool                `json:"allowOversell"`
	AcceptPartial bool                `json:"acceptPartial"`
}

func (req recordSaleRequest) draft(tenantID uuid.UUID, actor string) (SaleDraft, error) {
	d := SaleDraft{
		ID:            req.ID,
		TenantID:      tenantID,
		ClientID:      req.ClientID,
		ClientName:    req.WalkInName,
		Lines:         req.Items,
		Discount:      req.Discount,
		TargetStatus:  Status(req.TargetStatus),
		AllowOversell: req.AllowOversell,
		AcceptPartial: req.AcceptPartial,
		Actor:         actor,
	}
	if req.Date != nil {
		d.Date = *req.Date
	}
	switch {
	case req.PayMethod != "":
		d.Payment = &PaymentDraft{ID: req.PaymentID, Method: PaymentMethod(req.PayMethod), Amount: req.PayAmount.Decimal}
	case req.PayAmount.Valid:
		return SaleDraft{}, httpx.NewValidationError("payMethod", "is required when payAmount is set")
	}
	return d, nil
}

type paymentRequest struct {
	ID            uuid.UUID       `json:"id"`
	Method        string          `json:"method" validate:"required,oneof=CASH CARD TRANSFER CREDIT"`
	Amount        decimal.Decimal `json:"amount"`
	ReceivedAt    *time.Time      `json:"receivedAt"`
	AllowOversell bool            `json:"allowOversell"`
}

type lineQuantityRequest struct {
	Quantity      int  `json:"quantity" validate:"gte=1,lte=2147483647"`
	AllowOversell bool `json:"allowOversell"`
}

type deleteSaleRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (h *Handler) recordSale(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req recordSaleRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	draft, err := req.draft(tenantID, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.RecordSale(r.Context(), draft)
	if err != nil {
		h.logger.Warn("record sale", slog.String("tenant_id", tenantID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.TenantFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	page, perPage := shared.PageParams(r)
	filter := ListFilter{
		TenantID: tenantID,
		Status:   Status(strings.ToUpper(q.Get("status"))),
		Page:     page,
		PerPage:  perPage,
	}
	if v := q.Get("client_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.RespondError(w, httpx.NewValidationError("client_id", "must be a valid uuid"))
			return
		}
		filter.ClientID = &id
	}
	if filter.From, err = parseDay(q.Get("from"), 0); err != nil {
		httpx.RespondError(w, httpx.NewValidationError("from", "must be YYYY-MM-DD"))
		return
	}
	if filter.To, err = parseDay(q.Get("to"), 1); err != nil {
		httpx.RespondError(w, httpx.NewValidationError("to", "must be YYYY-MM-DD"))
		return
	}
	sales, paging, err := h.service.ListSales(r.Context(), filter)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": sales, "pagination": paging})
}

// parseDay parses a date and shifts it by offsetDays, so "to" bounds are
// exclusive at the following midnight.
func parseDay(v string, offsetDays int) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	day, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	day = day.AddDate(0, 0, offsetDays)
	return &day, nil
}

func (h *Handler) showSale(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	sale, err := h.service.GetSale(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := PaymentInput{
		TenantID:      tenantID,
		SaleID:        id,
		Payment:       PaymentDraft{ID: req.ID, Method: PaymentMethod(req.Method), Amount: req.Amount},
		AllowOversell: req.AllowOversell,
		Actor:         shared.ActorFromContext(r.Context()),
	}
	if req.ReceivedAt != nil {
		in.Payment.ReceivedAt = *req.ReceivedAt
	}
	sale, err := h.service.AddPayment(r.Context(), in)
	if err != nil {
		h.logger.Warn("add payment", slog.String("sale_id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) setLineQuantity(w http.ResponseWriter, r *http.Request) {
	in, ok := h.lineScope(w, r)
	if !ok {
		return
	}
	var req lineQuantityRequest
	if err := httpx.Bind(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.AllowOversell = req.AllowOversell
	sale, err := h.service.SetLineQuantity(r.Context(), in, req.Quantity)
	if err != nil {
		h.logger.Warn("set line quantity", slog.String("sale_id", in.SaleID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) removeLineUnit(w http.ResponseWriter, r *http.Request) {
	in, ok := h.lineScope(w, r)
	if !ok {
		return
	}
	in.AllowOversell = r.URL.Query().Get("allowOversell") == "true"
	sale, err := h.service.RemoveLineUnit(r.Context(), in)
	if err != nil {
		h.logger.Warn("remove line unit", slog.String("sale_id", in.SaleID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) lineScope(w http.ResponseWriter, r *http.Request) (LineEdit, bool) {
	tenantID, id, ok := h.scope(w, r)
	if !ok {
		return LineEdit{}, false
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		httpx.RespondError(w, httpx.NewValidationError("itemId", "must be a valid uuid"))
		return LineEdit{}, false
	}
	return LineEdit{TenantID: tenantID, SaleID: id, ItemID: itemID, Actor: shared.ActorFromContext(r.Context())}, true
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	reason := r.URL.Query().Get("reason")
	if r.ContentLength > 0 {
		var req deleteSaleRequest
		if err := httpx.Bind(w, r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if req.Reason != "" {
			reason = req.Reason
		}
	}
	if err := h.service.DeleteSale(r.Context(), tenantID, id, reason, shared.ActorFromContext(r.Context())); err != nil {
		h.logger.Warn("delete sale", slog.String("sale_id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
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
