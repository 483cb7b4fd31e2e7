package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vetdesk/vetdesk/internal/inventory"
	"github.com/vetdesk/vetdesk/internal/numbering"
	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
	"github.com/vetdesk/vetdesk/internal/tenancy"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, tenantID, id uuid.UUID) (*Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error)
}

// TxRepository is everything a sale save touches. Numbering, stock debits,
// the sale rows and the audit entry share one transaction.
type TxRepository interface {
	inventory.LedgerTx
	numbering.Sequencer
	GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (inventory.Item, error)
	GetClientName(ctx context.Context, tenantID, clientID uuid.UUID) (string, error)
	GetSaleForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Sale, error)
	InsertSale(ctx context.Context, sale *Sale) error
	UpdateSale(ctx context.Context, sale *Sale) error
	ReplaceItems(ctx context.Context, sale *Sale) error
	InsertPayments(ctx context.Context, sale *Sale, payments []Payment) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// SettingsPort supplies the tenant's tax rate and oversell policy.
type SettingsPort interface {
	Get(ctx context.Context, tenantID uuid.UUID) (tenancy.Settings, error)
}

// MetricsPort receives counters after commit.
type MetricsPort interface {
	SaleRecorded(status string)
	SaleVoided()
	StockDebits(outcome string, n int)
}

// CacheInvalidator drops cached reports of a tenant.
type CacheInvalidator interface {
	Bump(ctx context.Context, tenantID uuid.UUID) error
}

// Service is the reconciliation service: it keeps sales, stock, numbering
// and the audit trail consistent.
type Service struct {
	repo     RepositoryPort
	settings SettingsPort
	notifier inventory.LowStockNotifier
	metrics  MetricsPort
	cache    CacheInvalidator
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService builds Service. notifier, metrics and cache may be nil.
func NewService(repo RepositoryPort, settings SettingsPort, notifier inventory.LowStockNotifier, metrics MetricsPort, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		settings: settings,
		notifier: notifier,
		metrics:  metrics,
		cache:    cache,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// effects are applied once the transaction has committed.
type effects struct {
	lowStock []inventory.Item
	debits   map[string]int
}

func (fx *effects) countDebit(outcome string) {
	if fx.debits == nil {
		fx.debits = map[string]int{}
	}
	fx.debits[outcome]++
}

// ============================================================================
// RECORD SALE
// ============================================================================

// RecordSale validates and persists a draft, moving the sale to the
// requested status. The returned sale is the stored state.
func (s *Service) RecordSale(ctx context.Context, draft SaleDraft) (*Sale, error) {
	draft.ClientName = strings.TrimSpace(draft.ClientName)
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx, draft.TenantID)
	if err != nil {
		return nil, err
	}
	oversell := settings.AllowOversell && draft.AllowOversell

	var (
		sale *Sale
		fx   effects
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fx = effects{}
		var err error
		sale, err = s.save(ctx, tx, draft, settings.TaxRate, oversell, &fx)
		return err
	})
	if err != nil {
		if inventory.IsInsufficientStock(err) && s.metrics != nil {
			s.metrics.StockDebits("rejected", 1)
		}
		return nil, fmt.Errorf("sales: record sale: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SaleRecorded(string(sale.Status))
	}
	s.afterCommit(ctx, sale.TenantID, fx)
	return sale, nil
}

func validateDraft(d SaleDraft) error {
	if d.TenantID == uuid.Nil {
		return tenancy.ErrTenantRequired
	}
	if len(d.Lines) == 0 {
		return ErrEmptyCart
	}
	fields := map[string]string{}
	switch d.TargetStatus {
	case StatusDraft, StatusPending, StatusPaid:
	default:
		fields["targetStatus"] = "must be DRAFT, PENDING or PAID"
	}
	if msg := shared.MoneyProblem(d.Discount); msg != "" {
		fields["discount"] = msg
	}
	for i, l := range d.Lines {
		if l.InventoryItemID == uuid.Nil {
			fields[fmt.Sprintf("items[%d].inventoryItemId", i)] = "is required"
		}
		if msg := shared.CountProblem(int64(l.Quantity), 1); msg != "" {
			fields[fmt.Sprintf("items[%d].quantity", i)] = msg
		}
		if l.UnitPrice.Valid {
			if msg := shared.MoneyProblem(l.UnitPrice.Decimal); msg != "" {
				fields[fmt.Sprintf("items[%d].unitPrice", i)] = msg
			}
		}
	}
	if d.Payment != nil {
		if d.TargetStatus == StatusDraft {
			fields["payment"] = "drafts take no payments"
		}
		for k, v := range validatePayment(*d.Payment) {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		return &httpx.ValidationError{Fields: fields}
	}
	return nil
}

func checkTotals(t Totals) error {
	fields := map[string]string{}
	for name, v := range map[string]decimal.Decimal{"subtotal": t.Subtotal, "tax": t.Tax, "total": t.Total} {
		if msg := shared.MoneyProblem(v); msg != "" {
			fields[name] = msg
		}
	}
	if len(fields) > 0 {
		return &httpx.ValidationError{Fields: fields}
	}
	return nil
}

func validatePayment(p PaymentDraft) map[string]string {
	fields := map[string]string{}
	if !p.Method.Valid() {
		fields["payment.method"] = "must be CASH, CARD, TRANSFER or CREDIT"
	}
	if msg := shared.MoneyProblem(p.Amount); msg != "" {
		fields["payment.amount"] = msg
	}
	return fields
}

func (s *Service) save(ctx context.Context, tx TxRepository, draft SaleDraft, taxRate decimal.Decimal, oversell bool, fx *effects) (*Sale, error) {
	now := s.clock()
	var existing *Sale
	if draft.ID != uuid.Nil {
		found, err := tx.GetSaleForUpdate(ctx, draft.TenantID, draft.ID)
		switch {
		case err == nil:
			existing = found
		case !errors.Is(err, ErrSaleNotFound):
			return nil, err
		}
	}
	var from Status
	if existing != nil {
		from = existing.Status
	}
	if err := checkTransition(from, draft.TargetStatus); err != nil {
		return nil, err
	}

	cart, err := s.buildCart(ctx, tx, draft, existing)
	if err != nil {
		return nil, err
	}
	clientID, clientName, err := resolveClient(ctx, tx, draft)
	if err != nil {
		return nil, err
	}
	items := cart.Items()
	if from == StatusPaid && !sameContent(existing, items, draft.Discount, clientID, clientName) {
		return nil, ErrSaleLocked
	}

	sale := existing
	if sale == nil {
		id := draft.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		sale = &Sale{ID: id, TenantID: draft.TenantID, Date: now, CreatedBy: draft.Actor, CreatedAt: now}
	}
	if from != StatusPaid {
		if !draft.Date.IsZero() {
			sale.Date = draft.Date.UTC()
		}
		totals := cart.Totals(taxRate, draft.Discount)
		if err := checkTotals(totals); err != nil {
			return nil, err
		}
		sale.ClientID = clientID
		sale.ClientName = clientName
		sale.Items = items
		sale.Discount = draft.Discount
		sale.Subtotal = totals.Subtotal
		sale.Tax = totals.Tax
		sale.Total = totals.Total
	}
	sale.UpdatedAt = now

	var added []Payment
	if draft.Payment != nil {
		if p, ok := appendPayment(sale, *draft.Payment, draft.Actor, now); ok {
			added = append(added, p)
		}
	}
	sale.refreshPayments()

	target := draft.TargetStatus
	switch {
	case target == StatusPaid && from != StatusPaid && sale.AmountPaid.LessThan(sale.Total):
		if !draft.AcceptPartial {
			return nil, &ShortfallError{Total: sale.Total, Paid: sale.AmountPaid}
		}
		target = StatusPending
		sale.Warnings = append(sale.Warnings, fmt.Sprintf("partial payment: %s of %s collected, sale saved as PENDING",
			sale.AmountPaid.StringFixed(2), sale.Total.StringFixed(2)))
	case target == StatusPending && sale.coveredByPayments():
		target = StatusPaid
		sale.Warnings = append(sale.Warnings, fmt.Sprintf("payments of %s cover the total, sale saved as PAID",
			sale.AmountPaid.StringFixed(2)))
	}

	if target != StatusDraft && sale.InvoiceNumber == nil {
		issued, err := numbering.Issue(ctx, tx, sale.TenantID, numbering.KindInvoice, now)
		if err != nil {
			return nil, err
		}
		sale.InvoiceNumber = &issued.Number
		if w := issued.Warning(); w != "" {
			sale.Warnings = append(sale.Warnings, w)
		}
	}
	if target == StatusPaid && sale.ReceiptNumber == nil {
		if err := settle(ctx, tx, sale, oversell, draft.Actor, now, fx); err != nil {
			return nil, err
		}
	}
	sale.Status = target

	if existing == nil {
		if err := tx.InsertSale(ctx, sale); err != nil {
			return nil, err
		}
	} else if err := tx.UpdateSale(ctx, sale); err != nil {
		return nil, err
	}
	if from != StatusPaid {
		if err := tx.ReplaceItems(ctx, sale); err != nil {
			return nil, err
		}
	}
	if err := tx.InsertPayments(ctx, sale, added); err != nil {
		return nil, err
	}

	action := "sale.create"
	if existing != nil {
		action = "sale.update"
	}
	err = tx.RecordAudit(ctx, shared.AuditLog{
		TenantID: sale.TenantID,
		Category: shared.AuditFinancial,
		Actor:    draft.Actor,
		Action:   action,
		Entity:   "sale",
		EntityID: sale.ID.String(),
		Details:  fmt.Sprintf("%s total %s", sale.Status, sale.Total.StringFixed(2)),
		Meta:     auditMeta(sale, from, len(added)),
		At:       now,
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// buildCart snapshots inventory data for every requested line. Lines already
// on the sale keep their price unless the draft names a new one.
func (s *Service) buildCart(ctx context.Context, tx TxRepository, draft SaleDraft, existing *Sale) (*Cart, error) {
	prior := map[uuid.UUID]SaleItem{}
	if existing != nil {
		for _, it := range existing.Items {
			prior[it.InventoryItemID] = it
		}
	}
	cart := NewCart(nil)
	for _, line := range draft.Lines {
		var item SaleItem
		if old, ok := prior[line.InventoryItemID]; ok && existing.Status == StatusPaid {
			item = old
		} else {
			inv, err := tx.GetItem(ctx, draft.TenantID, line.InventoryItemID)
			if err != nil {
				return nil, err
			}
			item = SaleItem{
				InventoryItemID: inv.ID,
				Name:            inv.Name,
				SKU:             inv.SKU,
				ItemType:        inv.Type,
				UnitPrice:       inv.RetailPrice,
			}
			if old, ok := prior[line.InventoryItemID]; ok {
				item.UnitPrice = old.UnitPrice
			}
		}
		if line.UnitPrice.Valid {
			item.UnitPrice = line.UnitPrice.Decimal
		}
		item.Quantity = line.Quantity
		if err := cart.Add(item); err != nil {
			return nil, err
		}
	}
	if cart.Empty() {
		return nil, ErrEmptyCart
	}
	return cart, nil
}

func resolveClient(ctx context.Context, tx TxRepository, draft SaleDraft) (*uuid.UUID, string, error) {
	if draft.ClientID == nil || *draft.ClientID == uuid.Nil {
		name := draft.ClientName
		if name == "" {
			name = "Walk-in"
		}
		return nil, name, nil
	}
	name, err := tx.GetClientName(ctx, draft.TenantID, *draft.ClientID)
	if err != nil {
		return nil, "", err
	}
	id := *draft.ClientID
	return &id, name, nil
}

// appendPayment adds p unless a payment with the same id is already present.
func appendPayment(sale *Sale, p PaymentDraft, actor string, now time.Time) (Payment, bool) {
	if p.ID != uuid.Nil && sale.hasPayment(p.ID) {
		return Payment{}, false
	}
	payment := Payment{
		ID:         p.ID,
		Method:     p.Method,
		Amount:     p.Amount,
		ReceivedAt: p.ReceivedAt.UTC(),
		RecordedBy: actor,
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if p.ReceivedAt.IsZero() {
		payment.ReceivedAt = now
	}
	sale.Payments = append(sale.Payments, payment)
	return payment, true
}

// settle runs the first transition into PAID: every product line is debited
// and the receipt number is issued. Any failed debit aborts the whole save.
func settle(ctx context.Context, tx TxRepository, sale *Sale, oversell bool, actor string, now time.Time, fx *effects) error {
	qty := map[uuid.UUID]int{}
	ids := make([]uuid.UUID, 0, len(sale.Items))
	for _, it := range sale.Items {
		if _, seen := qty[it.InventoryItemID]; !seen {
			ids = append(ids, it.InventoryItemID)
		}
		qty[it.InventoryItemID] += it.Quantity
	}
	inventory.SortItemIDs(ids)
	for _, id := range ids {
		res, err := inventory.Debit(ctx, tx, inventory.DebitInput{
			TenantID:      sale.TenantID,
			ItemID:        id,
			Qty:           qty[id],
			AllowOversell: oversell,
			RefSaleID:     sale.ID,
			Actor:         actor,
		})
		if err != nil {
			return err
		}
		switch {
		case res.Skipped:
			fx.countDebit("skipped")
			continue
		case res.Oversold:
			fx.countDebit("oversold")
			sale.Warnings = append(sale.Warnings, fmt.Sprintf("%s oversold: stock now %d", res.Item.Name, res.NewStock))
		default:
			fx.countDebit("ok")
		}
		if res.LowStock {
			fx.lowStock = append(fx.lowStock, res.Item)
		}
	}
	issued, err := numbering.Issue(ctx, tx, sale.TenantID, numbering.KindReceipt, now)
	if err != nil {
		return err
	}
	sale.ReceiptNumber = &issued.Number
	if w := issued.Warning(); w != "" {
		sale.Warnings = append(sale.Warnings, w)
	}
	return nil
}

func auditMeta(sale *Sale, from Status, paymentsAdded int) map[string]any {
	meta := map[string]any{
		"status_before":  string(from),
		"status_after":   string(sale.Status),
		"total":          sale.Total.StringFixed(2),
		"amount_paid":    sale.AmountPaid.StringFixed(2),
		"payments_added": paymentsAdded,
	}
	if sale.InvoiceNumber != nil {
		meta["invoice_number"] = *sale.InvoiceNumber
	}
	if sale.ReceiptNumber != nil {
		meta["receipt_number"] = *sale.ReceiptNumber
	}
	return meta
}

// ============================================================================
// PAYMENTS
// ============================================================================

// PaymentInput appends a payment to an existing sale.
type PaymentInput struct {
	TenantID      uuid.UUID
	SaleID        uuid.UUID
	Payment       PaymentDraft
	AllowOversell bool
	Actor         string
}

// AddPayment appends a payment. A PENDING sale whose payments reach the total
// becomes PAID, with the stock debit and receipt number that entails.
// Repeating a payment id is a no-op.
func (s *Service) AddPayment(ctx context.Context, in PaymentInput) (*Sale, error) {
	if in.TenantID == uuid.Nil {
		return nil, tenancy.ErrTenantRequired
	}
	if fields := validatePayment(in.Payment); len(fields) > 0 {
		return nil, &httpx.ValidationError{Fields: fields}
	}
	settings, err := s.settings.Get(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	oversell := settings.AllowOversell && in.AllowOversell

	var (
		sale *Sale
		fx   effects
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fx = effects{}
		now := s.clock()
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, in.TenantID, in.SaleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusVoid:
			return ErrAlreadyVoid
		case StatusDraft:
			return fmt.Errorf("%w: drafts take no payments", ErrInvalidTransition)
		}
		payment, ok := appendPayment(sale, in.Payment, in.Actor, now)
		if !ok {
			sale.refreshPayments()
			return nil
		}
		sale.refreshPayments()
		from := sale.Status
		if err := promoteIfCovered(ctx, tx, sale, oversell, in.Actor, now, &fx); err != nil {
			return err
		}
		sale.UpdatedAt = now
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}
		if err := tx.InsertPayments(ctx, sale, []Payment{payment}); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			TenantID: sale.TenantID,
			Category: shared.AuditFinancial,
			Actor:    in.Actor,
			Action:   "sale.payment_add",
			Entity:   "sale",
			EntityID: sale.ID.String(),
			Details:  fmt.Sprintf("%s %s", payment.Method, payment.Amount.StringFixed(2)),
			Meta:     auditMeta(sale, from, 1),
			At:       now,
		})
	})
	if err != nil {
		if inventory.IsInsufficientStock(err) && s.metrics != nil {
			s.metrics.StockDebits("rejected", 1)
		}
		return nil, fmt.Errorf("sales: add payment: %w", err)
	}
	if s.metrics != nil && len(fx.debits) > 0 {
		s.metrics.SaleRecorded(string(sale.Status))
	}
	s.afterCommit(ctx, sale.TenantID, fx)
	return sale, nil
}

// promoteIfCovered moves a PENDING sale whose payments reach the total to
// PAID, with the stock debit and receipt number that entails.
func promoteIfCovered(ctx context.Context, tx TxRepository, sale *Sale, oversell bool, actor string, now time.Time, fx *effects) error {
	if sale.Status != StatusPending || !sale.coveredByPayments() {
		return nil
	}
	if sale.InvoiceNumber == nil {
		issued, err := numbering.Issue(ctx, tx, sale.TenantID, numbering.KindInvoice, now)
		if err != nil {
			return err
		}
		sale.InvoiceNumber = &issued.Number
	}
	if err := settle(ctx, tx, sale, oversell, actor, now, fx); err != nil {
		return err
	}
	sale.Status = StatusPaid
	return nil
}

// ============================================================================
// LINE EDITS
// ============================================================================

// LineEdit targets one line of an open sale.
type LineEdit struct {
	TenantID      uuid.UUID
	SaleID        uuid.UUID
	ItemID        uuid.UUID
	AllowOversell bool
	Actor         string
}

// SetLineQuantity overwrites the quantity of one line of a DRAFT or PENDING
// sale and recomputes its totals.
func (s *Service) SetLineQuantity(ctx context.Context, in LineEdit, qty int) (*Sale, error) {
	return s.editLines(ctx, in, "sale.line_set", func(c *Cart) error {
		return c.SetQuantity(in.ItemID, qty)
	})
}

// RemoveLineUnit takes one unit off a line of a DRAFT or PENDING sale. The
// last unit of the last line cannot be removed; void the sale instead.
func (s *Service) RemoveLineUnit(ctx context.Context, in LineEdit) (*Sale, error) {
	return s.editLines(ctx, in, "sale.line_remove_unit", func(c *Cart) error {
		return c.RemoveUnit(in.ItemID)
	})
}

func (s *Service) editLines(ctx context.Context, in LineEdit, action string, edit func(*Cart) error) (*Sale, error) {
	if in.TenantID == uuid.Nil {
		return nil, tenancy.ErrTenantRequired
	}
	settings, err := s.settings.Get(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	oversell := settings.AllowOversell && in.AllowOversell

	var (
		sale *Sale
		fx   effects
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fx = effects{}
		now := s.clock()
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, in.TenantID, in.SaleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusVoid:
			return ErrAlreadyVoid
		case StatusPaid:
			return ErrSaleLocked
		}
		cart := NewCart(sale.Items)
		if err := edit(cart); err != nil {
			return err
		}
		if cart.Empty() {
			return ErrEmptyCart
		}
		totals := cart.Totals(settings.TaxRate, sale.Discount)
		if err := checkTotals(totals); err != nil {
			return err
		}
		from := sale.Status
		sale.Items = cart.Items()
		sale.Subtotal = totals.Subtotal
		sale.Tax = totals.Tax
		sale.Total = totals.Total
		sale.UpdatedAt = now
		sale.refreshPayments()
		if err := promoteIfCovered(ctx, tx, sale, oversell, in.Actor, now, &fx); err != nil {
			return err
		}
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}
		if err := tx.ReplaceItems(ctx, sale); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			TenantID: sale.TenantID,
			Category: shared.AuditFinancial,
			Actor:    in.Actor,
			Action:   action,
			Entity:   "sale",
			EntityID: sale.ID.String(),
			Details:  fmt.Sprintf("item %s, total %s", in.ItemID, sale.Total.StringFixed(2)),
			Meta:     auditMeta(sale, from, 0),
			At:       now,
		})
	})
	if err != nil {
		if inventory.IsInsufficientStock(err) && s.metrics != nil {
			s.metrics.StockDebits("rejected", 1)
		}
		return nil, fmt.Errorf("sales: edit lines: %w", err)
	}
	if s.metrics != nil && len(fx.debits) > 0 {
		s.metrics.SaleRecorded(string(sale.Status))
	}
	s.afterCommit(ctx, sale.TenantID, fx)
	return sale, nil
}

// ============================================================================
// VOID
// ============================================================================

// DeleteSale voids a sale. The stock its own movements took out is credited
// back and the reason is kept on the sale and in the audit trail.
func (s *Service) DeleteSale(ctx context.Context, tenantID, saleID uuid.UUID, reason, actor string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if tenantID == uuid.Nil {
		return tenancy.ErrTenantRequired
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		now := s.clock()
		sale, err := tx.GetSaleForUpdate(ctx, tenantID, saleID)
		if err != nil {
			return err
		}
		if sale.Status == StatusVoid {
			return ErrAlreadyVoid
		}
		reversals, err := inventory.ReverseSale(ctx, tx, tenantID, saleID, actor)
		if err != nil {
			return err
		}
		from := sale.Status
		sale.Status = StatusVoid
		sale.VoidReason = reason
		sale.VoidedAt = &now
		sale.UpdatedAt = now
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}
		meta := auditMeta(sale, from, 0)
		meta["restocked_items"] = len(reversals)
		return tx.RecordAudit(ctx, shared.AuditLog{
			TenantID: tenantID,
			Category: shared.AuditFinancial,
			Actor:    actor,
			Action:   "sale.void",
			Entity:   "sale",
			EntityID: saleID.String(),
			Details:  reason,
			Reason:   reason,
			Meta:     meta,
			At:       now,
		})
	})
	if err != nil {
		return fmt.Errorf("sales: delete sale: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SaleVoided()
	}
	s.afterCommit(ctx, tenantID, effects{})
	return nil
}

// ============================================================================
// QUERIES
// ============================================================================

// GetSale returns a sale of the tenant.
func (s *Service) GetSale(ctx context.Context, tenantID, id uuid.UUID) (*Sale, error) {
	return s.repo.GetSale(ctx, tenantID, id)
}

// ListSales pages through the tenant's sales, newest first.
func (s *Service) ListSales(ctx context.Context, filter ListFilter) ([]Sale, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, httpx.NewValidationError("status", "unknown status")
	}
	sales, total, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("sales: list: %w", err)
	}
	return sales, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) afterCommit(ctx context.Context, tenantID uuid.UUID, fx effects) {
	if s.metrics != nil {
		for outcome, n := range fx.debits {
			s.metrics.StockDebits(outcome, n)
		}
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx, tenantID); err != nil {
			s.logger.Warn("report cache bump", slog.String("tenant_id", tenantID.String()), slog.Any("error", err))
		}
	}
	if s.notifier == nil {
		return
	}
	now := s.clock()
	for _, item := range fx.lowStock {
		if err := s.notifier.NotifyLowStock(ctx, inventory.NewLowStockEvent(item, now)); err != nil {
			s.logger.Warn("low stock notify", slog.String("item_id", item.ID.String()), slog.Any("error", err))
		}
	}
}
