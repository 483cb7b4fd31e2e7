package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, tenantID, id uuid.UUID) (Item, error)
	ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error)
	ListItemNames(ctx context.Context, tenantID uuid.UUID) ([]Item, error)
	ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]Item, error)
	ListMovements(ctx context.Context, tenantID, itemID uuid.UUID, limit int) ([]Movement, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LedgerTx
	InsertItem(ctx context.Context, item Item) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates catalogue and manual stock operations. Sale driven
// debits go through Debit and ReverseSale inside the sales transaction.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier LowStockNotifier
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService builds Service. audit and notifier may be nil.
func NewService(repo RepositoryPort, audit AuditPort, notifier LowStockNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateItem adds a catalogue entry. A similarly named existing item is
// reported through the warning and never blocks creation.
func (s *Service) CreateItem(ctx context.Context, in CreateItemInput) (Item, *DuplicateNameWarning, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	if err := validateCreate(in); err != nil {
		return Item{}, nil, err
	}
	var warning *DuplicateNameWarning
	if dup, err := s.CheckDuplicateName(ctx, in.TenantID, in.Name); err != nil {
		return Item{}, nil, err
	} else if dup != nil {
		warning = &DuplicateNameWarning{ExistingID: dup.ID, ExistingName: dup.Name}
	}

	now := s.clock()
	item := Item{
		ID:             uuid.New(),
		TenantID:       in.TenantID,
		Name:           in.Name,
		SKU:            in.SKU,
		Type:           in.Type,
		Stock:          in.OpeningStock,
		PurchasePrice:  in.PurchasePrice,
		RetailPrice:    in.RetailPrice,
		WholesalePrice: in.WholesalePrice,
		ReorderLevel:   in.ReorderLevel,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		if item.Stock > 0 {
			return tx.InsertMovement(ctx, newMovement(item, item.Stock, MovementOpening, nil, "opening stock", in.Actor))
		}
		return nil
	})
	if err != nil {
		return Item{}, nil, fmt.Errorf("inventory: create item: %w", err)
	}
	s.record(ctx, shared.AuditLog{
		TenantID: item.TenantID,
		Category: shared.AuditAdmin,
		Actor:    in.Actor,
		Action:   "inventory.item_create",
		Entity:   "inventory_item",
		EntityID: item.ID.String(),
		Meta:     map[string]any{"name": item.Name, "sku": item.SKU, "type": string(item.Type), "opening_stock": item.Stock},
	})
	return item, warning, nil
}

func validateCreate(in CreateItemInput) error {
	fields := map[string]string{}
	if in.TenantID == uuid.Nil {
		return fmt.Errorf("%w: tenant required", httpx.ErrUnauthorized)
	}
	if in.Name == "" {
		fields["name"] = "is required"
	}
	if in.SKU == "" {
		fields["sku"] = "is required"
	}
	if !in.Type.Valid() {
		fields["type"] = "must be PRODUCT or SERVICE"
	}
	if msg := shared.CountProblem(int64(in.OpeningStock), 0); msg != "" {
		fields["openingStock"] = msg
	}
	if in.Type == ItemTypeService && in.OpeningStock != 0 {
		fields["openingStock"] = "services carry no stock"
	}
	if msg := shared.CountProblem(int64(in.ReorderLevel), 0); msg != "" {
		fields["reorderLevel"] = msg
	}
	for name, price := range map[string]decimal.Decimal{
		"purchasePrice":  in.PurchasePrice,
		"retailPrice":    in.RetailPrice,
		"wholesalePrice": in.WholesalePrice,
	} {
		if msg := shared.MoneyProblem(price); msg != "" {
			fields[name] = msg
		}
	}
	if len(fields) > 0 {
		return &httpx.ValidationError{Fields: fields}
	}
	return nil
}

// CheckDuplicateName looks for an existing item with an equal or overlapping
// name, ignoring case. It returns nil when nothing matches.
func (s *Service) CheckDuplicateName(ctx context.Context, tenantID uuid.UUID, name string) (*Item, error) {
	items, err := s.repo.ListItemNames(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("inventory: duplicate check: %w", err)
	}
	return findDuplicate(name, items), nil
}

// Adjust applies a manual ADD or SET correction.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (Item, error) {
	var (
		item     Item
		movement *Movement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, movement, err = Adjust(ctx, tx, in)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	if movement != nil {
		s.record(ctx, shared.AuditLog{
			TenantID: in.TenantID,
			Category: shared.AuditAdmin,
			Actor:    in.Actor,
			Action:   "inventory.adjust_" + strings.ToLower(string(in.Mode)),
			Entity:   "inventory_item",
			EntityID: item.ID.String(),
			Reason:   in.Note,
			Meta:     map[string]any{"qty_change": movement.QtyChange, "balance_after": item.Stock},
		})
		if item.IsLowStock() {
			s.NotifyLowStock(ctx, []Item{item})
		}
	}
	return item, nil
}

// NotifyLowStock hands low stock events to the notifier. Failures are logged.
func (s *Service) NotifyLowStock(ctx context.Context, items []Item) {
	if s.notifier == nil {
		return
	}
	now := s.clock()
	for _, item := range items {
		if err := s.notifier.NotifyLowStock(ctx, NewLowStockEvent(item, now)); err != nil {
			s.logger.Warn("low stock notify", slog.String("item_id", item.ID.String()), slog.Any("error", err))
		}
	}
}

// GetItem returns an item of the tenant.
func (s *Service) GetItem(ctx context.Context, tenantID, id uuid.UUID) (Item, error) {
	return s.repo.GetItem(ctx, tenantID, id)
}

// ListItems pages through the tenant's catalogue.
func (s *Service) ListItems(ctx context.Context, filter ListFilter) ([]Item, shared.Pagination, error) {
	items, total, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("inventory: list items: %w", err)
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ListLowStock returns products at or below their reorder level.
func (s *Service) ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	return s.repo.ListLowStock(ctx, tenantID)
}

// StockCard lists the movements of one item, newest first.
func (s *Service) StockCard(ctx context.Context, tenantID, itemID uuid.UUID, limit int) ([]Movement, error) {
	if _, err := s.repo.GetItem(ctx, tenantID, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, tenantID, itemID, limit)
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.String("action", log.Action), slog.Any("error", err))
	}
}
