package inventory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]Item
	movements []Movement
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[uuid.UUID]Item)}
}

func (r *memoryRepo) seed(tenant uuid.UUID, name string, typ ItemType, stock, reorder int) Item {
	item := Item{ID: uuid.New(), TenantID: tenant, Name: name, SKU: strings.ToUpper(name), Type: typ, Stock: stock, ReorderLevel: reorder, RetailPrice: decimal.NewFromInt(10)}
	r.items[item.ID] = item
	return item
}

// WithTx serialises transactions and restores the previous state on error,
// standing in for row locks and rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make(map[uuid.UUID]Item, len(r.items))
	for k, v := range r.items {
		items[k] = v
	}
	movements := append([]Movement(nil), r.movements...)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.items = items
		r.movements = movements
		return err
	}
	return nil
}

func (r *memoryRepo) GetItem(_ context.Context, tenantID, id uuid.UUID) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok || item.TenantID != tenantID {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (r *memoryRepo) ListItems(_ context.Context, filter ListFilter) ([]Item, int, error) {
	var out []Item
	for _, item := range r.items {
		if item.TenantID == filter.TenantID {
			out = append(out, item)
		}
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListItemNames(_ context.Context, tenantID uuid.UUID) ([]Item, error) {
	var out []Item
	for _, item := range r.items {
		if item.TenantID == tenantID {
			out = append(out, Item{ID: item.ID, TenantID: tenantID, Name: item.Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) ListLowStock(_ context.Context, tenantID uuid.UUID) ([]Item, error) {
	var out []Item
	for _, item := range r.items {
		if item.TenantID == tenantID && item.IsLowStock() {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListMovements(_ context.Context, tenantID, itemID uuid.UUID, _ int) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.TenantID == tenantID && m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetItemForUpdate(_ context.Context, tenantID, itemID uuid.UUID) (Item, error) {
	item, ok := tx.repo.items[itemID]
	if !ok || item.TenantID != tenantID {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (tx *memoryTx) UpdateStock(_ context.Context, tenantID, itemID uuid.UUID, stock int) error {
	item, ok := tx.repo.items[itemID]
	if !ok || item.TenantID != tenantID {
		return ErrItemNotFound
	}
	item.Stock = stock
	tx.repo.items[itemID] = item
	return nil
}

func (tx *memoryTx) InsertMovement(_ context.Context, m Movement) error {
	tx.repo.movements = append(tx.repo.movements, m)
	return nil
}

func (tx *memoryTx) ListMovementsBySale(_ context.Context, tenantID, saleID uuid.UUID) ([]Movement, error) {
	var out []Movement
	for _, m := range tx.repo.movements {
		if m.TenantID == tenantID && m.RefSaleID != nil && *m.RefSaleID == saleID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertItem(_ context.Context, item Item) error {
	for _, existing := range tx.repo.items {
		if existing.TenantID == item.TenantID && existing.SKU == item.SKU {
			return ErrDuplicateSKU
		}
	}
	tx.repo.items[item.ID] = item
	return nil
}

type notifierSpy struct {
	mu     sync.Mutex
	events []LowStockEvent
}

func (n *notifierSpy) NotifyLowStock(_ context.Context, evt LowStockEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}

type auditSpy struct{ logs []shared.AuditLog }

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func debitInTx(repo *memoryRepo, in DebitInput) (DebitResult, error) {
	var res DebitResult
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		var err error
		res, err = Debit(ctx, tx, in)
		return err
	})
	return res, err
}

func TestDebitDecreasesStockAndRecordsSaleRef(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	item := repo.seed(tenant, "Amoxicillin", ItemTypeProduct, 5, 1)
	sale := uuid.New()

	res, err := debitInTx(repo, DebitInput{TenantID: tenant, ItemID: item.ID, Qty: 2, RefSaleID: sale})
	require.NoError(t, err)
	require.Equal(t, 3, res.NewStock)
	require.False(t, res.LowStock)
	require.Equal(t, 3, repo.items[item.ID].Stock)

	require.Len(t, repo.movements, 1)
	m := repo.movements[0]
	require.Equal(t, -2, m.QtyChange)
	require.Equal(t, MovementSale, m.Kind)
	require.Equal(t, sale, *m.RefSaleID)
	require.Equal(t, 3, m.BalanceAfter)
}

func TestDebitServiceItemIsNoop(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	item := repo.seed(tenant, "Consultation", ItemTypeService, 0, 0)

	res, err := debitInTx(repo, DebitInput{TenantID: tenant, ItemID: item.ID, Qty: 3, RefSaleID: uuid.New()})
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Empty(t, repo.movements)
	require.Zero(t, repo.items[item.ID].Stock)
}

func TestDebitRejectsShortfallUnlessOversellAllowed(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	item := repo.seed(tenant, "Vaccine", ItemTypeProduct, 1, 0)

	_, err := debitInTx(repo, DebitInput{TenantID: tenant, ItemID: item.ID, Qty: 2, RefSaleID: uuid.New()})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.ErrorIs(t, err, httpx.ErrConflict)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	require.Equal(t, 1, stockErr.Available)
	require.Equal(t, 1, repo.items[item.ID].Stock)
	require.Empty(t, repo.movements)

	res, err := debitInTx(repo, DebitInput{TenantID: tenant, ItemID: item.ID, Qty: 2, AllowOversell: true, RefSaleID: uuid.New()})
	require.NoError(t, err)
	require.True(t, res.Oversold)
	require.Equal(t, -1, res.NewStock)
}

func TestDebitRejectsForeignTenant(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.seed(uuid.New(), "Vaccine", ItemTypeProduct, 10, 0)

	_, err := debitInTx(repo, DebitInput{TenantID: uuid.New(), ItemID: item.ID, Qty: 1, RefSaleID: uuid.New()})
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Equal(t, 10, repo.items[item.ID].Stock)
}

func TestConcurrentDebitsOnLastUnit(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	item := repo.seed(tenant, "Insulin", ItemTypeProduct, 1, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = debitInTx(repo, DebitInput{TenantID: tenant, ItemID: item.ID, Qty: 1, RefSaleID: uuid.New()})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, IsInsufficientStock(err))
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 0, repo.items[item.ID].Stock)
}

func TestStockNeverNegativeWithoutOversell(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	item := repo.seed(tenant, "Gauze", ItemTypeProduct, 7, 0)

	for _, qty := range []int{3, 5, 2, 4, 1, 1, 9} {
		_, _ = debitInTx(repo, DebitInput{TenantID: tenant, ItemID: item.ID, Qty: qty, RefSaleID: uuid.New()})
		require.GreaterOrEqual(t, repo.items[item.ID].Stock, 0)
	}
	require.Equal(t, 0, repo.items[item.ID].Stock)
}

func TestReverseSaleRestoresExactQuantities(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	a := repo.seed(tenant, "Amoxicillin", ItemTypeProduct, 5, 0)
	b := repo.seed(tenant, "Bandage", ItemTypeProduct, 10, 0)
	sale := uuid.New()
	other := uuid.New()

	_, err := debitInTx(repo, DebitInput{TenantID: tenant, ItemID: a.ID, Qty: 2, RefSaleID: sale})
	require.NoError(t, err)
	_, err = debitInTx(repo, DebitInput{TenantID: tenant, ItemID: b.ID, Qty: 4, RefSaleID: sale})
	require.NoError(t, err)
	_, err = debitInTx(repo, DebitInput{TenantID: tenant, ItemID: a.ID, Qty: 1, RefSaleID: other})
	require.NoError(t, err)

	err = repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		reversals, err := ReverseSale(ctx, tx, tenant, sale, "dr.kim")
		require.Len(t, reversals, 2)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 4, repo.items[a.ID].Stock)
	require.Equal(t, 10, repo.items[b.ID].Stock)

	err = repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		reversals, err := ReverseSale(ctx, tx, tenant, sale, "dr.kim")
		require.Empty(t, reversals)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 4, repo.items[a.ID].Stock)
}

func TestAdjustAddAndSet(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &notifierSpy{}
	audit := &auditSpy{}
	svc := NewService(repo, audit, notifier, nil)
	ctx := context.Background()
	tenant := uuid.New()
	item := repo.seed(tenant, "Syringe", ItemTypeProduct, 10, 3)

	got, err := svc.Adjust(ctx, AdjustInput{TenantID: tenant, ItemID: item.ID, Mode: AdjustAdd, Value: 5})
	require.NoError(t, err)
	require.Equal(t, 15, got.Stock)

	got, err = svc.Adjust(ctx, AdjustInput{TenantID: tenant, ItemID: item.ID, Mode: AdjustSet, Value: 2, Note: "count"})
	require.NoError(t, err)
	require.Equal(t, 2, got.Stock)
	require.Equal(t, -13, repo.movements[1].QtyChange)
	require.Equal(t, MovementAdjustSet, repo.movements[1].Kind)
	require.Nil(t, repo.movements[1].RefSaleID)
	require.Len(t, notifier.events, 1)
	require.Len(t, audit.logs, 2)
	require.Equal(t, "count", audit.logs[1].Reason)

	_, err = svc.Adjust(ctx, AdjustInput{TenantID: tenant, ItemID: item.ID, Mode: AdjustAdd, Value: -3})
	require.ErrorIs(t, err, ErrNegativeStock)
	_, err = svc.Adjust(ctx, AdjustInput{TenantID: tenant, ItemID: item.ID, Mode: AdjustSet, Value: -1})
	require.ErrorIs(t, err, ErrNegativeStock)
	_, err = svc.Adjust(ctx, AdjustInput{TenantID: tenant, ItemID: item.ID, Mode: AdjustAdd, Value: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	require.Equal(t, 2, repo.items[item.ID].Stock)
}

func TestAdjustStopsAtColumnRange(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	tenant := uuid.New()
	item := repo.seed(tenant, "Syringe", ItemTypeProduct, 10, 3)

	_, err := svc.Adjust(ctx, AdjustInput{TenantID: tenant, ItemID: item.ID, Mode: AdjustAdd, Value: shared.MaxCount})
	var vErr *httpx.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "value")
	_, err = svc.Adjust(ctx, AdjustInput{TenantID: tenant, ItemID: item.ID, Mode: AdjustSet, Value: shared.MaxCount + 1})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Equal(t, 10, repo.items[item.ID].Stock)
	require.Empty(t, repo.movements)

	got, err := svc.Adjust(ctx, AdjustInput{TenantID: tenant, ItemID: item.ID, Mode: AdjustSet, Value: shared.MaxCount})
	require.NoError(t, err)
	require.Equal(t, shared.MaxCount, got.Stock)
}

func TestCreateItemWarnsOnDuplicateName(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	tenant := uuid.New()
	existing := repo.seed(tenant, "Amoxicillin 250mg", ItemTypeProduct, 5, 0)

	item, warning, err := svc.CreateItem(ctx, CreateItemInput{
		TenantID:     tenant,
		Name:         "  AMOXICILLIN   250MG ",
		SKU:          "AMX-250-B",
		Type:         ItemTypeProduct,
		OpeningStock: 4,
		RetailPrice:  decimal.RequireFromString("12.50"),
	})
	require.NoError(t, err)
	require.NotNil(t, warning)
	require.Equal(t, existing.ID, warning.ExistingID)
	require.Equal(t, "AMOXICILLIN   250MG", item.Name)
	require.Equal(t, 4, repo.items[item.ID].Stock)
	require.Equal(t, MovementOpening, repo.movements[0].Kind)

	_, warning, err = svc.CreateItem(ctx, CreateItemInput{TenantID: tenant, Name: "Dental scaling", SKU: "SRV-1", Type: ItemTypeService})
	require.NoError(t, err)
	require.Nil(t, warning)
}

func TestCreateItemValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	ctx := context.Background()
	tenant := uuid.New()

	_, _, err := svc.CreateItem(ctx, CreateItemInput{TenantID: tenant, Name: "", SKU: "", Type: "GOOD"})
	var vErr *httpx.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "name")
	require.Contains(t, vErr.Fields, "sku")
	require.Contains(t, vErr.Fields, "type")

	_, _, err = svc.CreateItem(ctx, CreateItemInput{TenantID: tenant, Name: "Exam", SKU: "EX", Type: ItemTypeService, OpeningStock: 3})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = svc.CreateItem(ctx, CreateItemInput{TenantID: tenant, Name: "Tape", SKU: "T1", Type: ItemTypeProduct, RetailPrice: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = svc.CreateItem(ctx, CreateItemInput{
		TenantID:      tenant,
		Name:          "Tape",
		SKU:           "T1",
		Type:          ItemTypeProduct,
		OpeningStock:  shared.MaxCount + 1,
		RetailPrice:   decimal.RequireFromString("0.005"),
		PurchasePrice: decimal.RequireFromString("1000000000000"),
	})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "must be at most 2147483647", vErr.Fields["openingStock"])
	require.Equal(t, "must have at most 2 decimal places", vErr.Fields["retailPrice"])
	require.Contains(t, vErr.Fields, "purchasePrice")
}

func TestCreateItemDuplicateSKU(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	tenant := uuid.New()

	_, _, err := svc.CreateItem(ctx, CreateItemInput{TenantID: tenant, Name: "Tape", SKU: "T1", Type: ItemTypeProduct})
	require.NoError(t, err)
	_, _, err = svc.CreateItem(ctx, CreateItemInput{TenantID: tenant, Name: "Other tape", SKU: "T1", Type: ItemTypeProduct})
	require.ErrorIs(t, err, ErrDuplicateSKU)
}

func TestStockCardScopedByTenant(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	tenant := uuid.New()
	item := repo.seed(tenant, "Gauze", ItemTypeProduct, 5, 0)
	_, err := debitInTx(repo, DebitInput{TenantID: tenant, ItemID: item.ID, Qty: 1, RefSaleID: uuid.New()})
	require.NoError(t, err)

	moves, err := svc.StockCard(context.Background(), tenant, item.ID, 10)
	require.NoError(t, err)
	require.Len(t, moves, 1)

	_, err = svc.StockCard(context.Background(), uuid.New(), item.ID, 10)
	require.ErrorIs(t, err, ErrItemNotFound)
}
