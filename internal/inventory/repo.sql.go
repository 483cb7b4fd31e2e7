package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/vetdesk/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a read-committed transaction. Items are
// locked row by row, so waiters see the stock committed before them.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTxLevel(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

const itemColumns = `id, tenant_id, name, sku, item_type, stock, purchase_price, retail_price, wholesale_price, reorder_level, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var (
		item     Item
		itemType string
	)
	err := row.Scan(&item.ID, &item.TenantID, &item.Name, &item.SKU, &itemType, &item.Stock,
		&item.PurchasePrice, &item.RetailPrice, &item.WholesalePrice, &item.ReorderLevel, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	item.Type = ItemType(itemType)
	return item, nil
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem loads one item of the tenant.
func (r *Repository) GetItem(ctx context.Context, tenantID, id uuid.UUID) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

// ListItems pages through the catalogue.
func (r *Repository) ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args), len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("item_type = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM inventory_items WHERE %s ORDER BY name ASC, id ASC LIMIT $%d OFFSET $%d`,
		itemColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectItems(rows)
	return items, total, err
}

// ListItemNames returns id and name of every item, used for duplicate detection.
func (r *Repository) ListItemNames(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM inventory_items WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item := Item{TenantID: tenantID}
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListLowStock returns products at or below their reorder level.
func (r *Repository) ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items
WHERE tenant_id = $1 AND item_type = 'PRODUCT' AND stock <= reorder_level
ORDER BY stock - reorder_level ASC, name ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// ListMovements returns the latest movements of an item, newest first.
func (r *Repository) ListMovements(ctx context.Context, tenantID, itemID uuid.UUID, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
WHERE tenant_id = $1 AND item_id = $2 ORDER BY created_at DESC, id DESC LIMIT $3`, tenantID, itemID, limit)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}

// TxStore runs ledger statements on a transaction. Other modules embed it to
// debit stock inside their own transactions.
type TxStore struct {
	q db.Querier
}

// NewTxStore binds a TxStore to q.
func NewTxStore(q db.Querier) *TxStore {
	return &TxStore{q: q}
}

// GetItemForUpdate locks the item row for the rest of the transaction.
func (s *TxStore) GetItemForUpdate(ctx context.Context, tenantID, itemID uuid.UUID) (Item, error) {
	return scanItem(s.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items
WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, itemID))
}

// UpdateStock overwrites the stock of a locked item.
func (s *TxStore) UpdateStock(ctx context.Context, tenantID, itemID uuid.UUID, stock int) error {
	tag, err := s.q.Exec(ctx, `UPDATE inventory_items SET stock = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`, tenantID, itemID, stock)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// InsertMovement appends a stock card entry.
func (s *TxStore) InsertMovement(ctx context.Context, m Movement) error {
	_, err := s.q.Exec(ctx, `INSERT INTO stock_movements (id, tenant_id, item_id, qty_change, kind, ref_sale_id, note, actor, balance_after, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ID, m.TenantID, m.ItemID, m.QtyChange, string(m.Kind), m.RefSaleID, m.Note, m.Actor, m.BalanceAfter, m.CreatedAt)
	return db.MapError(err)
}

// ListMovementsBySale returns every movement attributed to the sale.
func (s *TxStore) ListMovementsBySale(ctx context.Context, tenantID, saleID uuid.UUID) ([]Movement, error) {
	rows, err := s.q.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
WHERE tenant_id = $1 AND ref_sale_id = $2 ORDER BY created_at ASC, id ASC`, tenantID, saleID)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}

// GetItem reads an item without locking it.
func (s *TxStore) GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (Item, error) {
	return scanItem(s.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id = $1 AND id = $2`, tenantID, itemID))
}

// InsertItem creates a catalogue entry.
func (s *TxStore) InsertItem(ctx context.Context, item Item) error {
	_, err := s.q.Exec(ctx, `INSERT INTO inventory_items (id, tenant_id, name, sku, item_type, stock, purchase_price, retail_price, wholesale_price, reorder_level, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
		item.ID, item.TenantID, item.Name, item.SKU, string(item.Type), item.Stock,
		item.PurchasePrice, item.RetailPrice, item.WholesalePrice, item.ReorderLevel, item.CreatedAt)
	err = db.MapError(err)
	if errors.Is(err, db.ErrUniqueViolation) {
		return ErrDuplicateSKU
	}
	return err
}

const movementColumns = `id, tenant_id, item_id, qty_change, kind, ref_sale_id, note, actor, balance_after, created_at`

func collectMovements(rows pgx.Rows) ([]Movement, error) {
	defer rows.Close()
	out := []Movement{}
	for rows.Next() {
		var (
			m    Movement
			kind string
		)
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ItemID, &m.QtyChange, &kind, &m.RefSaleID, &m.Note, &m.Actor, &m.BalanceAfter, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Kind = MovementKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}
