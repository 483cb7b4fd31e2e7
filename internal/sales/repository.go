package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/vetdesk/internal/inventory"
	"github.com/vetdesk/vetdesk/internal/numbering"
	"github.com/vetdesk/vetdesk/internal/platform/db"
	"github.com/vetdesk/vetdesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for sales.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a sales repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn in a read-committed transaction. The inventory ledger and
// numbering stores are bound to the same transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTxLevel(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, newTxRepo(tx))
	})
}

type txRepo struct {
	*inventory.TxStore
	*numbering.Store
	q     db.Querier
	audit *shared.AuditLogger
}

func newTxRepo(q db.Querier) *txRepo {
	return &txRepo{
		TxStore: inventory.NewTxStore(q),
		Store:   numbering.NewStore(q),
		q:       q,
		audit:   shared.NewAuditLogger(q),
	}
}

const saleColumns = `id, tenant_id, sale_date, client_id, client_name, discount, subtotal, tax, total, status,
invoice_number, receipt_number, void_reason, voided_at, created_by, created_at, updated_at`

func scanSale(row pgx.Row) (*Sale, error) {
	var (
		s      Sale
		status string
	)
	err := row.Scan(&s.ID, &s.TenantID, &s.Date, &s.ClientID, &s.ClientName, &s.Discount, &s.Subtotal, &s.Tax, &s.Total, &status,
		&s.InvoiceNumber, &s.ReceiptNumber, &s.VoidReason, &s.VoidedAt, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	s.Status = Status(status)
	return &s, nil
}

// GetSale loads a sale with its lines and payments.
func (r *Repository) GetSale(ctx context.Context, tenantID, id uuid.UUID) (*Sale, error) {
	return getSale(ctx, r.pool, tenantID, id, false)
}

func getSale(ctx context.Context, q db.Querier, tenantID, id uuid.UUID, lock bool) (*Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE tenant_id = $1 AND id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	sale, err := scanSale(q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return nil, err
	}
	if err := loadDetails(ctx, q, tenantID, []*Sale{sale}); err != nil {
		return nil, err
	}
	return sale, nil
}

// ListSales pages through sales, newest first.
func (r *Repository) ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("sale_date < $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE `+clause, args...).Scan(&total); err != nil {
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
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM sales WHERE %s ORDER BY sale_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		saleColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var ptrs []*Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		ptrs = append(ptrs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := loadDetails(ctx, r.pool, filter.TenantID, ptrs); err != nil {
		return nil, 0, err
	}
	out := make([]Sale, 0, len(ptrs))
	for _, s := range ptrs {
		out = append(out, *s)
	}
	return out, total, nil
}

// loadDetails attaches lines and payments to sales with two queries.
func loadDetails(ctx context.Context, q db.Querier, tenantID uuid.UUID, sales []*Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(sales))
	byID := make(map[uuid.UUID]*Sale, len(sales))
	for i, s := range sales {
		ids[i] = s.ID
		byID[s.ID] = s
		s.Items = []SaleItem{}
		s.Payments = []Payment{}
	}

	rows, err := q.Query(ctx, `SELECT sale_id, inventory_item_id, name, sku, item_type, quantity, unit_price, line_total
FROM sale_items WHERE tenant_id = $1 AND sale_id = ANY($2) ORDER BY sale_id, line_no`, tenantID, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			saleID   uuid.UUID
			it       SaleItem
			itemType string
		)
		if err := rows.Scan(&saleID, &it.InventoryItemID, &it.Name, &it.SKU, &itemType, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			rows.Close()
			return err
		}
		it.ItemType = inventory.ItemType(itemType)
		byID[saleID].Items = append(byID[saleID].Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `SELECT sale_id, id, method, amount, received_at, recorded_by
FROM sale_payments WHERE tenant_id = $1 AND sale_id = ANY($2) ORDER BY sale_id, received_at, id`, tenantID, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			saleID uuid.UUID
			p      Payment
			method string
		)
		if err := rows.Scan(&saleID, &p.ID, &method, &p.Amount, &p.ReceivedAt, &p.RecordedBy); err != nil {
			return err
		}
		p.Method = PaymentMethod(method)
		byID[saleID].Payments = append(byID[saleID].Payments, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, s := range sales {
		s.refreshPayments()
	}
	return nil
}

// GetSaleForUpdate loads and locks a sale for the rest of the transaction.
func (t *txRepo) GetSaleForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Sale, error) {
	return getSale(ctx, t.q, tenantID, id, true)
}

// GetClientName checks that the client belongs to the tenant and returns its name.
func (t *txRepo) GetClientName(ctx context.Context, tenantID, clientID uuid.UUID) (string, error) {
	var name string
	err := t.q.QueryRow(ctx, `SELECT name FROM clients WHERE tenant_id = $1 AND id = $2`, tenantID, clientID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrClientNotFound
	}
	return name, err
}

func (t *txRepo) InsertSale(ctx context.Context, s *Sale) error {
	_, err := t.q.Exec(ctx, `INSERT INTO sales (id, tenant_id, sale_date, client_id, client_name, discount, subtotal, tax, total, status,
invoice_number, receipt_number, void_reason, voided_at, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		s.ID, s.TenantID, s.Date, s.ClientID, s.ClientName, s.Discount, s.Subtotal, s.Tax, s.Total, string(s.Status),
		s.InvoiceNumber, s.ReceiptNumber, s.VoidReason, s.VoidedAt, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	return db.MapError(err)
}

func (t *txRepo) UpdateSale(ctx context.Context, s *Sale) error {
	tag, err := t.q.Exec(ctx, `UPDATE sales SET sale_date = $3, client_id = $4, client_name = $5, discount = $6, subtotal = $7,
tax = $8, total = $9, status = $10, invoice_number = $11, receipt_number = $12, void_reason = $13, voided_at = $14, updated_at = $15
WHERE tenant_id = $1 AND id = $2`,
		s.TenantID, s.ID, s.Date, s.ClientID, s.ClientName, s.Discount, s.Subtotal,
		s.Tax, s.Total, string(s.Status), s.InvoiceNumber, s.ReceiptNumber, s.VoidReason, s.VoidedAt, s.UpdatedAt)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

// ReplaceItems rewrites the lines of a sale.
func (t *txRepo) ReplaceItems(ctx context.Context, s *Sale) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM sale_items WHERE tenant_id = $1 AND sale_id = $2`, s.TenantID, s.ID); err != nil {
		return err
	}
	for i, it := range s.Items {
		_, err := t.q.Exec(ctx, `INSERT INTO sale_items (tenant_id, sale_id, line_no, inventory_item_id, name, sku, item_type, quantity, unit_price, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			s.TenantID, s.ID, i+1, it.InventoryItemID, it.Name, it.SKU, string(it.ItemType), it.Quantity, it.UnitPrice, it.LineTotal)
		if err != nil {
			return db.MapError(err)
		}
	}
	return nil
}

// InsertPayments appends payments. Existing rows are never updated.
func (t *txRepo) InsertPayments(ctx context.Context, s *Sale, payments []Payment) error {
	for _, p := range payments {
		_, err := t.q.Exec(ctx, `INSERT INTO sale_payments (id, tenant_id, sale_id, method, amount, received_at, recorded_by)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, p.ID, s.TenantID, s.ID, string(p.Method), p.Amount, p.ReceivedAt, p.RecordedBy)
		if err != nil {
			return db.MapError(err)
		}
	}
	return nil
}

// RecordAudit writes the audit entry inside the sale transaction.
func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return t.audit.Record(ctx, log)
}
