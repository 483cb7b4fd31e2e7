package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository aggregates sales from PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const dailySummarySQL = `WITH day_sales AS (
    SELECT s.id, s.status, s.subtotal, s.tax, s.discount, s.total,
           COALESCE((SELECT SUM(p.amount) FROM sale_payments p WHERE p.tenant_id = s.tenant_id AND p.sale_id = s.id), 0) AS paid
    FROM sales s
    WHERE s.tenant_id = $1 AND s.sale_date >= $2 AND s.sale_date < $3
)
SELECT
    COUNT(*) FILTER (WHERE status <> 'VOID'),
    COUNT(*) FILTER (WHERE status = 'PAID'),
    COALESCE(SUM(subtotal) FILTER (WHERE status <> 'VOID'), 0),
    COALESCE(SUM(tax) FILTER (WHERE status <> 'VOID'), 0),
    COALESCE(SUM(discount) FILTER (WHERE status <> 'VOID'), 0),
    COALESCE(SUM(total) FILTER (WHERE status <> 'VOID'), 0),
    COALESCE(SUM(paid) FILTER (WHERE status <> 'VOID'), 0),
    COALESCE(SUM(GREATEST(total - paid, 0)) FILTER (WHERE status = 'PENDING'), 0),
    COUNT(*) FILTER (WHERE status = 'VOID')
FROM day_sales`

// DailySummary aggregates sales dated in [from, to).
func (r *PgRepository) DailySummary(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (DailySummary, error) {
	var s DailySummary
	err := r.pool.QueryRow(ctx, dailySummarySQL, tenantID, from, to).Scan(
		&s.SaleCount, &s.PaidCount, &s.Gross, &s.Tax, &s.Discount, &s.Total, &s.Collected, &s.Outstanding, &s.Voids)
	return s, err
}
