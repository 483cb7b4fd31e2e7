package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/vetdesk/internal/shared"
)

// PgRepository membaca audit_logs dari PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository membuat repository audit.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const timelineWindowSQL = `SELECT id, occurred_at, category, actor, action, entity, entity_id, details, reason
FROM audit_logs
WHERE tenant_id = $1
  AND ($2::timestamptz IS NULL OR occurred_at >= $2)
  AND ($3::timestamptz IS NULL OR occurred_at < $3)
  AND ($4::text IS NULL OR category = $4)
  AND ($5::text IS NULL OR actor = $5)
  AND ($6::text IS NULL OR entity = $6)
  AND ($7::text IS NULL OR entity_id = $7)
  AND ($8::text IS NULL OR action = $8)
ORDER BY occurred_at DESC, id DESC
OFFSET $9::int
LIMIT NULLIF($10::int, 0)`

// TimelineWindow menjalankan query timeline dengan filter opsional.
func (r *PgRepository) TimelineWindow(ctx context.Context, arg WindowParams) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineWindowSQL,
		arg.TenantID, arg.FromAt, arg.ToAt, arg.Category, arg.Actor, arg.Entity, arg.EntityID, arg.Action,
		arg.OffsetRows, arg.LimitRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TimelineRow{}
	for rows.Next() {
		var (
			row      TimelineRow
			at       pgtype.Timestamptz
			category string
		)
		if err := rows.Scan(&row.ID, &at, &category, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &row.Details, &row.Reason); err != nil {
			return nil, err
		}
		if at.Valid {
			row.At = at.Time
		}
		row.Category = shared.AuditCategory(category)
		out = append(out, row)
	}
	return out, rows.Err()
}
