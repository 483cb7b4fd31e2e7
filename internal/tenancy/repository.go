package tenancy

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists clinic settings in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetSettings loads the settings row for the tenant.
func (r *Repository) GetSettings(ctx context.Context, tenantID uuid.UUID) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `SELECT tenant_id, tax_rate, allow_oversell, currency, updated_at
FROM clinic_settings WHERE tenant_id = $1`, tenantID).
		Scan(&s.TenantID, &s.TaxRate, &s.AllowOversell, &s.Currency, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settings{}, ErrSettingsNotFound
		}
		return Settings{}, err
	}
	s.Currency = strings.TrimSpace(s.Currency)
	return s, nil
}

// UpsertSettings writes the full settings row.
func (r *Repository) UpsertSettings(ctx context.Context, s Settings) (Settings, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO clinic_settings (tenant_id, tax_rate, allow_oversell, currency, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (tenant_id) DO UPDATE SET tax_rate = EXCLUDED.tax_rate, allow_oversell = EXCLUDED.allow_oversell,
    currency = EXCLUDED.currency, updated_at = NOW()
RETURNING updated_at`, s.TenantID, s.TaxRate, s.AllowOversell, s.Currency).Scan(&s.UpdatedAt)
	return s, err
}

// ListTenantIDs returns every tenant that has settings, used by background scans.
func (r *Repository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT tenant_id FROM clinic_settings
UNION SELECT DISTINCT tenant_id FROM inventory_items ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
