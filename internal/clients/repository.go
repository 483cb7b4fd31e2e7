package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/vetdesk/internal/numbering"
	"github.com/vetdesk/vetdesk/internal/platform/db"
	"github.com/vetdesk/vetdesk/internal/shared"
)

// Repository persists clients and patients in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("clients repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{Store: numbering.NewStore(tx), q: tx, audit: shared.NewAuditLogger(tx)})
	})
}

type txRepo struct {
	*numbering.Store
	q     db.Querier
	audit *shared.AuditLogger
}

const clientColumns = `id, tenant_id, client_number, name, phone, email, address, created_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.TenantID, &c.Number, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrClientNotFound
	}
	return c, err
}

// GetClient loads one client.
func (r *Repository) GetClient(ctx context.Context, tenantID, id uuid.UUID) (Client, error) {
	return scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

// ListClients pages through clients ordered by number.
func (r *Repository) ListClients(ctx context.Context, filter ListFilter) ([]Client, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR client_number ILIKE $%d OR phone ILIKE $%d)", len(args), len(args), len(args)))
	}
	clause := strings.Join(where, " AND ")
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, p.PerPage, p.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM clients WHERE %s ORDER BY client_number LIMIT $%d OFFSET $%d`,
		clientColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// ListPatients returns the patients of a client ordered by number.
func (r *Repository) ListPatients(ctx context.Context, tenantID, clientID uuid.UUID) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, client_id, patient_number, name, species, breed, birth_date, created_at
FROM patients WHERE tenant_id = $1 AND client_id = $2 ORDER BY patient_number`, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Patient{}
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.TenantID, &p.ClientID, &p.Number, &p.Name, &p.Species, &p.Breed, &p.BirthDate, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *txRepo) ClientExists(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE tenant_id = $1 AND id = $2)`, tenantID, id).Scan(&exists)
	return exists, err
}

func (t *txRepo) InsertClient(ctx context.Context, c Client) error {
	_, err := t.q.Exec(ctx, `INSERT INTO clients (id, tenant_id, client_number, name, phone, email, address, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, c.ID, c.TenantID, c.Number, c.Name, c.Phone, c.Email, c.Address, c.CreatedAt)
	return db.MapError(err)
}

func (t *txRepo) InsertPatient(ctx context.Context, p Patient) error {
	_, err := t.q.Exec(ctx, `INSERT INTO patients (id, tenant_id, client_id, patient_number, name, species, breed, birth_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, p.ID, p.TenantID, p.ClientID, p.Number, p.Name, p.Species, p.Breed, p.BirthDate, p.CreatedAt)
	return db.MapError(err)
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return t.audit.Record(ctx, log)
}
