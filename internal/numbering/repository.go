package numbering

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetdesk/internal/platform/db"
)

// Sequence is the stored state of one (tenant, kind) counter.
type Sequence struct {
	TenantID  uuid.UUID `json:"tenantId"`
	Kind      Kind      `json:"kind"`
	Pattern   string    `json:"pattern"`
	Counter   int64     `json:"counter"`
	UpdatedAt time.Time `json:"updatedAt"`
	// Next previews the number the following Issue call would return.
	Next string `json:"next"`
}

// Store runs sequence statements against the pool or an open transaction.
type Store struct {
	q db.Querier
}

// NewStore binds a Store to q.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// NextSequence increments the counter and returns the new value together with
// the pattern in force. A missing row is created with defaultPattern and
// counter 1. The increment and read are one statement, so concurrent callers
// never observe the same value.
func (s *Store) NextSequence(ctx context.Context, tenantID uuid.UUID, kind Kind, defaultPattern string) (int64, string, error) {
	var (
		counter int64
		pattern string
	)
	err := s.q.QueryRow(ctx, `INSERT INTO numbering_sequences (tenant_id, kind, pattern, counter, updated_at)
VALUES ($1, $2, $3, 1, NOW())
ON CONFLICT (tenant_id, kind) DO UPDATE SET counter = numbering_sequences.counter + 1, updated_at = NOW()
RETURNING counter, pattern`, tenantID, string(kind), defaultPattern).Scan(&counter, &pattern)
	if err != nil {
		return 0, "", db.MapError(err)
	}
	return counter, pattern, nil
}

// SetPattern replaces the pattern while keeping the counter.
func (s *Store) SetPattern(ctx context.Context, tenantID uuid.UUID, kind Kind, pattern string) (Sequence, error) {
	seq := Sequence{TenantID: tenantID, Kind: kind}
	err := s.q.QueryRow(ctx, `INSERT INTO numbering_sequences (tenant_id, kind, pattern, counter, updated_at)
VALUES ($1, $2, $3, 0, NOW())
ON CONFLICT (tenant_id, kind) DO UPDATE SET pattern = EXCLUDED.pattern, updated_at = NOW()
RETURNING pattern, counter, updated_at`, tenantID, string(kind), pattern).Scan(&seq.Pattern, &seq.Counter, &seq.UpdatedAt)
	if err != nil {
		return Sequence{}, db.MapError(err)
	}
	return seq, nil
}

// ListSequences returns the stored sequences of a tenant.
func (s *Store) ListSequences(ctx context.Context, tenantID uuid.UUID) ([]Sequence, error) {
	rows, err := s.q.Query(ctx, `SELECT kind, pattern, counter, updated_at FROM numbering_sequences
WHERE tenant_id = $1 ORDER BY kind`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sequence
	for rows.Next() {
		seq := Sequence{TenantID: tenantID}
		var kind string
		if err := rows.Scan(&kind, &seq.Pattern, &seq.Counter, &seq.UpdatedAt); err != nil {
			return nil, err
		}
		seq.Kind = Kind(kind)
		out = append(out, seq)
	}
	return out, rows.Err()
}
