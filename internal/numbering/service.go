package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetdesk/internal/shared"
)

// Sequencer performs the atomic increment-and-read of a counter.
type Sequencer interface {
	NextSequence(ctx context.Context, tenantID uuid.UUID, kind Kind, defaultPattern string) (int64, string, error)
}

// RepositoryPort abstracts sequence persistence for the service.
type RepositoryPort interface {
	Sequencer
	SetPattern(ctx context.Context, tenantID uuid.UUID, kind Kind, pattern string) (Sequence, error)
	ListSequences(ctx context.Context, tenantID uuid.UUID) ([]Sequence, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Issued is one consumed sequence slot.
type Issued struct {
	Kind    Kind   `json:"kind"`
	Counter int64  `json:"counter"`
	Number  string `json:"number"`
	// Widened is set when the counter no longer fits the pattern's zero run.
	Widened bool `json:"widened,omitempty"`
}

// Warning describes a widened number for the caller.
func (i Issued) Warning() string {
	if !i.Widened {
		return ""
	}
	return fmt.Sprintf("%s sequence exceeded its pattern width: issued %s", i.Kind, i.Number)
}

// Issue consumes exactly one slot of (tenantID, kind) through seq. Pass a
// transaction bound Sequencer to make the slot commit or roll back with the
// surrounding work.
func Issue(ctx context.Context, seq Sequencer, tenantID uuid.UUID, kind Kind, now time.Time) (Issued, error) {
	if tenantID == uuid.Nil {
		return Issued{}, fmt.Errorf("numbering: tenant required")
	}
	def, ok := DefaultPatterns[kind]
	if !ok {
		return Issued{}, fmt.Errorf("numbering: unknown kind %q", kind)
	}
	counter, pattern, err := seq.NextSequence(ctx, tenantID, kind, def)
	if err != nil {
		return Issued{}, fmt.Errorf("numbering: issue %s: %w", kind, err)
	}
	number, widened := Format(pattern, counter, now)
	return Issued{Kind: kind, Counter: counter, Number: number, Widened: widened}, nil
}

// Service exposes the numbering authority to handlers and other modules.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	clock func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, clock: func() time.Time { return time.Now().UTC() }}
}

// Issue consumes one slot outside of any caller transaction.
func (s *Service) Issue(ctx context.Context, tenantID uuid.UUID, kind Kind) (Issued, error) {
	return Issue(ctx, s.repo, tenantID, kind, s.clock())
}

// Preview formats pattern with counter 1 using the current year.
func (s *Service) Preview(pattern string) string {
	return Preview(pattern, s.clock())
}

// SetPattern stores a new pattern for the kind. The counter is unchanged.
func (s *Service) SetPattern(ctx context.Context, tenantID uuid.UUID, kind Kind, pattern string) (Sequence, error) {
	if err := ValidatePattern(pattern); err != nil {
		return Sequence{}, err
	}
	seq, err := s.repo.SetPattern(ctx, tenantID, kind, pattern)
	if err != nil {
		return Sequence{}, fmt.Errorf("numbering: set pattern: %w", err)
	}
	seq.Next, _ = Format(seq.Pattern, seq.Counter+1, s.clock())
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			Category: shared.AuditAdmin,
			Actor:    shared.ActorFromContext(ctx),
			Action:   "numbering.pattern_set",
			Entity:   "numbering_sequence",
			EntityID: string(kind),
			Meta:     map[string]any{"pattern": pattern},
		})
	}
	return seq, nil
}

// List returns all kinds for the tenant, filling in defaults for unused ones.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Sequence, error) {
	stored, err := s.repo.ListSequences(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("numbering: list: %w", err)
	}
	byKind := make(map[Kind]Sequence, len(stored))
	for _, seq := range stored {
		byKind[seq.Kind] = seq
	}
	now := s.clock()
	out := make([]Sequence, 0, len(Kinds))
	for _, kind := range Kinds {
		seq, ok := byKind[kind]
		if !ok {
			seq = Sequence{TenantID: tenantID, Kind: kind, Pattern: DefaultPatterns[kind]}
		}
		seq.Next, _ = Format(seq.Pattern, seq.Counter+1, now)
		out = append(out, seq)
	}
	return out, nil
}
