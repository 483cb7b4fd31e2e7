package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vetdesk/vetdesk/internal/shared"
)

// RepositoryPort abstracts settings persistence.
type RepositoryPort interface {
	GetSettings(ctx context.Context, tenantID uuid.UUID) (Settings, error)
	UpsertSettings(ctx context.Context, s Settings) (Settings, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service reads and updates clinic settings.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Get returns stored settings or the defaults when the tenant has none.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID) (Settings, error) {
	if tenantID == uuid.Nil {
		return Settings{}, ErrTenantRequired
	}
	settings, err := s.repo.GetSettings(ctx, tenantID)
	if errors.Is(err, ErrSettingsNotFound) {
		return Defaults(tenantID), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("tenancy: get settings: %w", err)
	}
	return settings, nil
}

// Update validates and stores new settings, recording an admin audit entry.
func (s *Service) Update(ctx context.Context, in Settings) (Settings, error) {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if err := in.Validate(); err != nil {
		return Settings{}, err
	}
	before, err := s.Get(ctx, in.TenantID)
	if err != nil {
		return Settings{}, err
	}
	saved, err := s.repo.UpsertSettings(ctx, in)
	if err != nil {
		return Settings{}, fmt.Errorf("tenancy: save settings: %w", err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: in.TenantID,
			Category: shared.AuditAdmin,
			Actor:    shared.ActorFromContext(ctx),
			Action:   "settings.update",
			Entity:   "clinic_settings",
			EntityID: in.TenantID.String(),
			Meta: map[string]any{
				"tax_rate_before":       before.TaxRate.String(),
				"tax_rate_after":        saved.TaxRate.String(),
				"allow_oversell_before": before.AllowOversell,
				"allow_oversell_after":  saved.AllowOversell,
				"currency":              saved.Currency,
			},
		})
	}
	return saved, nil
}
