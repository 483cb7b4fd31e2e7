package clients

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetdesk/internal/numbering"
	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
)

// RepositoryPort abstracts client persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetClient(ctx context.Context, tenantID, id uuid.UUID) (Client, error)
	ListClients(ctx context.Context, filter ListFilter) ([]Client, int, error)
	ListPatients(ctx context.Context, tenantID, clientID uuid.UUID) ([]Patient, error)
}

// TxRepository runs inside the registration transaction so the issued
// number and the new row commit together.
type TxRepository interface {
	numbering.Sequencer
	ClientExists(ctx context.Context, tenantID, id uuid.UUID) (bool, error)
	InsertClient(ctx context.Context, c Client) error
	InsertPatient(ctx context.Context, p Patient) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Service registers clients and their patients.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	clock  func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, clock: func() time.Time { return time.Now().UTC() }}
}

// CreateClient registers a client under the next client number. A widened
// number is reported through the returned warnings.
func (s *Service) CreateClient(ctx context.Context, in CreateClientInput) (Client, []string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.TenantID == uuid.Nil {
		return Client{}, nil, fmt.Errorf("%w: tenant required", httpx.ErrUnauthorized)
	}
	if err := httpx.ValidateStruct(in); err != nil {
		return Client{}, nil, err
	}
	now := s.clock()
	client := Client{
		ID:        uuid.New(),
		TenantID:  in.TenantID,
		Name:      in.Name,
		Phone:     strings.TrimSpace(in.Phone),
		Email:     in.Email,
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: now,
	}
	var warnings []string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		issued, err := numbering.Issue(ctx, tx, in.TenantID, numbering.KindClient, now)
		if err != nil {
			return err
		}
		if w := issued.Warning(); w != "" {
			warnings = append(warnings, w)
		}
		client.Number = issued.Number
		if err := tx.InsertClient(ctx, client); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			TenantID: client.TenantID,
			Category: shared.AuditAdmin,
			Actor:    in.Actor,
			Action:   "client.create",
			Entity:   "client",
			EntityID: client.ID.String(),
			Meta:     map[string]any{"client_number": client.Number, "name": client.Name},
		})
	})
	if err != nil {
		return Client{}, nil, fmt.Errorf("clients: create client: %w", err)
	}
	return client, warnings, nil
}

// CreatePatient registers a patient of an existing client under the next
// patient number.
func (s *Service) CreatePatient(ctx context.Context, in CreatePatientInput) (Patient, []string, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.TenantID == uuid.Nil {
		return Patient{}, nil, fmt.Errorf("%w: tenant required", httpx.ErrUnauthorized)
	}
	if err := httpx.ValidateStruct(in); err != nil {
		return Patient{}, nil, err
	}
	now := s.clock()
	if in.BirthDate != nil && in.BirthDate.After(now) {
		return Patient{}, nil, httpx.NewValidationError("birthDate", "must not be in the future")
	}
	patient := Patient{
		ID:        uuid.New(),
		TenantID:  in.TenantID,
		ClientID:  in.ClientID,
		Name:      in.Name,
		Species:   strings.TrimSpace(in.Species),
		Breed:     strings.TrimSpace(in.Breed),
		BirthDate: in.BirthDate,
		CreatedAt: now,
	}
	var warnings []string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.ClientExists(ctx, in.TenantID, in.ClientID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrClientNotFound
		}
		issued, err := numbering.Issue(ctx, tx, in.TenantID, numbering.KindPatient, now)
		if err != nil {
			return err
		}
		if w := issued.Warning(); w != "" {
			warnings = append(warnings, w)
		}
		patient.Number = issued.Number
		if err := tx.InsertPatient(ctx, patient); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			TenantID: patient.TenantID,
			Category: shared.AuditClinical,
			Actor:    in.Actor,
			Action:   "patient.create",
			Entity:   "patient",
			EntityID: patient.ID.String(),
			Meta:     map[string]any{"patient_number": patient.Number, "client_id": patient.ClientID.String(), "species": patient.Species},
		})
	})
	if err != nil {
		return Patient{}, nil, fmt.Errorf("clients: create patient: %w", err)
	}
	return patient, warnings, nil
}

// GetClient loads one client of the tenant.
func (s *Service) GetClient(ctx context.Context, tenantID, id uuid.UUID) (Client, error) {
	return s.repo.GetClient(ctx, tenantID, id)
}

// ListClients pages through clients.
func (s *Service) ListClients(ctx context.Context, filter ListFilter) ([]Client, shared.Pagination, error) {
	clients, total, err := s.repo.ListClients(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("clients: list: %w", err)
	}
	return clients, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ListPatients returns the patients of a client.
func (s *Service) ListPatients(ctx context.Context, tenantID, clientID uuid.UUID) ([]Patient, error) {
	if _, err := s.repo.GetClient(ctx, tenantID, clientID); err != nil {
		return nil, err
	}
	return s.repo.ListPatients(ctx, tenantID, clientID)
}
