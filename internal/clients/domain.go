package clients

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
)

// Client is a registered pet owner.
type Client struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	Number    string    `json:"clientNumber"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Patient is an animal owned by a client.
type Patient struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenantId"`
	ClientID  uuid.UUID  `json:"clientId"`
	Number    string     `json:"patientNumber"`
	Name      string     `json:"name"`
	Species   string     `json:"species,omitempty"`
	Breed     string     `json:"breed,omitempty"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// CreateClientInput captures a new client registration.
type CreateClientInput struct {
	TenantID uuid.UUID `json:"-"`
	Name     string    `json:"name" validate:"required,max=200"`
	Phone    string    `json:"phone" validate:"max=50"`
	Email    string    `json:"email" validate:"omitempty,email,max=200"`
	Address  string    `json:"address" validate:"max=500"`
	Actor    string    `json:"-"`
}

// CreatePatientInput captures a new patient for an existing client.
type CreatePatientInput struct {
	TenantID  uuid.UUID  `json:"-"`
	ClientID  uuid.UUID  `json:"-"`
	Name      string     `json:"name" validate:"required,max=200"`
	Species   string     `json:"species" validate:"max=100"`
	Breed     string     `json:"breed" validate:"max=100"`
	BirthDate *time.Time `json:"birthDate"`
	Actor     string     `json:"-"`
}

// ListFilter narrows client listings.
type ListFilter struct {
	TenantID uuid.UUID
	Search   string
	Page     int
	PerPage  int
}

// ErrClientNotFound is returned when the client does not exist for the tenant.
var ErrClientNotFound = fmt.Errorf("%w: client not found", httpx.ErrNotFound)
