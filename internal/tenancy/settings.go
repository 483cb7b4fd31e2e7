// Package tenancy owns per-clinic settings and resolves the calling tenant
// from verified bearer tokens.
package tenancy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
)

// DefaultCurrency applies to tenants without stored settings.
const DefaultCurrency = "USD"

var hundred = decimal.NewFromInt(100)

// Settings holds clinic level billing policy.
type Settings struct {
	TenantID      uuid.UUID       `json:"tenantId"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	AllowOversell bool            `json:"allowOversell"`
	Currency      string          `json:"currency"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Defaults returns the settings used when a tenant has never saved any.
func Defaults(tenantID uuid.UUID) Settings {
	return Settings{TenantID: tenantID, TaxRate: decimal.Zero, Currency: DefaultCurrency}
}

// ErrTenantRequired is returned when an operation is attempted without a tenant.
var ErrTenantRequired = fmt.Errorf("%w: tenant required", httpx.ErrUnauthorized)

// Validate checks tax rate bounds and currency code shape.
func (s Settings) Validate() error {
	if s.TenantID == uuid.Nil {
		return ErrTenantRequired
	}
	fields := map[string]string{}
	if s.TaxRate.IsNegative() || s.TaxRate.GreaterThan(hundred) {
		fields["taxRate"] = "must be between 0 and 100"
	}
	if len(strings.TrimSpace(s.Currency)) != 3 {
		fields["currency"] = "must be a 3 letter ISO code"
	}
	if len(fields) > 0 {
		return &httpx.ValidationError{Fields: fields}
	}
	return nil
}

// ErrSettingsNotFound is returned by repositories when a tenant has no row yet.
var ErrSettingsNotFound = errors.New("tenancy: settings not found")
