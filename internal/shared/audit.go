package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetdesk/internal/platform/db"
)

// AuditCategory groups audit entries for the clinic log views.
type AuditCategory string

const (
	AuditClinical  AuditCategory = "clinical"
	AuditFinancial AuditCategory = "financial"
	AuditAdmin     AuditCategory = "admin"
	AuditSystem    AuditCategory = "system"
)

// Valid reports whether the category is one of the known values.
func (c AuditCategory) Valid() bool {
	switch c {
	case AuditClinical, AuditFinancial, AuditAdmin, AuditSystem:
		return true
	}
	return false
}

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ID       int64          `json:"id,omitempty"`
	TenantID uuid.UUID      `json:"tenantId"`
	Category AuditCategory  `json:"category"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Details  string         `json:"details,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// ErrInvalidAuditLog is returned when required audit fields are missing.
var ErrInvalidAuditLog = errors.New("audit log requires tenant/category/action/entity/entity_id")

// Validate checks the mandatory fields.
func (l AuditLog) Validate() error {
	if l.TenantID == uuid.Nil || !l.Category.Valid() || l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return ErrInvalidAuditLog
	}
	return nil
}

// AuditLogger writes records into audit_logs. It accepts either the pool or an
// open transaction so entries commit together with the change they describe.
type AuditLogger struct {
	db db.Querier
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(q db.Querier) *AuditLogger {
	return &AuditLogger{db: q}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if err := log.Validate(); err != nil {
		return err
	}
	if log.Meta == nil {
		log.Meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at any
	if !log.At.IsZero() {
		at = log.At
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (tenant_id, category, actor, action, entity, entity_id, details, reason, meta, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,COALESCE($10, NOW()))`,
		log.TenantID, string(log.Category), log.Actor, log.Action, log.Entity, log.EntityID, log.Details, log.Reason, metaJSON, at)
	return err
}
