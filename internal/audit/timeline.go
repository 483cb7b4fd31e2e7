package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/vetdesk/internal/shared"
)

// TimelineFilters menampung filter dasar untuk clinic log.
type TimelineFilters struct {
	TenantID uuid.UUID
	From     time.Time
	To       time.Time
	Category shared.AuditCategory
	Actor    string
	Entity   string
	EntityID string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow mewakili satu baris audit log.
type TimelineRow struct {
	ID       int64                `json:"id"`
	At       time.Time            `json:"at"`
	Category shared.AuditCategory `json:"category"`
	Actor    string               `json:"actor"`
	Action   string               `json:"action"`
	Entity   string               `json:"entity"`
	EntityID string               `json:"entityId"`
	Details  string               `json:"details,omitempty"`
	Reason   string               `json:"reason,omitempty"`
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"hasNext"`
	PageSize int  `json:"pageSize"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}
