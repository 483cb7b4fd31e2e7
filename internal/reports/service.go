// Package reports serves eventually consistent clinic summaries from a
// Redis cache that sale mutations invalidate.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// DailySummary aggregates one UTC day of sales for a tenant. Void sales are
// counted in Voids and excluded from every amount.
type DailySummary struct {
	TenantID    uuid.UUID       `json:"tenantId"`
	Date        string          `json:"date"`
	SaleCount   int             `json:"saleCount"`
	PaidCount   int             `json:"paidCount"`
	Gross       decimal.Decimal `json:"gross"`
	Tax         decimal.Decimal `json:"tax"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	Collected   decimal.Decimal `json:"collected"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Voids       int             `json:"voids"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// Repository loads raw aggregates.
type Repository interface {
	DailySummary(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (DailySummary, error)
}

// Service builds cached reports.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
	clock func() time.Time
}

// NewService builds Service. cache may be nil.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, clock: func() time.Time { return time.Now().UTC() }}
}

// DailySummary returns the summary for day, served from cache when fresh.
// Concurrent misses for the same key share one database query.
func (s *Service) DailySummary(ctx context.Context, tenantID uuid.UUID, day time.Time) (DailySummary, error) {
	if tenantID == uuid.Nil {
		return DailySummary{}, fmt.Errorf("reports: tenant required")
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	date := from.Format(time.DateOnly)
	key, err := s.cache.BuildKey(ctx, tenantID, "daily", date)
	if err != nil {
		return DailySummary{}, err
	}
	var out DailySummary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		res := s.group.DoChan(key, func() (any, error) {
			summary, err := s.repo.DailySummary(ctx, tenantID, from, from.AddDate(0, 0, 1))
			if err != nil {
				return nil, err
			}
			summary.TenantID = tenantID
			summary.Date = date
			summary.GeneratedAt = s.clock()
			return summary, nil
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-res:
			return r.Val, r.Err
		}
	})
	if err != nil {
		return DailySummary{}, fmt.Errorf("reports: daily summary: %w", err)
	}
	return out, nil
}

// Bump invalidates the tenant's cached reports.
func (s *Service) Bump(ctx context.Context, tenantID uuid.UUID) error {
	return s.cache.Bump(ctx, tenantID)
}
