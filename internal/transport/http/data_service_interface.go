package http

import (
	"context"

	"finclusion/internal/analytics"
	"finclusion/internal/enrich"
	"finclusion/pkg/contracts/domain"
)

// DataServiceInterface is the data service surface the handlers need.
// Defined here so handler tests can substitute a fake.
type DataServiceInterface interface {
	Refresh(ctx context.Context) error
	Dataset() (domain.Dataset, error)
	Audit() (*enrich.AuditLog, error)
	Summary(ctx context.Context) (analytics.DatasetSummary, error)
	Coverage(ctx context.Context) ([]analytics.CoverageCell, error)
	Indicators(ctx context.Context) ([]string, error)
	Series(ctx context.Context, indicatorCode string) (domain.Series, []analytics.GrowthPoint, error)
	GenderGap(ctx context.Context, indicatorCode string) ([]analytics.GenderGapRow, error)
	Events(ctx context.Context) ([]domain.Event, error)
}
