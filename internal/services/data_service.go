package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"finclusion/internal/analytics"
	"finclusion/internal/config"
	"finclusion/internal/dataset"
	"finclusion/internal/enrich"
	"finclusion/internal/infrastructure"
	"finclusion/pkg/contracts/domain"
)

// SupplementarySource provides late observation rows merged into the
// dataset during refresh. *dataset.SheetsSource satisfies it.
type SupplementarySource interface {
	Fetch(ctx context.Context) ([]domain.Record, error)
}

// DataService owns the in-memory enriched dataset. A refresh runs the
// load, merge, and enrich stages and atomically replaces the cached
// dataset; readers always see a complete snapshot.
type DataService struct {
	config  *config.Config
	paths   *config.Paths
	logger  *slog.Logger
	loader  *dataset.Loader
	enrich  *enrich.Enricher
	supp    SupplementarySource
	metrics *infrastructure.PipelineMetrics

	mu       sync.RWMutex
	dataset  domain.Dataset
	audit    *enrich.AuditLog
	loadedAt time.Time
}

// NewDataService creates a data service. supp and metrics may be nil;
// the merge stage is skipped and instruments are no-ops respectively.
func NewDataService(cfg *config.Config, paths *config.Paths, supp SupplementarySource, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "services.data"))

	logger.Info("DataService initialized",
		slog.String("dataset_file", cfg.Paths.DatasetFile),
		slog.String("output_dir", paths.OutputDir),
		slog.Bool("supplementary_enabled", supp != nil))

	return &DataService{
		config:  cfg,
		paths:   paths,
		logger:  logger,
		loader:  dataset.NewLoader(logger),
		enrich:  enrich.NewEnricher(cfg.Model, logger),
		supp:    supp,
		metrics: metrics,
	}
}

// Refresh runs load, supplementary merge, and enrichment, then swaps
// the cached dataset. On error the previous dataset stays in place.
func (ds *DataService) Refresh(ctx context.Context) error {
	log := ds.logger.With(slog.String("trace_id", infrastructure.GetTraceID(ctx)))

	start := time.Now()
	loaded, err := ds.load(ctx)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	ds.recordStage(ctx, "load", time.Since(start))
	if ds.metrics != nil {
		ds.metrics.RecordsLoaded.Add(ctx, int64(len(loaded.Records)))
	}

	audit := enrich.NewAuditLog()

	if ds.supp != nil {
		start = time.Now()
		rows, err := ds.supp.Fetch(ctx)
		if err != nil {
			// Supplementary rows are additive; a fetch failure must
			// not block the workbook from loading.
			log.Warn("supplementary fetch failed, continuing without",
				slog.String("error", err.Error()))
		} else if len(rows) > 0 {
			merged, mergeAudit, err := ds.enrich.MergeSupplementary(ctx, loaded, rows)
			if err != nil {
				return fmt.Errorf("merge supplementary: %w", err)
			}
			loaded = merged
			audit.Merge(mergeAudit)
			if ds.metrics != nil {
				ds.metrics.MergeConflicts.Add(ctx, int64(countDiscarded(mergeAudit)))
			}
		}
		ds.recordStage(ctx, "merge", time.Since(start))
	}

	start = time.Now()
	enriched, enrichAudit, err := ds.enrich.Enrich(ctx, loaded)
	if err != nil {
		return fmt.Errorf("enrich dataset: %w", err)
	}
	audit.Merge(enrichAudit)
	ds.recordStage(ctx, "enrich", time.Since(start))
	if ds.metrics != nil {
		ds.metrics.InterpolatedPoints.Add(ctx, int64(countInterpolated(enriched)))
	}

	ds.mu.Lock()
	ds.dataset = enriched
	ds.audit = audit
	ds.loadedAt = time.Now()
	ds.mu.Unlock()

	log.Info("dataset refreshed",
		slog.Int("records", len(enriched.Records)),
		slog.Int("indicators", len(enriched.IndicatorCodes())),
		slog.Int("audit_entries", len(audit.Entries)))

	return nil
}

// load reads the configured dataset file, choosing the reader by
// extension. Workbooks are the primary format; CSV exports reload too.
func (ds *DataService) load(ctx context.Context) (domain.Dataset, error) {
	path := ds.config.Paths.DatasetFile
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ds.loader.LoadCSV(ctx, path)
	}
	return ds.loader.LoadWorkbook(ctx, path)
}

func (ds *DataService) recordStage(ctx context.Context, stage string, d time.Duration) {
	if ds.metrics != nil {
		ds.metrics.RecordStage(ctx, stage, d)
	}
}

func countDiscarded(a *enrich.AuditLog) int {
	n := 0
	for _, e := range a.Entries {
		if e.Action == enrich.ActionDiscarded {
			n++
		}
	}
	return n
}

func countInterpolated(d domain.Dataset) int {
	n := 0
	for _, r := range d.Records {
		if r.Interpolated {
			n++
		}
	}
	return n
}

// Dataset returns the current enriched dataset snapshot.
func (ds *DataService) Dataset() (domain.Dataset, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.loadedAt.IsZero() {
		return domain.Dataset{}, ErrDatasetNotLoaded
	}
	return ds.dataset, nil
}

// Audit returns the enrichment audit log of the current snapshot.
func (ds *DataService) Audit() (*enrich.AuditLog, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.audit == nil {
		return nil, ErrDatasetNotLoaded
	}
	return ds.audit, nil
}

// LoadedAt returns when the current snapshot was built, or zero.
func (ds *DataService) LoadedAt() time.Time {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.loadedAt
}

// Summary returns dataset composition counts.
func (ds *DataService) Summary(ctx context.Context) (analytics.DatasetSummary, error) {
	d, err := ds.Dataset()
	if err != nil {
		return analytics.DatasetSummary{}, err
	}
	return analytics.Summarize(d), nil
}

// Coverage returns the indicator-by-year observation coverage grid.
func (ds *DataService) Coverage(ctx context.Context) ([]analytics.CoverageCell, error) {
	d, err := ds.Dataset()
	if err != nil {
		return nil, err
	}
	return analytics.TemporalCoverage(d), nil
}

// Indicators returns the sorted indicator codes present in the dataset.
func (ds *DataService) Indicators(ctx context.Context) ([]string, error) {
	d, err := ds.Dataset()
	if err != nil {
		return nil, err
	}
	return d.IndicatorCodes(), nil
}

// Series returns the annual series of one indicator at the national
// level, with per-year growth rates.
func (ds *DataService) Series(ctx context.Context, indicatorCode string) (domain.Series, []analytics.GrowthPoint, error) {
	if indicatorCode == "" {
		return domain.Series{}, nil, fmt.Errorf("%w: indicator code required", ErrInvalidInput)
	}
	d, err := ds.Dataset()
	if err != nil {
		return domain.Series{}, nil, err
	}
	series := d.SeriesFor(domain.SeriesKey{IndicatorCode: indicatorCode})
	return series, analytics.GrowthRates(series), nil
}

// GenderGap returns the male/female gap rows for an indicator.
func (ds *DataService) GenderGap(ctx context.Context, indicatorCode string) ([]analytics.GenderGapRow, error) {
	d, err := ds.Dataset()
	if err != nil {
		return nil, err
	}
	return analytics.GenderGap(d, indicatorCode), nil
}

// Events returns the dated events, ordered as stored.
func (ds *DataService) Events(ctx context.Context) ([]domain.Event, error) {
	d, err := ds.Dataset()
	if err != nil {
		return nil, err
	}
	return d.Events(), nil
}
