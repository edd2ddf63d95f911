package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"finclusion/internal/config"
	"finclusion/internal/forecast"
	"finclusion/internal/impact"
	"finclusion/internal/infrastructure"
	"finclusion/pkg/contracts/domain"
)

// ForecastService builds and caches the event-impact matrix and the
// scenario forecasts derived from the data service's snapshot.
// Concurrent callers of a cold cache share one build via singleflight.
type ForecastService struct {
	config    *config.Config
	logger    *slog.Logger
	data      *DataService
	estimator *impact.Estimator
	engine    *forecast.Engine
	metrics   *infrastructure.PipelineMetrics
	group     singleflight.Group

	mu        sync.RWMutex
	matrix    *impact.Matrix
	forecasts map[string]domain.ForecastSeries
	builtAt   time.Time
}

// NewForecastService creates a forecast service. metrics may be nil.
func NewForecastService(cfg *config.Config, data *DataService, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *ForecastService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "services.forecast"))

	return &ForecastService{
		config:    cfg,
		logger:    logger,
		data:      data,
		estimator: impact.NewEstimator(cfg.Model, logger),
		engine:    forecast.NewEngine(cfg.Model, logger),
		metrics:   metrics,
	}
}

// Invalidate drops the cached model. The data service calls this via
// the application after a refresh so the next read rebuilds.
func (fs *ForecastService) Invalidate() {
	fs.mu.Lock()
	fs.matrix = nil
	fs.forecasts = nil
	fs.builtAt = time.Time{}
	fs.mu.Unlock()
}

// build runs the estimator and engine over the current dataset and
// caches the result. Deduplicated across concurrent callers.
func (fs *ForecastService) build(ctx context.Context) error {
	_, err, _ := fs.group.Do("build", func() (interface{}, error) {
		fs.mu.RLock()
		fresh := !fs.builtAt.IsZero() && !fs.builtAt.Before(fs.data.LoadedAt())
		fs.mu.RUnlock()
		if fresh {
			return nil, nil
		}

		ds, err := fs.data.Dataset()
		if err != nil {
			return nil, err
		}

		start := time.Now()
		matrix, err := fs.estimator.EstimateAll(ctx, ds)
		if err != nil {
			return nil, fmt.Errorf("estimate impacts: %w", err)
		}
		fs.recordStage(ctx, "estimate", time.Since(start))
		if fs.metrics != nil {
			fs.metrics.BorrowedEstimates.Add(ctx, int64(countBorrowed(matrix)))
		}

		start = time.Now()
		forecasts, err := fs.engine.ForecastAll(ctx, ds, matrix)
		if err != nil {
			return nil, fmt.Errorf("build forecasts: %w", err)
		}
		fs.recordStage(ctx, "forecast", time.Since(start))
		if fs.metrics != nil {
			fs.metrics.ForecastsProduced.Add(ctx, int64(len(forecasts)))
		}

		fs.mu.Lock()
		fs.matrix = matrix
		fs.forecasts = forecasts
		fs.builtAt = time.Now()
		fs.mu.Unlock()

		fs.logger.InfoContext(ctx, "forecast model built",
			slog.Int("estimates", matrix.Len()),
			slog.Int("forecast_indicators", len(forecasts)))
		return nil, nil
	})
	return err
}

func (fs *ForecastService) recordStage(ctx context.Context, stage string, d time.Duration) {
	if fs.metrics != nil {
		fs.metrics.RecordStage(ctx, stage, d)
	}
}

// Matrix returns the event-impact matrix, building it if needed.
func (fs *ForecastService) Matrix(ctx context.Context) (*impact.Matrix, error) {
	if err := fs.build(ctx); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.matrix == nil {
		return nil, ErrModelNotBuilt
	}
	return fs.matrix, nil
}

// ForecastAll returns the scenario forecasts for every indicator with
// a fittable trend.
func (fs *ForecastService) ForecastAll(ctx context.Context) (map[string]domain.ForecastSeries, error) {
	if err := fs.build(ctx); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.forecasts == nil {
		return nil, ErrModelNotBuilt
	}
	return fs.forecasts, nil
}

// Forecast returns one indicator's scenario forecast.
func (fs *ForecastService) Forecast(ctx context.Context, indicatorCode string) (domain.ForecastSeries, error) {
	if indicatorCode == "" {
		return domain.ForecastSeries{}, fmt.Errorf("%w: indicator code required", ErrInvalidInput)
	}
	all, err := fs.ForecastAll(ctx)
	if err != nil {
		return domain.ForecastSeries{}, err
	}
	fc, ok := all[indicatorCode]
	if !ok {
		// Not cached does not mean not forecastable: a fresh series may
		// simply be too short. Surface the engine's own error.
		ds, derr := fs.data.Dataset()
		if derr != nil {
			return domain.ForecastSeries{}, derr
		}
		matrix, merr := fs.Matrix(ctx)
		if merr != nil {
			return domain.ForecastSeries{}, merr
		}
		return fs.engine.Forecast(ctx, ds, matrix, indicatorCode)
	}
	return fc, nil
}

// Validation replays estimated impacts over the observed history and
// reports residuals, the model's own backtest.
func (fs *ForecastService) Validation(ctx context.Context) ([]impact.ValidationRow, error) {
	ds, err := fs.data.Dataset()
	if err != nil {
		return nil, err
	}
	matrix, err := fs.Matrix(ctx)
	if err != nil {
		return nil, err
	}

	years := yearSpan(ds)
	if len(years) == 0 {
		return nil, ErrNoObservations
	}
	simulated := matrix.Simulate(ds, years[0], years[len(years)-1])
	return impact.ValidateAgainstObserved(simulated, ds), nil
}

// BuiltAt returns when the cached model was built, or zero.
func (fs *ForecastService) BuiltAt() time.Time {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.builtAt
}

func countBorrowed(m *impact.Matrix) int {
	n := 0
	for _, est := range m.Estimates() {
		if est.Provenance == domain.ProvenanceBorrowed {
			n++
		}
	}
	return n
}

func yearSpan(ds domain.Dataset) []int {
	minYear, maxYear := 0, 0
	for _, obs := range ds.Observations() {
		y := obs.Date.Year()
		if minYear == 0 || y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}
	if minYear == 0 {
		return nil
	}
	years := make([]int, 0, maxYear-minYear+1)
	for y := minYear; y <= maxYear; y++ {
		years = append(years, y)
	}
	return years
}
