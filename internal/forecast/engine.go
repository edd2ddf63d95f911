// Package forecast projects indicator series through the horizon:
// baseline trend extrapolation, event-augmented adjustment from the
// impact matrix, and optimistic/base/pessimistic scenario variants
// with widening confidence bands. The engine holds no state between
// runs; output is a pure function of history, impact matrix, and
// scenario parameters.
package forecast

import (
	"context"
	"log/slog"
	"sort"

	"finclusion/internal/config"
	apierrors "finclusion/internal/errors"
	"finclusion/internal/impact"
	"finclusion/internal/stats"
	"finclusion/pkg/contracts/domain"
)

// Engine produces scenario forecasts for indicators.
type Engine struct {
	cfg    config.ModelConfig
	logger *slog.Logger
}

// NewEngine creates an engine with the model configuration.
func NewEngine(cfg config.ModelConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "forecast.engine")),
	}
}

// Forecast projects one indicator through the configured horizon.
func (e *Engine) Forecast(ctx context.Context, ds domain.Dataset, matrix *impact.Matrix, indicatorCode string) (domain.ForecastSeries, error) {
	series := ds.SeriesFor(domain.SeriesKey{IndicatorCode: indicatorCode})
	if len(series.Points) == 0 {
		return domain.ForecastSeries{}, &apierrors.ForecastInputError{
			IndicatorCode: indicatorCode,
			Reason:        "no baseline series",
		}
	}
	if len(series.Points) < e.cfg.MinTrendObservations {
		return domain.ForecastSeries{}, &apierrors.ForecastInputError{
			IndicatorCode: indicatorCode,
			Reason: (&apierrors.InsufficientDataError{
				IndicatorCode: indicatorCode,
				Need:          e.cfg.MinTrendObservations,
				Have:          len(series.Points),
				Window:        "trend",
			}).Error(),
		}
	}

	unit := ds.IndicatorUnit(indicatorCode)
	model := FitTrend(series, unit)
	horizon := e.cfg.HorizonYears()
	lastObserved := series.LastYear()

	baseline := make(map[int]float64, len(horizon))
	for _, year := range horizon {
		baseline[year] = e.bound(model.Predict(year), unit)
	}

	// Event adjustment per horizon year: every estimate whose effect
	// year (event year plus whole-year lag) has arrived contributes
	// its magnitude as a persistent level shift.
	deltas := make(map[int]float64, len(horizon))
	if matrix != nil {
		for _, est := range matrix.EstimatesFor(indicatorCode) {
			event, ok := matrix.Event(est.EventID)
			if !ok {
				continue
			}
			effectYear := event.Date.Year() + est.LagMonths/12
			for _, year := range horizon {
				if effectYear <= year {
					deltas[year] += est.Magnitude
				}
			}
		}
	}

	multipliers := map[domain.Scenario]float64{
		domain.ScenarioOptimistic:  e.cfg.OptimisticMultiplier,
		domain.ScenarioBase:        e.cfg.BaseMultiplier,
		domain.ScenarioPessimistic: e.cfg.PessimisticMultiplier,
	}

	result := domain.ForecastSeries{
		IndicatorCode: indicatorCode,
		Family:        model.Family(),
		Baseline:      baseline,
		Scenarios:     make(map[domain.Scenario][]domain.ForecastPoint, len(multipliers)),
	}

	for _, year := range horizon {
		values := scenarioValues(baseline[year], deltas[year], multipliers)

		step := year - lastObserved
		if step < 1 {
			step = 1
		}
		halfWidth := e.cfg.CIZ*model.ResidualStd() + e.cfg.CIWideningPerStep*float64(step)

		for scenario, value := range values {
			v := e.bound(value, unit)
			result.Scenarios[scenario] = append(result.Scenarios[scenario], domain.ForecastPoint{
				IndicatorCode: indicatorCode,
				Year:          year,
				Scenario:      scenario,
				Value:         v,
				LowerBound:    e.bound(v-halfWidth, unit),
				UpperBound:    e.bound(v+halfWidth, unit),
			})
		}
	}

	for _, scenario := range domain.Scenarios() {
		points := result.Scenarios[scenario]
		sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })
		result.Scenarios[scenario] = points
	}

	e.logger.DebugContext(ctx, "forecast produced",
		slog.String("indicator", indicatorCode),
		slog.String("family", string(model.Family())),
		slog.Int("horizon_years", len(horizon)),
	)
	return result, nil
}

// ForecastAll projects every indicator in the dataset, skipping
// those without a fittable baseline rather than failing the batch.
func (e *Engine) ForecastAll(ctx context.Context, ds domain.Dataset, matrix *impact.Matrix) (map[string]domain.ForecastSeries, error) {
	out := make(map[string]domain.ForecastSeries)
	for _, code := range ds.IndicatorCodes() {
		fc, err := e.Forecast(ctx, ds, matrix, code)
		if err != nil {
			e.logger.WarnContext(ctx, "skipping indicator",
				slog.String("indicator", code),
				slog.String("error", err.Error()),
			)
			continue
		}
		out[code] = fc
	}
	if len(out) == 0 {
		return nil, &apierrors.ForecastInputError{
			IndicatorCode: "*",
			Reason:        "no indicator has enough history to fit a trend",
		}
	}
	return out, nil
}

// scenarioValues applies the multipliers to the event delta and
// reorders the results so the per-period invariant
// pessimistic <= base <= optimistic holds even when the net event
// effect is negative.
func scenarioValues(baseline, delta float64, multipliers map[domain.Scenario]float64) map[domain.Scenario]float64 {
	opt := baseline + multipliers[domain.ScenarioOptimistic]*delta
	base := baseline + multipliers[domain.ScenarioBase]*delta
	pess := baseline + multipliers[domain.ScenarioPessimistic]*delta

	lo, mid, hi := sorted3(opt, base, pess)
	return map[domain.Scenario]float64{
		domain.ScenarioPessimistic: lo,
		domain.ScenarioBase:        mid,
		domain.ScenarioOptimistic:  hi,
	}
}

func sorted3(a, b, c float64) (lo, mid, hi float64) {
	vals := []float64{a, b, c}
	sort.Float64s(vals)
	return vals[0], vals[1], vals[2]
}

// bound clamps percentage indicators to [0, 100] and counts to >= 0.
func (e *Engine) bound(v float64, unit string) float64 {
	if unit == "percent" {
		return stats.Clamp(v, 0, 100)
	}
	if v < 0 {
		return 0
	}
	return v
}
