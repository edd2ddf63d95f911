package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finclusion/internal/config"
	apierrors "finclusion/internal/errors"
	"finclusion/internal/impact"
	"finclusion/internal/shared/testutil"
	"finclusion/pkg/contracts/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewEngine(config.Default().Model, logger)
}

func percentDataset(code string, startYear int, values []float64) domain.Dataset {
	ds := testutil.SeriesDataset(code, startYear, values)
	ds.ReferenceCodes = append(ds.ReferenceCodes, domain.ReferenceCode{
		Kind: "indicator", Code: code, Unit: "percent",
	})
	return ds
}

func matrixWithEstimate(t *testing.T, code string, magnitude float64, eventYear, lagMonths int) *impact.Matrix {
	t.Helper()
	matrix := impact.NewMatrix()
	event := testutil.Event("EVT_1", "test event",
		time.Date(eventYear, 6, 1, 0, 0, 0, 0, time.UTC), domain.CategoryProductLaunch).AsEvent()
	matrix.Set(event, domain.ImpactEstimate{
		EventID:       "EVT_1",
		EventName:     "test event",
		IndicatorCode: code,
		Magnitude:     magnitude,
		LagMonths:     lagMonths,
		Confidence:    0.8,
		Provenance:    domain.ProvenanceLocal,
	})
	return matrix
}

func TestForecast_ScenarioOrderingHolds(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name      string
		magnitude float64
	}{
		{"positive event effect", 3.0},
		{"negative event effect", -3.0},
		{"no event effect", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := percentDataset("ACC_OWNERSHIP", 2018, []float64{20, 24, 28, 32, 36, 40, 44})
			matrix := matrixWithEstimate(t, "ACC_OWNERSHIP", tt.magnitude, 2021, 0)

			fc, err := e.Forecast(context.Background(), ds, matrix, "ACC_OWNERSHIP")
			require.NoError(t, err)

			pess := fc.PointsFor(domain.ScenarioPessimistic)
			base := fc.PointsFor(domain.ScenarioBase)
			opt := fc.PointsFor(domain.ScenarioOptimistic)
			require.Len(t, base, 3)

			for i := range base {
				assert.Equal(t, base[i].Year, pess[i].Year)
				assert.LessOrEqual(t, pess[i].Value, base[i].Value)
				assert.LessOrEqual(t, base[i].Value, opt[i].Value)
			}
		})
	}
}

func TestForecast_FlatSeriesStaysFlat(t *testing.T) {
	e := newTestEngine(t)
	ds := testutil.SeriesDataset("USG_MM_USERS", 2019, []float64{51, 51, 51, 51, 51, 51})

	fc, err := e.Forecast(context.Background(), ds, nil, "USG_MM_USERS")
	require.NoError(t, err)

	assert.Equal(t, domain.TrendLinear, fc.Family)
	for _, p := range fc.PointsFor(domain.ScenarioBase) {
		assert.InDelta(t, 51, p.Value, 1e-9)
	}
}

func TestForecast_EventShiftPersistsAcrossHorizon(t *testing.T) {
	e := newTestEngine(t)
	ds := testutil.SeriesDataset("USG_MM_USERS", 2019, []float64{30, 30, 30, 30, 30, 30})
	matrix := matrixWithEstimate(t, "USG_MM_USERS", 2.0, 2021, 0)

	fc, err := e.Forecast(context.Background(), ds, matrix, "USG_MM_USERS")
	require.NoError(t, err)

	// The event predates the horizon so every projected year carries
	// the full level shift.
	for _, p := range fc.PointsFor(domain.ScenarioBase) {
		assert.InDelta(t, 32, p.Value, 1e-9)
	}
	for _, p := range fc.PointsFor(domain.ScenarioOptimistic) {
		assert.InDelta(t, 30+1.2*2.0, p.Value, 1e-9)
	}
	for _, p := range fc.PointsFor(domain.ScenarioPessimistic) {
		assert.InDelta(t, 30+0.8*2.0, p.Value, 1e-9)
	}
}

func TestForecast_LagDefersEffectYear(t *testing.T) {
	e := newTestEngine(t)
	ds := testutil.SeriesDataset("USG_MM_USERS", 2019, []float64{30, 30, 30, 30, 30, 30})
	// Event in 2024 with a 24-month lag lands in 2026: 2025 is
	// unaffected, 2026 and 2027 carry the shift.
	matrix := matrixWithEstimate(t, "USG_MM_USERS", 4.0, 2024, 24)

	fc, err := e.Forecast(context.Background(), ds, matrix, "USG_MM_USERS")
	require.NoError(t, err)

	base := fc.PointsFor(domain.ScenarioBase)
	require.Len(t, base, 3)
	assert.InDelta(t, 30, base[0].Value, 1e-9)
	assert.InDelta(t, 34, base[1].Value, 1e-9)
	assert.InDelta(t, 34, base[2].Value, 1e-9)
}

func TestForecast_PercentValuesClampToHundred(t *testing.T) {
	e := newTestEngine(t)
	// Hits 100 in-sample, so the linear family applies and projects
	// past the ceiling without clamping at fit time.
	ds := percentDataset("ACC_OWNERSHIP", 2020, []float64{92, 94, 96, 98, 100})

	fc, err := e.Forecast(context.Background(), ds, nil, "ACC_OWNERSHIP")
	require.NoError(t, err)

	assert.Equal(t, domain.TrendLinear, fc.Family)
	for _, p := range fc.PointsFor(domain.ScenarioOptimistic) {
		assert.InDelta(t, 100, p.Value, 1e-9)
		assert.InDelta(t, 100, p.UpperBound, 1e-9)
	}
}

func TestForecast_CountValuesClampToZero(t *testing.T) {
	e := newTestEngine(t)
	ds := testutil.SeriesDataset("INF_AGENTS", 2020, []float64{40, 30, 20, 10, 0})

	fc, err := e.Forecast(context.Background(), ds, nil, "INF_AGENTS")
	require.NoError(t, err)

	for _, p := range fc.PointsFor(domain.ScenarioPessimistic) {
		assert.GreaterOrEqual(t, p.Value, 0.0)
		assert.GreaterOrEqual(t, p.LowerBound, 0.0)
	}
}

func TestForecast_BandsWidenWithDistance(t *testing.T) {
	e := newTestEngine(t)
	// Off-trend noise keeps the residual std positive so widening is
	// visible on top of it.
	ds := testutil.SeriesDataset("USG_MM_USERS", 2018, []float64{300, 312, 318, 334, 341, 355, 362})

	fc, err := e.Forecast(context.Background(), ds, nil, "USG_MM_USERS")
	require.NoError(t, err)

	base := fc.PointsFor(domain.ScenarioBase)
	require.Len(t, base, 3)
	for i := 1; i < len(base); i++ {
		prev := base[i-1].UpperBound - base[i-1].LowerBound
		cur := base[i].UpperBound - base[i].LowerBound
		assert.Greater(t, cur, prev)
	}
}

func TestForecast_InputErrors(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name string
		ds   domain.Dataset
	}{
		{"no series", domain.Dataset{}},
		{"single observation", testutil.SeriesDataset("ACC_OWNERSHIP", 2023, []float64{42})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Forecast(context.Background(), tt.ds, nil, "ACC_OWNERSHIP")
			var fiErr *apierrors.ForecastInputError
			require.ErrorAs(t, err, &fiErr)
			assert.Equal(t, "ACC_OWNERSHIP", fiErr.IndicatorCode)
		})
	}
}

func TestForecastAll_SkipsShortSeriesAndKeepsRest(t *testing.T) {
	e := newTestEngine(t)
	ds := testutil.SeriesDataset("ACC_OWNERSHIP", 2019, []float64{20, 25, 30, 35, 40})
	short := testutil.SeriesDataset("INF_AGENTS", 2024, []float64{12})
	ds.Records = append(ds.Records, short.Records...)

	out, err := e.ForecastAll(context.Background(), ds, nil)
	require.NoError(t, err)

	assert.Contains(t, out, "ACC_OWNERSHIP")
	assert.NotContains(t, out, "INF_AGENTS")
}

func TestFitTrend_PrefersLogisticForSaturatingSeries(t *testing.T) {
	points := make([]domain.SeriesPoint, 0, 10)
	for year := 2015; year <= 2024; year++ {
		z := 0.8 * float64(year-2019)
		points = append(points, domain.SeriesPoint{
			Year:  year,
			Value: 100 / (1 + math.Exp(-z)),
		})
	}
	series := domain.Series{Points: points}

	model := FitTrend(series, "percent")
	assert.Equal(t, domain.TrendLogistic, model.Family())

	// The same curvature in a count series has no saturation bound to
	// respect, so it stays linear.
	model = FitTrend(series, "count")
	assert.Equal(t, domain.TrendLinear, model.Family())
}

func TestFitTrend_TieGoesToLinear(t *testing.T) {
	series := domain.Series{Points: []domain.SeriesPoint{
		{Year: 2020, Value: 10},
		{Year: 2021, Value: 20},
		{Year: 2022, Value: 30},
	}}

	model := FitTrend(series, "percent")
	assert.Equal(t, domain.TrendLinear, model.Family())
	assert.InDelta(t, 40, model.Predict(2023), 1e-9)
}
