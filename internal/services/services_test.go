package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finclusion/internal/config"
	"finclusion/internal/shared/testutil"
	"finclusion/pkg/contracts/domain"
)

var csvHeader = []string{
	"record_id", "record_type", "indicator_code", "value_numeric",
	"observation_date", "gender", "source_name", "confidence",
	"event_name", "event_date", "category",
	"parent_id", "related_indicator", "impact_direction", "impact_magnitude", "lag_months",
}

// writeTelebirrFixture builds a dataset file with an account ownership
// history rising one point a year across the Telebirr expansion and a
// stated +2pp impact link lagged by a year.
func writeTelebirrFixture(t *testing.T) string {
	t.Helper()

	rows := [][]string{csvHeader}
	for i, year := 0, 2021; year <= 2024; i, year = i+1, year+1 {
		rows = append(rows, []string{
			fmt.Sprintf("OBS_%d", i+1), "observation", "ACC_OWNERSHIP", fmt.Sprintf("%d", 46+i),
			fmt.Sprintf("%d-12-31", year), "all", "NBE report", "high",
			"", "", "", "", "", "", "", "",
		})
	}
	rows = append(rows,
		[]string{"EVT_1", "event", "", "", "", "", "NBE report", "high",
			"Telebirr expansion", "2022-01-01", "product_launch", "", "", "", "", ""},
		[]string{"IMP_1", "impact_link", "", "", "", "", "collection sheet", "medium",
			"", "", "", "EVT_1", "ACC_OWNERSHIP", "increase", "2", "12"},
	)

	path := filepath.Join(t.TempDir(), "unified.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
	require.NoError(t, f.Close())
	return path
}

func newTestServices(t *testing.T, datasetFile string) (*DataService, *ForecastService) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	cfg := config.Default()
	cfg.Paths.DatasetFile = datasetFile
	paths := &config.Paths{
		DataDir:   filepath.Dir(datasetFile),
		OutputDir: t.TempDir(),
	}

	data := NewDataService(cfg, paths, nil, nil, logger)
	fc := NewForecastService(cfg, data, nil, logger)
	return data, fc
}

func TestDataService_AccessorsBeforeRefresh(t *testing.T) {
	data, _ := newTestServices(t, "does-not-exist.csv")

	_, err := data.Dataset()
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)
	_, err = data.Summary(context.Background())
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)
	assert.True(t, data.LoadedAt().IsZero())
}

func TestDataService_RefreshLoadsAndKeepsSnapshotOnFailure(t *testing.T) {
	path := writeTelebirrFixture(t)
	data, _ := newTestServices(t, path)
	ctx := context.Background()

	require.NoError(t, data.Refresh(ctx))

	ds, err := data.Dataset()
	require.NoError(t, err)
	assert.Equal(t, []string{"ACC_OWNERSHIP"}, ds.IndicatorCodes())
	assert.Len(t, ds.Events(), 1)
	assert.False(t, data.LoadedAt().IsZero())

	// A failing refresh leaves the previous snapshot readable.
	require.NoError(t, os.Remove(path))
	require.Error(t, data.Refresh(ctx))
	_, err = data.Dataset()
	assert.NoError(t, err)
}

func TestForecastService_TelebirrShiftsBaseForecast(t *testing.T) {
	data, fc := newTestServices(t, writeTelebirrFixture(t))
	ctx := context.Background()
	require.NoError(t, data.Refresh(ctx))

	forecast, err := fc.Forecast(ctx, "ACC_OWNERSHIP")
	require.NoError(t, err)

	// 46..49 over 2021-2024 extrapolates to 50 in 2025; the stated
	// +2pp effect, lagged a year past the 2022 expansion, lands in
	// 2023 and so shifts every horizon year of the base scenario.
	assert.InDelta(t, 50, forecast.Baseline[2025], 1e-6)

	base := forecast.PointsFor(domain.ScenarioBase)
	require.NotEmpty(t, base)
	assert.Equal(t, 2025, base[0].Year)
	assert.InDelta(t, 52, base[0].Value, 1e-6)

	// Matrix carries the stated estimate with its lag, confidence
	// untouched.
	matrix, err := fc.Matrix(ctx)
	require.NoError(t, err)
	est, ok := matrix.Get("EVT_1", "ACC_OWNERSHIP")
	require.True(t, ok)
	assert.Equal(t, domain.ProvenanceStated, est.Provenance)
	assert.InDelta(t, 2, est.Magnitude, 1e-9)
	assert.Equal(t, 12, est.LagMonths)
}

func TestForecastService_CachesUntilInvalidated(t *testing.T) {
	data, fc := newTestServices(t, writeTelebirrFixture(t))
	ctx := context.Background()
	require.NoError(t, data.Refresh(ctx))

	_, err := fc.ForecastAll(ctx)
	require.NoError(t, err)
	first := fc.BuiltAt()
	require.False(t, first.IsZero())

	// A second read reuses the cached model.
	_, err = fc.ForecastAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, fc.BuiltAt())

	fc.Invalidate()
	assert.True(t, fc.BuiltAt().IsZero())

	_, err = fc.ForecastAll(ctx)
	require.NoError(t, err)
	assert.True(t, fc.BuiltAt().After(first) || fc.BuiltAt().Equal(first))
}

func TestForecastService_UnknownIndicator(t *testing.T) {
	data, fc := newTestServices(t, writeTelebirrFixture(t))
	ctx := context.Background()
	require.NoError(t, data.Refresh(ctx))

	_, err := fc.Forecast(ctx, "NOT_A_CODE")
	require.Error(t, err)

	_, err = fc.Forecast(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestForecastService_Validation(t *testing.T) {
	data, fc := newTestServices(t, writeTelebirrFixture(t))
	ctx := context.Background()
	require.NoError(t, data.Refresh(ctx))

	rows, err := fc.Validation(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for _, row := range rows {
		assert.Equal(t, "ACC_OWNERSHIP", row.IndicatorCode)
	}
}
