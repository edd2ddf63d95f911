package exporter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finclusion/internal/config"
	"finclusion/internal/dataset"
	"finclusion/internal/enrich"
	"finclusion/internal/impact"
	"finclusion/internal/shared/testutil"
	"finclusion/pkg/contracts/domain"
)

func newTestWriter(t *testing.T) (*CSVWriter, *config.Paths) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	paths := &config.Paths{OutputDir: t.TempDir()}
	return NewCSVWriter(paths, logger), paths
}

func TestWriteEnrichedDataset_RoundTripsThroughLoader(t *testing.T) {
	writer, paths := newTestWriter(t)
	logger, _ := testutil.NewTestLogger(t)

	// Values chosen so the interpolated fills are exact at the export
	// precision.
	ds := domain.Dataset{Records: []domain.Record{
		testutil.Observation("OBS_1", "ACC_OWNERSHIP", 2018, 22.5, domain.ConfidenceHigh),
		testutil.Observation("OBS_2", "ACC_OWNERSHIP", 2021, 34.5, domain.ConfidenceMedium),
		testutil.Event("EVT_1", "Telebirr launch",
			time.Date(2021, 5, 11, 0, 0, 0, 0, time.UTC), domain.CategoryProductLaunch),
		testutil.ImpactLink("IMP_1", "EVT_1", "ACC_OWNERSHIP", domain.DirectionIncrease, 2, 6),
	}}

	enricher := enrich.NewEnricher(config.Default().Model, logger)
	enriched, _, err := enricher.Enrich(context.Background(), ds)
	require.NoError(t, err)

	require.NoError(t, writer.WriteEnrichedDataset(enriched))

	loader := dataset.NewLoader(logger)
	reloaded, err := loader.LoadCSV(context.Background(), paths.OutputPath(config.EnrichedDataFile))
	require.NoError(t, err)

	require.Len(t, reloaded.Records, len(enriched.Records))

	byID := make(map[string]domain.Record, len(reloaded.Records))
	for _, r := range reloaded.Records {
		byID[r.ID] = r
	}

	for _, want := range enriched.Records {
		got, ok := byID[want.ID]
		require.True(t, ok, "record %s survives the round trip", want.ID)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.IndicatorCode, got.IndicatorCode)
		assert.InDelta(t, want.Value, got.Value, 1e-9)
		assert.Equal(t, want.Confidence, got.Confidence)
		assert.Equal(t, want.Interpolated, got.Interpolated)
		assert.Equal(t, want.SourceName, got.SourceName)
		if want.Type == domain.RecordTypeObservation {
			assert.Equal(t, want.Date.Year(), got.Date.Year())
		}
	}

	// Interpolated rows exist and are flagged as such in the export.
	interpolated := 0
	for _, r := range reloaded.Records {
		if r.Interpolated {
			interpolated++
			assert.Equal(t, "interpolation", r.SourceName)
		}
	}
	assert.Equal(t, 2, interpolated, "gap years 2019 and 2020 filled")
}

func TestWriteImpactMatrix(t *testing.T) {
	writer, paths := newTestWriter(t)

	matrix := impact.NewMatrix()
	event := testutil.Event("EVT_1", "Telebirr launch",
		time.Date(2021, 5, 11, 0, 0, 0, 0, time.UTC), domain.CategoryProductLaunch).AsEvent()
	matrix.Set(event, domain.ImpactEstimate{
		EventID:       "EVT_1",
		EventName:     "Telebirr launch",
		IndicatorCode: "USG_MM_USERS",
		Magnitude:     2.5,
		LagMonths:     6,
		Confidence:    0.8,
		Provenance:    domain.ProvenanceLocal,
	})

	require.NoError(t, writer.WriteImpactMatrix(matrix))

	raw, err := os.ReadFile(paths.OutputPath(config.ImpactMatrixFile))
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "EVT_1")
	assert.Contains(t, content, "2021-05-11")
	assert.Contains(t, content, "local")
	assert.Contains(t, content, "2.5000")
}

func TestWriteForecasts(t *testing.T) {
	writer, paths := newTestWriter(t)

	forecasts := map[string]domain.ForecastSeries{
		"ACC_OWNERSHIP": {
			IndicatorCode: "ACC_OWNERSHIP",
			Family:        domain.TrendLinear,
			Baseline:      map[int]float64{2025: 40},
			Scenarios: map[domain.Scenario][]domain.ForecastPoint{
				domain.ScenarioBase: {{
					IndicatorCode: "ACC_OWNERSHIP", Year: 2025,
					Scenario: domain.ScenarioBase,
					Value:    42, LowerBound: 39, UpperBound: 45,
				}},
			},
		},
	}

	require.NoError(t, writer.WriteForecasts(forecasts))

	raw, err := os.ReadFile(paths.OutputPath(config.ForecastFile))
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "ACC_OWNERSHIP,2025,base")
	assert.Contains(t, content, "42.0000")
	assert.Contains(t, content, "linear")
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "", formatFloat(0))
	assert.Equal(t, "34.2500", formatFloat(34.25))
	assert.Equal(t, "-1.5000", formatFloat(-1.5))
}
