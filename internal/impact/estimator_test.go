package impact

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finclusion/internal/config"
	"finclusion/internal/shared/testutil"
	"finclusion/pkg/contracts/domain"
)

func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewEstimator(config.Default().Model, logger)
}

// stepDataset builds a series flat at base through the event year,
// then shifted by step from onsetYear on, with the event and link
// records attached.
func stepDataset(base, step float64, eventYear, onsetYear, lastYear int) domain.Dataset {
	ds := domain.Dataset{}
	id := 0
	for y := eventYear - 5; y <= lastYear; y++ {
		id++
		v := base
		if y >= onsetYear {
			v = base + step
		}
		ds.Records = append(ds.Records, testutil.Observation(
			obsID(id), "USG_MM_USERS", y, v, domain.ConfidenceHigh))
	}
	ds.Records = append(ds.Records,
		testutil.Event("EVT_1", "Telebirr launch",
			time.Date(eventYear, 5, 11, 0, 0, 0, 0, time.UTC), domain.CategoryProductLaunch),
		testutil.ImpactLink("IMP_1", "EVT_1", "USG_MM_USERS", domain.DirectionIncrease, 0, 0),
	)
	return ds
}

func obsID(i int) string {
	return fmt.Sprintf("OBS_%d", i)
}

func TestEstimateAll_RecoversStepChange(t *testing.T) {
	e := newTestEstimator(t)

	tests := []struct {
		name      string
		step      float64
		onsetYear int
		wantLag   int
	}{
		{"immediate step", 5, 2020, 0},
		{"one year lag", 5, 2021, 12},
		{"negative step", -4, 2021, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := stepDataset(20, tt.step, 2020, tt.onsetYear, 2022)

			matrix, err := e.EstimateAll(context.Background(), ds)
			require.NoError(t, err)

			est, ok := matrix.Get("EVT_1", "USG_MM_USERS")
			require.True(t, ok)

			assert.Equal(t, domain.ProvenanceLocal, est.Provenance)
			assert.InDelta(t, tt.step, est.Magnitude, 0.1*absf(tt.step),
				"magnitude within 10%% of the injected step")
			assert.Equal(t, tt.wantLag, est.LagMonths)
		})
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestEstimateAll_StatedMagnitudeWhenHistoryShort(t *testing.T) {
	e := newTestEstimator(t)

	// Only one pre-event point: local estimation cannot run, but the
	// link carries a collected magnitude which must survive.
	ds := domain.Dataset{Records: []domain.Record{
		testutil.Observation("OBS_1", "USG_MM_USERS", 2020, 20, domain.ConfidenceHigh),
		testutil.Event("EVT_1", "Telebirr launch",
			time.Date(2021, 5, 11, 0, 0, 0, 0, time.UTC), domain.CategoryProductLaunch),
		testutil.ImpactLink("IMP_1", "EVT_1", "USG_MM_USERS", domain.DirectionIncrease, 2.0, 6),
	}}

	matrix, err := e.EstimateAll(context.Background(), ds)
	require.NoError(t, err)

	est, ok := matrix.Get("EVT_1", "USG_MM_USERS")
	require.True(t, ok)
	assert.Equal(t, domain.ProvenanceStated, est.Provenance)
	assert.InDelta(t, 2.0, est.Magnitude, 1e-9)
	assert.Equal(t, 6, est.LagMonths)
}

func TestEstimateAll_BorrowsWhenNothingStated(t *testing.T) {
	e := newTestEstimator(t)

	ds := domain.Dataset{Records: []domain.Record{
		testutil.Observation("OBS_1", "USG_MM_USERS", 2020, 20, domain.ConfidenceHigh),
		testutil.Event("EVT_1", "Telebirr launch",
			time.Date(2021, 5, 11, 0, 0, 0, 0, time.UTC), domain.CategoryProductLaunch),
		testutil.ImpactLink("IMP_1", "EVT_1", "USG_MM_USERS", domain.DirectionIncrease, 0, 0),
	}}

	matrix, err := e.EstimateAll(context.Background(), ds)
	require.NoError(t, err)

	est, ok := matrix.Get("EVT_1", "USG_MM_USERS")
	require.True(t, ok)
	assert.Equal(t, domain.ProvenanceBorrowed, est.Provenance)
	assert.InDelta(t, 2.5, est.Magnitude, 1e-9, "product_launch prior")
	assert.Equal(t, 6, est.LagMonths)

	// Borrowed confidence is scaled down.
	cfg := config.Default().Model
	assert.InDelta(t, 0.6*cfg.BorrowedConfidenceFactor, est.Confidence, 1e-9)
}

func TestEstimateAll_DirectionSignsBorrowedPrior(t *testing.T) {
	e := newTestEstimator(t)

	ds := domain.Dataset{Records: []domain.Record{
		testutil.Observation("OBS_1", "USG_MM_USERS", 2020, 20, domain.ConfidenceHigh),
		testutil.Event("EVT_1", "SIM registration mandate",
			time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), domain.CategoryPolicy),
		testutil.ImpactLink("IMP_1", "EVT_1", "USG_MM_USERS", domain.DirectionDecrease, 0, 0),
	}}

	matrix, err := e.EstimateAll(context.Background(), ds)
	require.NoError(t, err)

	est, ok := matrix.Get("EVT_1", "USG_MM_USERS")
	require.True(t, ok)
	assert.Negative(t, est.Magnitude)
}

func TestEstimateAll_NoDeviationFallsBackToStated(t *testing.T) {
	e := newTestEstimator(t)

	// Long flat series on both sides of the event: no onset is ever
	// detected, so the collected estimate stands.
	ds := stepDataset(30, 0, 2020, 2099, 2023)
	ds.Records = ds.Records[:len(ds.Records)-1]
	ds.Records = append(ds.Records,
		testutil.ImpactLink("IMP_1", "EVT_1", "USG_MM_USERS", domain.DirectionIncrease, 1.5, 12))

	matrix, err := e.EstimateAll(context.Background(), ds)
	require.NoError(t, err)

	est, ok := matrix.Get("EVT_1", "USG_MM_USERS")
	require.True(t, ok)
	assert.Equal(t, domain.ProvenanceStated, est.Provenance)
	assert.InDelta(t, 1.5, est.Magnitude, 1e-9)
}

func TestEstimateAll_UnknownEventFails(t *testing.T) {
	e := newTestEstimator(t)

	ds := domain.Dataset{Records: []domain.Record{
		testutil.Observation("OBS_1", "USG_MM_USERS", 2020, 20, domain.ConfidenceHigh),
		testutil.ImpactLink("IMP_1", "EVT_MISSING", "USG_MM_USERS", domain.DirectionIncrease, 1, 0),
	}}

	_, err := e.EstimateAll(context.Background(), ds)
	require.Error(t, err)
}
