package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "finclusion/internal/errors"
	"finclusion/internal/shared/testutil"
	"finclusion/pkg/contracts/domain"
)

func obsWithSource(id, code string, year int, value float64, conf domain.Confidence, source string, collected time.Time) domain.Record {
	rec := testutil.Observation(id, code, year, value, conf)
	rec.SourceName = source
	rec.CollectionDate = collected
	return rec
}

func TestMergeSupplementary_HigherConfidenceWins(t *testing.T) {
	e := newTestEnricher(t)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	ds := domain.Dataset{Records: []domain.Record{
		obsWithSource("OBS_1", "ACC_OWNERSHIP", 2021, 34, domain.ConfidenceLow, "survey_a", day),
	}}
	sup := []domain.Record{
		obsWithSource("OBS_100", "ACC_OWNERSHIP", 2021, 46.5, domain.ConfidenceHigh, "findex", day),
	}

	out, audit, err := e.MergeSupplementary(context.Background(), ds, sup)
	require.NoError(t, err)

	series := out.SeriesFor(domain.SeriesKey{IndicatorCode: "ACC_OWNERSHIP"})
	require.Len(t, series.Points, 1)
	assert.InDelta(t, 46.5, series.Points[0].Value, 1e-9)

	// The discarded record's provenance lands in the audit trail.
	require.Len(t, audit.Entries, 1)
	assert.Equal(t, ActionDiscarded, audit.Entries[0].Action)
	assert.Equal(t, "OBS_1", audit.Entries[0].RecordID)
	assert.NotEmpty(t, audit.Entries[0].Fingerprint)
}

func TestMergeSupplementary_ReusedIDStillReplaced(t *testing.T) {
	e := newTestEnricher(t)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// A supplementary export may carry the same record IDs as the
	// primary dataset; the winner is decided by provenance, not ID.
	ds := domain.Dataset{Records: []domain.Record{
		obsWithSource("OBS_1", "ACC_OWNERSHIP", 2021, 34, domain.ConfidenceLow, "survey_a", day),
	}}
	sup := []domain.Record{
		obsWithSource("OBS_1", "ACC_OWNERSHIP", 2021, 46.5, domain.ConfidenceHigh, "findex", day),
	}

	out, audit, err := e.MergeSupplementary(context.Background(), ds, sup)
	require.NoError(t, err)

	series := out.SeriesFor(domain.SeriesKey{IndicatorCode: "ACC_OWNERSHIP"})
	require.Len(t, series.Points, 1)
	assert.InDelta(t, 46.5, series.Points[0].Value, 1e-9)
	assert.Equal(t, "findex", series.Points[0].SourceName)

	require.Len(t, audit.Entries, 1)
	assert.Equal(t, ActionDiscarded, audit.Entries[0].Action)
	assert.Equal(t, "survey_a", audit.Entries[0].SourceName)
}

func TestMergeSupplementary_EqualConfidenceTieBreakIsOrderIndependent(t *testing.T) {
	e := newTestEnricher(t)

	older := obsWithSource("OBS_1", "ACC_OWNERSHIP", 2021, 34.2, domain.ConfidenceHigh, "survey_a",
		time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	newer := obsWithSource("OBS_2", "ACC_OWNERSHIP", 2021, 34.8, domain.ConfidenceHigh, "survey_b",
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	// Merge newer into older, and older into newer: both orders must
	// keep the same value.
	outA, _, err := e.MergeSupplementary(context.Background(),
		domain.Dataset{Records: []domain.Record{older}}, []domain.Record{newer})
	require.NoError(t, err)

	outB, _, err := e.MergeSupplementary(context.Background(),
		domain.Dataset{Records: []domain.Record{newer}}, []domain.Record{older})
	require.NoError(t, err)

	a := outA.SeriesFor(domain.SeriesKey{IndicatorCode: "ACC_OWNERSHIP"}).Points[0].Value
	b := outB.SeriesFor(domain.SeriesKey{IndicatorCode: "ACC_OWNERSHIP"}).Points[0].Value
	assert.Equal(t, a, b)
	assert.InDelta(t, 34.8, a, 1e-9, "most recent collection date wins")
}

func TestMergeSupplementary_SameDateTieBreaksOnSourceName(t *testing.T) {
	e := newTestEnricher(t)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	recA := obsWithSource("OBS_1", "ACC_OWNERSHIP", 2021, 34.2, domain.ConfidenceHigh, "alpha", day)
	recB := obsWithSource("OBS_2", "ACC_OWNERSHIP", 2021, 34.8, domain.ConfidenceHigh, "beta", day)

	outA, _, err := e.MergeSupplementary(context.Background(),
		domain.Dataset{Records: []domain.Record{recA}}, []domain.Record{recB})
	require.NoError(t, err)
	outB, _, err := e.MergeSupplementary(context.Background(),
		domain.Dataset{Records: []domain.Record{recB}}, []domain.Record{recA})
	require.NoError(t, err)

	a := outA.SeriesFor(domain.SeriesKey{IndicatorCode: "ACC_OWNERSHIP"}).Points[0].Value
	b := outB.SeriesFor(domain.SeriesKey{IndicatorCode: "ACC_OWNERSHIP"}).Points[0].Value
	assert.Equal(t, a, b)
	assert.InDelta(t, 34.8, a, 1e-9, "lexically larger source name wins the final tie")
}

func TestMergeSupplementary_BeyondToleranceFails(t *testing.T) {
	e := newTestEnricher(t)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ds := domain.Dataset{Records: []domain.Record{
		obsWithSource("OBS_1", "ACC_OWNERSHIP", 2021, 34, domain.ConfidenceHigh, "survey_a", day),
	}}
	sup := []domain.Record{
		obsWithSource("OBS_2", "ACC_OWNERSHIP", 2021, 39, domain.ConfidenceHigh, "survey_b", day),
	}

	_, _, err := e.MergeSupplementary(context.Background(), ds, sup)
	require.Error(t, err)

	var conflict *apierrors.MergeConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "ACC_OWNERSHIP", conflict.IndicatorCode)
	assert.Equal(t, 2021, conflict.Year)
}

func TestMergeSupplementary_NewPeriodAppends(t *testing.T) {
	e := newTestEnricher(t)

	ds := domain.Dataset{Records: []domain.Record{
		testutil.Observation("OBS_1", "ACC_OWNERSHIP", 2021, 34, domain.ConfidenceHigh),
	}}
	sup := []domain.Record{
		testutil.Observation("OBS_2", "ACC_OWNERSHIP", 2022, 40, domain.ConfidenceMedium),
	}

	out, audit, err := e.MergeSupplementary(context.Background(), ds, sup)
	require.NoError(t, err)

	series := out.SeriesFor(domain.SeriesKey{IndicatorCode: "ACC_OWNERSHIP"})
	assert.Len(t, series.Points, 2)
	require.Len(t, audit.Entries, 1)
	assert.Equal(t, ActionAdded, audit.Entries[0].Action)
}

func TestMergeSupplementary_DimensionsAreSeparateCells(t *testing.T) {
	e := newTestEnricher(t)

	base := testutil.Observation("OBS_1", "ACC_OWNERSHIP", 2021, 40, domain.ConfidenceHigh)
	female := testutil.Observation("OBS_2", "ACC_OWNERSHIP", 2021, 33, domain.ConfidenceHigh)
	female.Gender = "female"

	out, _, err := e.MergeSupplementary(context.Background(),
		domain.Dataset{Records: []domain.Record{base}}, []domain.Record{female})
	require.NoError(t, err)
	assert.Len(t, out.Records, 2, "different dimensions never conflict")
}
