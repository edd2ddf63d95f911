// Package enrich fills gaps in the loaded dataset and merges
// supplementary sources. It never mutates the input dataset: every
// operation returns a new enriched copy plus an audit trail of what
// was added or discarded.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"finclusion/internal/config"
	"finclusion/pkg/contracts/domain"
)

// Enricher applies interpolation and supplementary merges.
type Enricher struct {
	cfg    config.ModelConfig
	logger *slog.Logger
}

// NewEnricher creates an enricher with the model configuration.
func NewEnricher(cfg config.ModelConfig, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "enrich")),
	}
}

// Enrich interpolates missing interior periods for every
// (indicator, dimension) series and returns the enriched copy with
// the audit log of appended observations.
func (e *Enricher) Enrich(ctx context.Context, ds domain.Dataset) (domain.Dataset, *AuditLog, error) {
	out := ds.Clone()
	audit := NewAuditLog()

	nextID := newIDCounter(ds.Records, "OBS")

	added := 0
	for _, key := range ds.SeriesKeys() {
		series := ds.SeriesFor(key)
		for _, gap := range interiorGaps(series) {
			rec := e.interpolatedRecord(series, gap, nextID())
			out.Records = append(out.Records, rec)
			audit.RecordAdded(rec, "interpolated from adjacent known periods")
			added++
		}
	}

	e.logger.InfoContext(ctx, "enrichment complete",
		slog.Int("series", len(ds.SeriesKeys())),
		slog.Int("interpolated", added),
	)
	return out, audit, nil
}

// interpolatedRecord synthesizes the observation for one gap year.
// Confidence is the weaker of the two bounding points.
func (e *Enricher) interpolatedRecord(series domain.Series, gap gapYear, id string) domain.Record {
	conf := gap.before.Confidence
	if gap.after.Confidence.Rank() < conf.Rank() {
		conf = gap.after.Confidence
	}

	span := float64(gap.after.Year - gap.before.Year)
	frac := float64(gap.year-gap.before.Year) / span
	value := gap.before.Value + (gap.after.Value-gap.before.Value)*frac

	return domain.Record{
		ID:             id,
		Type:           domain.RecordTypeObservation,
		IndicatorCode:  series.Key.IndicatorCode,
		Gender:         series.Key.Dimension.Gender,
		Region:         series.Key.Dimension.Region,
		Value:          value,
		Date:           time.Date(gap.year, time.December, 31, 0, 0, 0, 0, time.UTC),
		SourceName:     "interpolation",
		Confidence:     conf,
		CollectedBy:    "enricher",
		CollectionDate: time.Now().UTC(),
		OriginalText:   fmt.Sprintf("interpolated between %d and %d", gap.before.Year, gap.after.Year),
		Interpolated:   true,
	}
}

// gapYear is a missing interior year with its bounding known points.
type gapYear struct {
	year          int
	before, after domain.SeriesPoint
}

// interiorGaps lists missing years strictly between the first and
// last known points. Years past the last known point are left alone;
// extrapolation is the forecast engine's job.
func interiorGaps(series domain.Series) []gapYear {
	var gaps []gapYear
	for i := 0; i+1 < len(series.Points); i++ {
		lo, hi := series.Points[i], series.Points[i+1]
		for y := lo.Year + 1; y < hi.Year; y++ {
			gaps = append(gaps, gapYear{year: y, before: lo, after: hi})
		}
	}
	return gaps
}

var idSuffixPattern = regexp.MustCompile(`_(\d+)$`)

// newIDCounter returns a generator of record IDs continuing the
// prefix's numeric sequence, e.g. OBS_17, OBS_18, ...
func newIDCounter(records []domain.Record, prefix string) func() string {
	max := 0
	for _, r := range records {
		m := idSuffixPattern.FindStringSubmatch(r.ID)
		if m == nil || len(r.ID) < len(prefix) || r.ID[:len(prefix)] != prefix {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return func() string {
		max++
		return fmt.Sprintf("%s_%d", prefix, max)
	}
}
