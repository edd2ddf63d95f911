package impact

import (
	"math"
	"sort"

	"finclusion/pkg/contracts/domain"
)

// SimulatedSeries is an indicator's historical evolution with event
// effects applied in their lagged years, used to sanity-check the
// matrix against what was actually observed.
type SimulatedSeries struct {
	IndicatorCode string          `json:"indicator_code"`
	Values        map[int]float64 `json:"values"`
}

// Simulate replays event impacts over the observed history: each
// estimate adds its magnitude to the indicator from its effect year
// (event year plus lag, rounded down to whole years) onward.
func (m *Matrix) Simulate(ds domain.Dataset, startYear, endYear int) []SimulatedSeries {
	var out []SimulatedSeries
	for _, code := range m.Indicators() {
		series := ds.SeriesFor(domain.SeriesKey{IndicatorCode: code})
		values := make(map[int]float64)

		for year := startYear; year <= endYear; year++ {
			point, ok := series.At(year)
			if !ok {
				continue
			}
			v := point.Value
			for _, est := range m.EstimatesFor(code) {
				ev, ok := m.Event(est.EventID)
				if !ok {
					continue
				}
				if ev.Date.Year()+est.LagMonths/12 == year {
					v += est.Magnitude
				}
			}
			values[year] = v
		}
		out = append(out, SimulatedSeries{IndicatorCode: code, Values: values})
	}
	return out
}

// ValidationRow compares a simulated value with its observation.
type ValidationRow struct {
	IndicatorCode string  `json:"indicator_code"`
	Year          int     `json:"year"`
	Observed      float64 `json:"observed"`
	Simulated     float64 `json:"simulated"`
	Residual      float64 `json:"residual"`
}

// ValidateAgainstObserved diffs simulated series against the observed
// data, ordered by indicator then year.
func ValidateAgainstObserved(simulated []SimulatedSeries, ds domain.Dataset) []ValidationRow {
	var rows []ValidationRow
	for _, sim := range simulated {
		series := ds.SeriesFor(domain.SeriesKey{IndicatorCode: sim.IndicatorCode})
		years := make([]int, 0, len(sim.Values))
		for y := range sim.Values {
			years = append(years, y)
		}
		sort.Ints(years)
		for _, y := range years {
			obs, ok := series.At(y)
			if !ok {
				continue
			}
			rows = append(rows, ValidationRow{
				IndicatorCode: sim.IndicatorCode,
				Year:          y,
				Observed:      obs.Value,
				Simulated:     sim.Values[y],
				Residual:      sim.Values[y] - obs.Value,
			})
		}
	}
	return rows
}

// ClassifyConfidence maps a numeric confidence to the qualitative
// grade used in reports.
func ClassifyConfidence(confidence float64) domain.Confidence {
	switch {
	case confidence >= 0.8:
		return domain.ConfidenceHigh
	case confidence >= 0.5:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// MeanAbsoluteResidual summarizes a validation run.
func MeanAbsoluteResidual(rows []ValidationRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		sum += math.Abs(r.Residual)
	}
	return sum / float64(len(rows))
}
