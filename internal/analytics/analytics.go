// Package analytics provides the exploratory summaries the dashboard
// overview draws on: record counts, temporal coverage, growth rates,
// and the gender gap per indicator.
package analytics

import (
	"sort"

	"finclusion/pkg/contracts/domain"
)

// DatasetSummary counts records by discriminating columns.
type DatasetSummary struct {
	TotalRecords int                       `json:"total_records"`
	ByType       map[domain.RecordType]int `json:"by_type"`
	ByPillar     map[domain.Pillar]int     `json:"by_pillar"`
	ByConfidence map[domain.Confidence]int `json:"by_confidence"`
	Indicators   []string                  `json:"indicators"`
	FirstYear    int                       `json:"first_year"`
	LastYear     int                       `json:"last_year"`
}

// Summarize computes the dataset overview.
func Summarize(ds domain.Dataset) DatasetSummary {
	s := DatasetSummary{
		TotalRecords: len(ds.Records),
		ByType:       make(map[domain.RecordType]int),
		ByPillar:     make(map[domain.Pillar]int),
		ByConfidence: make(map[domain.Confidence]int),
		Indicators:   ds.IndicatorCodes(),
	}

	for _, r := range ds.Records {
		s.ByType[r.Type]++
		if r.Pillar != "" {
			s.ByPillar[r.Pillar]++
		}
		if r.Confidence != "" {
			s.ByConfidence[r.Confidence]++
		}
		if r.Type == domain.RecordTypeObservation {
			year := r.Year()
			if s.FirstYear == 0 || year < s.FirstYear {
				s.FirstYear = year
			}
			if year > s.LastYear {
				s.LastYear = year
			}
		}
	}
	return s
}

// CoverageCell reports how many observations an indicator has in a year.
type CoverageCell struct {
	IndicatorCode string `json:"indicator_code"`
	Year          int    `json:"year"`
	Count         int    `json:"count"`
}

// TemporalCoverage lists which years have data for which indicators,
// ordered by indicator then year.
func TemporalCoverage(ds domain.Dataset) []CoverageCell {
	counts := make(map[string]map[int]int)
	for _, r := range ds.Records {
		if r.Type != domain.RecordTypeObservation {
			continue
		}
		if counts[r.IndicatorCode] == nil {
			counts[r.IndicatorCode] = make(map[int]int)
		}
		counts[r.IndicatorCode][r.Year()]++
	}

	var cells []CoverageCell
	for _, code := range ds.IndicatorCodes() {
		years := make([]int, 0, len(counts[code]))
		for y := range counts[code] {
			years = append(years, y)
		}
		sort.Ints(years)
		for _, y := range years {
			cells = append(cells, CoverageCell{IndicatorCode: code, Year: y, Count: counts[code][y]})
		}
	}
	return cells
}

// GrowthPoint is a year-over-year percentage change.
type GrowthPoint struct {
	Year       int     `json:"year"`
	Value      float64 `json:"value"`
	GrowthRate float64 `json:"growth_rate"` // percent change from prior point
}

// GrowthRates computes year-over-year growth for a series. The first
// point carries a zero rate.
func GrowthRates(series domain.Series) []GrowthPoint {
	out := make([]GrowthPoint, 0, len(series.Points))
	for i, p := range series.Points {
		gp := GrowthPoint{Year: p.Year, Value: p.Value}
		if i > 0 && series.Points[i-1].Value != 0 {
			prev := series.Points[i-1].Value
			gp.GrowthRate = (p.Value - prev) / prev * 100
		}
		out = append(out, gp)
	}
	return out
}

// GenderGapRow is the mean value per gender for one indicator.
type GenderGapRow struct {
	Gender string  `json:"gender"`
	Mean   float64 `json:"mean"`
	Count  int     `json:"count"`
}

// GenderGap aggregates an indicator's observations by gender,
// ordered by gender name.
func GenderGap(ds domain.Dataset, indicatorCode string) []GenderGapRow {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range ds.Records {
		if r.Type != domain.RecordTypeObservation || r.IndicatorCode != indicatorCode || r.Gender == "" {
			continue
		}
		sums[r.Gender] += r.Value
		counts[r.Gender]++
	}

	genders := make([]string, 0, len(sums))
	for g := range sums {
		genders = append(genders, g)
	}
	sort.Strings(genders)

	rows := make([]GenderGapRow, 0, len(genders))
	for _, g := range genders {
		rows = append(rows, GenderGapRow{
			Gender: g,
			Mean:   sums[g] / float64(counts[g]),
			Count:  counts[g],
		})
	}
	return rows
}
