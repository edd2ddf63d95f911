package domain

import (
	"sort"
)

// Dataset is the in-memory unified table produced by the loader and
// passed forward through the pipeline. Stages never mutate a dataset
// they received; enrichment returns a new one.
type Dataset struct {
	Records        []Record        `json:"records"`
	ReferenceCodes []ReferenceCode `json:"reference_codes,omitempty"`
}

// ReferenceCode is one row of the controlled-vocabulary table.
type ReferenceCode struct {
	Kind        string `json:"kind"` // "indicator", "pillar", "category", "region"
	Code        string `json:"code"`
	Label       string `json:"label,omitempty"`
	Unit        string `json:"unit,omitempty"` // "percent" or "count" for indicators
	Description string `json:"description,omitempty"`
}

// IndicatorUnit returns the declared unit of an indicator code, or
// empty when the reference table does not cover it.
func (d Dataset) IndicatorUnit(code string) string {
	for _, rc := range d.ReferenceCodes {
		if rc.Kind == "indicator" && rc.Code == code {
			return rc.Unit
		}
	}
	return ""
}

// SeriesKey identifies one disaggregated indicator series.
type SeriesKey struct {
	IndicatorCode string    `json:"indicator_code"`
	Dimension     Dimension `json:"dimension"`
}

// SeriesPoint is one annual value of an indicator series.
type SeriesPoint struct {
	Year         int        `json:"year"`
	Value        float64    `json:"value"`
	Confidence   Confidence `json:"confidence,omitempty"`
	SourceName   string     `json:"source_name,omitempty"`
	Interpolated bool       `json:"interpolated,omitempty"`
}

// Series is an annual indicator series ordered by year.
type Series struct {
	Key    SeriesKey     `json:"key"`
	Points []SeriesPoint `json:"points"`
}

// Years returns the ordered years with data.
func (s Series) Years() []int {
	years := make([]int, len(s.Points))
	for i, p := range s.Points {
		years[i] = p.Year
	}
	return years
}

// Values returns the ordered values.
func (s Series) Values() []float64 {
	vals := make([]float64, len(s.Points))
	for i, p := range s.Points {
		vals[i] = p.Value
	}
	return vals
}

// At returns the point for the given year.
func (s Series) At(year int) (SeriesPoint, bool) {
	for _, p := range s.Points {
		if p.Year == year {
			return p, true
		}
	}
	return SeriesPoint{}, false
}

// LastYear returns the final year with data, or 0 for an empty series.
func (s Series) LastYear() int {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].Year
}

// Observations returns the records with the observation type.
func (d Dataset) Observations() []Observation {
	var out []Observation
	for _, r := range d.Records {
		if r.Type == RecordTypeObservation {
			out = append(out, r.AsObservation())
		}
	}
	return out
}

// Events returns the records with the event type.
func (d Dataset) Events() []Event {
	var out []Event
	for _, r := range d.Records {
		if r.Type == RecordTypeEvent {
			out = append(out, r.AsEvent())
		}
	}
	return out
}

// ImpactLinks returns the records with the impact_link type.
func (d Dataset) ImpactLinks() []ImpactLink {
	var out []ImpactLink
	for _, r := range d.Records {
		if r.Type == RecordTypeImpactLink {
			out = append(out, r.AsImpactLink())
		}
	}
	return out
}

// Targets returns the records with the target type.
func (d Dataset) Targets() []Target {
	var out []Target
	for _, r := range d.Records {
		if r.Type == RecordTypeTarget {
			out = append(out, r.AsTarget())
		}
	}
	return out
}

// EventByID looks up an event record by its ID.
func (d Dataset) EventByID(id string) (Event, bool) {
	for _, r := range d.Records {
		if r.Type == RecordTypeEvent && r.ID == id {
			return r.AsEvent(), true
		}
	}
	return Event{}, false
}

// IndicatorCodes returns the distinct indicator codes present in
// observation records, sorted.
func (d Dataset) IndicatorCodes() []string {
	seen := make(map[string]struct{})
	for _, r := range d.Records {
		if r.Type == RecordTypeObservation && r.IndicatorCode != "" {
			seen[r.IndicatorCode] = struct{}{}
		}
	}
	codes := make([]string, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// SeriesFor builds the annual series for one indicator and dimension.
// Multiple observations falling in the same year are averaged, keeping
// the highest confidence grade among them. The result is ordered by year.
func (d Dataset) SeriesFor(key SeriesKey) Series {
	type agg struct {
		sum    float64
		n      int
		conf   Confidence
		source string
		interp bool
	}
	byYear := make(map[int]*agg)
	for _, r := range d.Records {
		if r.Type != RecordTypeObservation || r.IndicatorCode != key.IndicatorCode || r.Dimension().Normalize() != key.Dimension.Normalize() {
			continue
		}
		a, ok := byYear[r.Year()]
		if !ok {
			a = &agg{conf: r.Confidence, source: r.SourceName, interp: r.Interpolated}
			byYear[r.Year()] = a
		}
		a.sum += r.Value
		a.n++
		if r.Confidence.Rank() > a.conf.Rank() {
			a.conf = r.Confidence
			a.source = r.SourceName
		}
		a.interp = a.interp && r.Interpolated
	}

	series := Series{Key: key}
	for year, a := range byYear {
		series.Points = append(series.Points, SeriesPoint{
			Year:         year,
			Value:        a.sum / float64(a.n),
			Confidence:   a.conf,
			SourceName:   a.source,
			Interpolated: a.interp,
		})
	}
	sort.Slice(series.Points, func(i, j int) bool {
		return series.Points[i].Year < series.Points[j].Year
	})
	return series
}

// SeriesKeys returns every (indicator, dimension) combination that has
// at least one observation, sorted for deterministic iteration.
func (d Dataset) SeriesKeys() []SeriesKey {
	seen := make(map[SeriesKey]struct{})
	for _, r := range d.Records {
		if r.Type == RecordTypeObservation && r.IndicatorCode != "" {
			seen[SeriesKey{IndicatorCode: r.IndicatorCode, Dimension: r.Dimension().Normalize()}] = struct{}{}
		}
	}
	keys := make([]SeriesKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].IndicatorCode != keys[j].IndicatorCode {
			return keys[i].IndicatorCode < keys[j].IndicatorCode
		}
		if keys[i].Dimension.Gender != keys[j].Dimension.Gender {
			return keys[i].Dimension.Gender < keys[j].Dimension.Gender
		}
		return keys[i].Dimension.Region < keys[j].Dimension.Region
	})
	return keys
}

// KnownIndicator reports whether the code appears in the reference
// table, or in any observation when no reference table was loaded.
func (d Dataset) KnownIndicator(code string) bool {
	hasRef := false
	for _, rc := range d.ReferenceCodes {
		if rc.Kind == "indicator" {
			hasRef = true
			if rc.Code == code {
				return true
			}
		}
	}
	if hasRef {
		return false
	}
	for _, r := range d.Records {
		if r.Type == RecordTypeObservation && r.IndicatorCode == code {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy of the dataset: the record slice is
// copied so appends never alias, record values themselves are immutable.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Records:        make([]Record, len(d.Records)),
		ReferenceCodes: make([]ReferenceCode, len(d.ReferenceCodes)),
	}
	copy(out.Records, d.Records)
	copy(out.ReferenceCodes, d.ReferenceCodes)
	return out
}
