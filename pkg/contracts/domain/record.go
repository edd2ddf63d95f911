package domain

import (
	"time"
)

// RecordType discriminates rows of the unified dataset.
type RecordType string

const (
	RecordTypeObservation RecordType = "observation"
	RecordTypeEvent       RecordType = "event"
	RecordTypeImpactLink  RecordType = "impact_link"
	RecordTypeTarget      RecordType = "target"
)

// IsValid reports whether the record type is one of the known discriminants.
func (rt RecordType) IsValid() bool {
	switch rt {
	case RecordTypeObservation, RecordTypeEvent, RecordTypeImpactLink, RecordTypeTarget:
		return true
	}
	return false
}

// Pillar groups indicators by the inclusion dimension they measure.
type Pillar string

const (
	PillarAccess         Pillar = "ACCESS"
	PillarUsage          Pillar = "USAGE"
	PillarInfrastructure Pillar = "INFRASTRUCTURE"
)

// Confidence is the qualitative reliability grade attached to a record.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Score maps the qualitative grade to a numeric weight used when
// resolving merge conflicts and scaling impact estimates.
func (c Confidence) Score() float64 {
	switch c {
	case ConfidenceHigh:
		return 0.9
	case ConfidenceMedium:
		return 0.6
	case ConfidenceLow:
		return 0.3
	default:
		return 0
	}
}

// Rank orders confidence grades; higher is more reliable.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// ImpactDirection is the sign of an event's expected effect on an indicator.
type ImpactDirection string

const (
	DirectionIncrease ImpactDirection = "increase"
	DirectionDecrease ImpactDirection = "decrease"
)

// Sign returns +1 for increase, -1 for decrease. Unknown directions
// default to +1, matching the convention of the source material.
func (d ImpactDirection) Sign() float64 {
	if d == DirectionDecrease {
		return -1
	}
	return 1
}

// EventCategory classifies events for the borrowed-evidence fallback.
type EventCategory string

const (
	CategoryPolicy         EventCategory = "policy"
	CategoryProductLaunch  EventCategory = "product_launch"
	CategoryInfrastructure EventCategory = "infrastructure"
	CategoryMilestone      EventCategory = "milestone"
)

// Record is a single row of the unified dataset. Which fields are
// meaningful depends on Type; the typed accessors below extract the
// per-type views. Records are immutable once loaded.
type Record struct {
	ID         string     `json:"record_id" validate:"required"`
	Type       RecordType `json:"record_type" validate:"required"`
	Pillar     Pillar     `json:"pillar,omitempty"`
	Confidence Confidence `json:"confidence,omitempty"`

	// Observation and target fields
	Indicator     string    `json:"indicator,omitempty"`
	IndicatorCode string    `json:"indicator_code,omitempty"`
	Value         float64   `json:"value_numeric,omitempty"`
	Date          time.Time `json:"observation_date,omitempty"`
	Gender        string    `json:"gender,omitempty"`
	Region        string    `json:"region,omitempty"`

	// Event fields
	EventName string        `json:"event_name,omitempty"`
	EventDate time.Time     `json:"event_date,omitempty"`
	Category  EventCategory `json:"category,omitempty"`

	// Impact link fields
	ParentID         string          `json:"parent_id,omitempty"`
	RelatedIndicator string          `json:"related_indicator,omitempty"`
	Direction        ImpactDirection `json:"impact_direction,omitempty"`
	Magnitude        float64         `json:"impact_magnitude,omitempty"`
	LagMonths        int             `json:"lag_months,omitempty"`
	EvidenceBasis    string          `json:"evidence_basis,omitempty"`

	// Target fields
	TargetValue float64   `json:"target_value,omitempty"`
	TargetDate  time.Time `json:"target_date,omitempty"`
	IssuingBody string    `json:"issuing_body,omitempty"`

	// Provenance
	SourceName     string    `json:"source_name,omitempty"`
	SourceURL      string    `json:"source_url,omitempty"`
	SourceType     string    `json:"source_type,omitempty"`
	CollectedBy    string    `json:"collected_by,omitempty"`
	CollectionDate time.Time `json:"collection_date,omitempty"`
	OriginalText   string    `json:"original_text,omitempty"`

	// Interpolated marks observations synthesized by the enricher
	// rather than loaded from a source.
	Interpolated bool `json:"interpolated,omitempty"`
}

// Dimension is the disaggregation key of an observation. Empty fields
// mean the overall (national, all-adults) series.
type Dimension struct {
	Gender string `json:"gender,omitempty"`
	Region string `json:"region,omitempty"`
}

// Dimension returns the record's disaggregation key.
func (r Record) Dimension() Dimension {
	return Dimension{Gender: r.Gender, Region: r.Region}
}

// Normalize collapses the headline spellings to the zero dimension so
// that "all"/"national" rows and rows with the fields left blank land
// in the same series.
func (d Dimension) Normalize() Dimension {
	out := d
	if out.Gender == "all" || out.Gender == "total" {
		out.Gender = ""
	}
	if out.Region == "all" || out.Region == "national" {
		out.Region = ""
	}
	return out
}

// Year returns the fiscal year of an observation record.
func (r Record) Year() int {
	return r.Date.Year()
}

// Observation is the typed view of an observation record.
type Observation struct {
	ID            string     `json:"record_id"`
	IndicatorCode string     `json:"indicator_code"`
	Pillar        Pillar     `json:"pillar"`
	Date          time.Time  `json:"observation_date"`
	Value         float64    `json:"value_numeric"`
	Dimension     Dimension  `json:"dimension"`
	SourceName    string     `json:"source_name"`
	Confidence    Confidence `json:"confidence"`
	Interpolated  bool       `json:"interpolated,omitempty"`
}

// Event is the typed view of an event record.
type Event struct {
	ID       string        `json:"record_id"`
	Name     string        `json:"event_name"`
	Date     time.Time     `json:"event_date"`
	Category EventCategory `json:"category"`
	Text     string        `json:"original_text,omitempty"`
}

// ImpactLink associates an event with one indicator it is believed to move.
type ImpactLink struct {
	ID            string          `json:"record_id"`
	EventID       string          `json:"parent_id"`
	IndicatorCode string          `json:"related_indicator"`
	Direction     ImpactDirection `json:"impact_direction"`
	Magnitude     float64         `json:"impact_magnitude"`
	LagMonths     int             `json:"lag_months"`
	Confidence    Confidence      `json:"confidence"`
	EvidenceBasis string          `json:"evidence_basis,omitempty"`
}

// SignedMagnitude folds the direction into the magnitude.
func (l ImpactLink) SignedMagnitude() float64 {
	return l.Direction.Sign() * l.Magnitude
}

// Target is the typed view of a stated official goal.
type Target struct {
	ID            string    `json:"record_id"`
	IndicatorCode string    `json:"indicator_code"`
	Value         float64   `json:"target_value"`
	Date          time.Time `json:"target_date"`
	IssuingBody   string    `json:"issuing_body"`
}

// AsObservation extracts the observation view. Callers must check the
// record type first.
func (r Record) AsObservation() Observation {
	return Observation{
		ID:            r.ID,
		IndicatorCode: r.IndicatorCode,
		Pillar:        r.Pillar,
		Date:          r.Date,
		Value:         r.Value,
		Dimension:     r.Dimension(),
		SourceName:    r.SourceName,
		Confidence:    r.Confidence,
		Interpolated:  r.Interpolated,
	}
}

// AsEvent extracts the event view.
func (r Record) AsEvent() Event {
	return Event{
		ID:       r.ID,
		Name:     r.EventName,
		Date:     r.EventDate,
		Category: r.Category,
		Text:     r.OriginalText,
	}
}

// AsImpactLink extracts the impact-link view.
func (r Record) AsImpactLink() ImpactLink {
	return ImpactLink{
		ID:            r.ID,
		EventID:       r.ParentID,
		IndicatorCode: r.RelatedIndicator,
		Direction:     r.Direction,
		Magnitude:     r.Magnitude,
		LagMonths:     r.LagMonths,
		Confidence:    r.Confidence,
		EvidenceBasis: r.EvidenceBasis,
	}
}

// AsTarget extracts the target view.
func (r Record) AsTarget() Target {
	return Target{
		ID:            r.ID,
		IndicatorCode: r.IndicatorCode,
		Value:         r.TargetValue,
		Date:          r.TargetDate,
		IssuingBody:   r.IssuingBody,
	}
}
