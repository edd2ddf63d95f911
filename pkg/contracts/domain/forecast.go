package domain

// Scenario names one forecast variant.
type Scenario string

const (
	ScenarioOptimistic  Scenario = "optimistic"
	ScenarioBase        Scenario = "base"
	ScenarioPessimistic Scenario = "pessimistic"
)

// Scenarios lists the variants in canonical order.
func Scenarios() []Scenario {
	return []Scenario{ScenarioOptimistic, ScenarioBase, ScenarioPessimistic}
}

// TrendFamily identifies the functional form fitted to a series.
type TrendFamily string

const (
	TrendLinear   TrendFamily = "linear"
	TrendLogistic TrendFamily = "logistic"
)

// Provenance marks where an impact estimate came from.
type Provenance string

const (
	// ProvenanceLocal means the estimate was derived from the
	// indicator's own observed trajectory around the event.
	ProvenanceLocal Provenance = "local"
	// ProvenanceBorrowed means local data was insufficient and the
	// estimate was taken from comparable countries' events of the
	// same category, at reduced confidence.
	ProvenanceBorrowed Provenance = "borrowed"
	// ProvenanceStated means the estimate was taken directly from the
	// impact link record as collected.
	ProvenanceStated Provenance = "stated"
)

// ImpactEstimate is one cell of the event-indicator association matrix.
type ImpactEstimate struct {
	EventID       string     `json:"event_id"`
	EventName     string     `json:"event_name"`
	IndicatorCode string     `json:"indicator_code"`
	Magnitude     float64    `json:"magnitude"` // percentage points, signed
	LagMonths     int        `json:"lag_months"`
	Confidence    float64    `json:"confidence"` // 0..1
	Provenance    Provenance `json:"provenance"`
}

// ForecastPoint is one period of one scenario's forecast for an indicator.
type ForecastPoint struct {
	IndicatorCode string   `json:"indicator_code"`
	Year          int      `json:"year"`
	Scenario      Scenario `json:"scenario"`
	Value         float64  `json:"value"`
	LowerBound    float64  `json:"lower_bound"`
	UpperBound    float64  `json:"upper_bound"`
}

// ForecastSeries is the full scenario output for one indicator.
type ForecastSeries struct {
	IndicatorCode string                       `json:"indicator_code"`
	Family        TrendFamily                  `json:"trend_family"`
	Baseline      map[int]float64              `json:"baseline"`
	Scenarios     map[Scenario][]ForecastPoint `json:"scenarios"`
}

// PointsFor returns the ordered points of one scenario.
func (f ForecastSeries) PointsFor(s Scenario) []ForecastPoint {
	return f.Scenarios[s]
}
