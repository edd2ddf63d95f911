package impact

import (
	"sort"

	"finclusion/pkg/contracts/domain"
)

// Matrix is the event-indicator association matrix: rows are events,
// columns are indicators, cells are impact estimates.
type Matrix struct {
	cells  map[cellKey]domain.ImpactEstimate
	events map[string]domain.Event
}

type cellKey struct {
	EventID       string
	IndicatorCode string
}

// NewMatrix creates an empty matrix.
func NewMatrix() *Matrix {
	return &Matrix{
		cells:  make(map[cellKey]domain.ImpactEstimate),
		events: make(map[string]domain.Event),
	}
}

// Set stores one cell.
func (m *Matrix) Set(event domain.Event, est domain.ImpactEstimate) {
	m.events[event.ID] = event
	m.cells[cellKey{EventID: est.EventID, IndicatorCode: est.IndicatorCode}] = est
}

// Get returns the cell for an event and indicator.
func (m *Matrix) Get(eventID, indicatorCode string) (domain.ImpactEstimate, bool) {
	est, ok := m.cells[cellKey{EventID: eventID, IndicatorCode: indicatorCode}]
	return est, ok
}

// Event returns the event behind a row.
func (m *Matrix) Event(eventID string) (domain.Event, bool) {
	ev, ok := m.events[eventID]
	return ev, ok
}

// EstimatesFor returns every estimate affecting one indicator,
// ordered by event date, then event ID for same-day events.
func (m *Matrix) EstimatesFor(indicatorCode string) []domain.ImpactEstimate {
	var out []domain.ImpactEstimate
	for key, est := range m.cells {
		if key.IndicatorCode == indicatorCode {
			out = append(out, est)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ei, ej := m.events[out[i].EventID], m.events[out[j].EventID]
		if !ei.Date.Equal(ej.Date) {
			return ei.Date.Before(ej.Date)
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

// Estimates returns all cells ordered by event date, event ID, then
// indicator code.
func (m *Matrix) Estimates() []domain.ImpactEstimate {
	out := make([]domain.ImpactEstimate, 0, len(m.cells))
	for _, est := range m.cells {
		out = append(out, est)
	}
	sort.Slice(out, func(i, j int) bool {
		ei, ej := m.events[out[i].EventID], m.events[out[j].EventID]
		if !ei.Date.Equal(ej.Date) {
			return ei.Date.Before(ej.Date)
		}
		if out[i].EventID != out[j].EventID {
			return out[i].EventID < out[j].EventID
		}
		return out[i].IndicatorCode < out[j].IndicatorCode
	})
	return out
}

// Indicators returns the distinct indicator codes with at least one
// cell, sorted.
func (m *Matrix) Indicators() []string {
	seen := make(map[string]struct{})
	for key := range m.cells {
		seen[key.IndicatorCode] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Events returns the distinct events with at least one cell, ordered
// by date then ID.
func (m *Matrix) Events() []domain.Event {
	out := make([]domain.Event, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of cells.
func (m *Matrix) Len() int {
	return len(m.cells)
}
