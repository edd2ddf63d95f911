// Package testutil provides fixtures and log capture helpers shared
// by the package tests.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"finclusion/pkg/contracts/domain"
)

// LogRecord is a captured log record.
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// BufferedSlogHandler captures log records so tests can assert on
// structured logging output.
type BufferedSlogHandler struct {
	mu      sync.Mutex
	records []LogRecord
	t       *testing.T
}

// NewBufferedSlogHandler creates a buffered handler.
func NewBufferedSlogHandler(t *testing.T) *BufferedSlogHandler {
	return &BufferedSlogHandler{t: t}
}

// NewTestLogger returns a logger writing into a buffered handler.
func NewTestLogger(t *testing.T) (*slog.Logger, *BufferedSlogHandler) {
	h := NewBufferedSlogHandler(t)
	return slog.New(h), h
}

func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	attrs := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.records = append(h.records, LogRecord{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
	})

	if h.t != nil {
		h.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (h *BufferedSlogHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }
func (h *BufferedSlogHandler) WithAttrs(_ []slog.Attr) slog.Handler         { return h }
func (h *BufferedSlogHandler) WithGroup(_ string) slog.Handler              { return h }

// Records returns the captured records.
func (h *BufferedSlogHandler) Records() []LogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]LogRecord, len(h.records))
	copy(out, h.records)
	return out
}

// HasMessage reports whether any captured record contains substr.
func (h *BufferedSlogHandler) HasMessage(substr string) bool {
	for _, r := range h.Records() {
		if strings.Contains(r.Message, substr) {
			return true
		}
	}
	return false
}

// Observation builds an annual observation record fixture.
func Observation(id, indicatorCode string, year int, value float64, confidence domain.Confidence) domain.Record {
	return domain.Record{
		ID:            id,
		Type:          domain.RecordTypeObservation,
		Pillar:        domain.PillarAccess,
		IndicatorCode: indicatorCode,
		Value:         value,
		Date:          time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
		Gender:        "all",
		SourceName:    "test_source",
		Confidence:    confidence,
	}
}

// Event builds an event record fixture.
func Event(id, name string, date time.Time, category domain.EventCategory) domain.Record {
	return domain.Record{
		ID:         id,
		Type:       domain.RecordTypeEvent,
		EventName:  name,
		EventDate:  date,
		Category:   category,
		SourceName: "test_source",
		Confidence: domain.ConfidenceHigh,
	}
}

// ImpactLink builds an impact link record fixture tying an event to
// an indicator.
func ImpactLink(id, eventID, indicatorCode string, direction domain.ImpactDirection, magnitude float64, lagMonths int) domain.Record {
	return domain.Record{
		ID:               id,
		Type:             domain.RecordTypeImpactLink,
		ParentID:         eventID,
		RelatedIndicator: indicatorCode,
		Direction:        direction,
		Magnitude:        magnitude,
		LagMonths:        lagMonths,
		Confidence:       domain.ConfidenceMedium,
	}
}

// SeriesDataset builds a dataset holding one annual national series.
func SeriesDataset(indicatorCode string, startYear int, values []float64) domain.Dataset {
	ds := domain.Dataset{}
	for i, v := range values {
		ds.Records = append(ds.Records, Observation(
			observationID(i), indicatorCode, startYear+i, v, domain.ConfidenceHigh))
	}
	return ds
}

func observationID(i int) string {
	return fmt.Sprintf("OBS_%d", i+1)
}
