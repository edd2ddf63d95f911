package dataset

import (
	"strconv"
	"strings"
	"time"

	"finclusion/internal/config"
	apierrors "finclusion/internal/errors"
	"finclusion/pkg/contracts/domain"
)

// Qualitative magnitudes still present in older collection sheets,
// mapped to percentage points.
var magnitudeWords = map[string]float64{
	"high":   3.0,
	"medium": 1.5,
	"low":    0.5,
}

// parseRecordRows converts a header row plus data rows into records.
// The first row must be the header; blank rows are skipped.
func parseRecordRows(rows [][]string) ([]domain.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	cols := headerIndex(rows[0])
	var records []domain.Record
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		rec, err := parseRecord(cols, row, i+2)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff") // exports carry a BOM for Excel
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// cell returns the trimmed value of a named column, or "".
func cell(cols map[string]int, row []string, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseRecord(cols map[string]int, row []string, rowNum int) (domain.Record, error) {
	id := cell(cols, row, "record_id")
	if id == "" {
		id = "row " + strconv.Itoa(rowNum)
	}

	rt := domain.RecordType(strings.ToLower(cell(cols, row, "record_type")))
	if !rt.IsValid() {
		return domain.Record{}, apierrors.NewSchemaError(id, "record_type",
			"has unrecognized value "+strconv.Quote(cell(cols, row, "record_type")))
	}

	rec := domain.Record{
		ID:               id,
		Type:             rt,
		Pillar:           domain.Pillar(strings.ToUpper(cell(cols, row, "pillar"))),
		Confidence:       normalizeConfidence(cell(cols, row, "confidence")),
		Indicator:        cell(cols, row, "indicator"),
		IndicatorCode:    cell(cols, row, "indicator_code"),
		Gender:           strings.ToLower(cell(cols, row, "gender")),
		Region:           cell(cols, row, "region"),
		EventName:        cell(cols, row, "event_name"),
		Category:         domain.EventCategory(strings.ToLower(cell(cols, row, "category"))),
		ParentID:         cell(cols, row, "parent_id"),
		RelatedIndicator: cell(cols, row, "related_indicator"),
		Direction:        normalizeDirection(cell(cols, row, "impact_direction")),
		EvidenceBasis:    cell(cols, row, "evidence_basis"),
		IssuingBody:      cell(cols, row, "issuing_body"),
		SourceName:       cell(cols, row, "source_name"),
		SourceURL:        cell(cols, row, "source_url"),
		SourceType:       cell(cols, row, "source_type"),
		CollectedBy:      cell(cols, row, "collected_by"),
		OriginalText:     cell(cols, row, "original_text"),
	}

	var err error
	if rec.Value, err = parseFloat(cell(cols, row, "value_numeric")); err != nil {
		return domain.Record{}, apierrors.NewSchemaError(id, "value_numeric", "is not numeric")
	}
	if rec.Magnitude, err = parseMagnitude(cell(cols, row, "impact_magnitude")); err != nil {
		return domain.Record{}, apierrors.NewSchemaError(id, "impact_magnitude", "is not numeric or a known grade")
	}
	if rec.TargetValue, err = parseFloat(cell(cols, row, "target_value")); err != nil {
		return domain.Record{}, apierrors.NewSchemaError(id, "target_value", "is not numeric")
	}
	if rec.LagMonths, err = parseInt(cell(cols, row, "lag_months")); err != nil {
		return domain.Record{}, apierrors.NewSchemaError(id, "lag_months", "is not an integer")
	}
	if rec.Date, err = parseDate(cell(cols, row, "observation_date")); err != nil {
		return domain.Record{}, apierrors.NewSchemaError(id, "observation_date", "is not a date")
	}
	if rec.EventDate, err = parseDate(cell(cols, row, "event_date")); err != nil {
		return domain.Record{}, apierrors.NewSchemaError(id, "event_date", "is not a date")
	}
	if rec.TargetDate, err = parseDate(cell(cols, row, "target_date")); err != nil {
		return domain.Record{}, apierrors.NewSchemaError(id, "target_date", "is not a date")
	}
	if rec.CollectionDate, err = parseDate(cell(cols, row, "collection_date")); err != nil {
		return domain.Record{}, apierrors.NewSchemaError(id, "collection_date", "is not a date")
	}
	rec.Interpolated = strings.EqualFold(cell(cols, row, "interpolated"), "true")

	return rec, nil
}

func parseReferenceRows(rows [][]string) ([]domain.ReferenceCode, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols := headerIndex(rows[0])
	var refs []domain.ReferenceCode
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		refs = append(refs, domain.ReferenceCode{
			Kind:        strings.ToLower(cell(cols, row, "kind")),
			Code:        cell(cols, row, "code"),
			Label:       cell(cols, row, "label"),
			Unit:        strings.ToLower(cell(cols, row, "unit")),
			Description: cell(cols, row, "description"),
		})
	}
	return refs, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func parseMagnitude(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	if m, ok := magnitudeWords[strings.ToLower(s)]; ok {
		return m, nil
	}
	return parseFloat(s)
}

// parseDate accepts ISO dates, bare years, and the dd/mm/yyyy form
// that appears in manually collected sheets.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{
		config.DateLayoutISO,
		config.DateLayoutYear,
		"02/01/2006",
		"2006-01-02 15:04:05",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: config.DateLayoutISO, Value: s}
}

func normalizeConfidence(s string) domain.Confidence {
	switch strings.ToLower(s) {
	case "high", "h":
		return domain.ConfidenceHigh
	case "medium", "med", "m":
		return domain.ConfidenceMedium
	case "low", "l":
		return domain.ConfidenceLow
	default:
		return domain.Confidence(strings.ToLower(s))
	}
}

func normalizeDirection(s string) domain.ImpactDirection {
	switch strings.ToLower(s) {
	case "increase", "positive", "up":
		return domain.DirectionIncrease
	case "decrease", "negative", "down":
		return domain.DirectionDecrease
	case "":
		return ""
	default:
		return domain.ImpactDirection(strings.ToLower(s))
	}
}
