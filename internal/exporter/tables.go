package exporter

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"finclusion/internal/config"
	"finclusion/internal/enrich"
	"finclusion/internal/impact"
	"finclusion/pkg/contracts/domain"
)

// datasetHeaders is the unified schema column order of exported
// datasets. Re-loading an export through the CSV loader round-trips.
var datasetHeaders = []string{
	"record_id", "record_type", "pillar", "indicator", "indicator_code",
	"value_numeric", "observation_date", "gender", "region",
	"event_name", "event_date", "category",
	"parent_id", "related_indicator", "impact_direction", "impact_magnitude", "lag_months", "evidence_basis",
	"target_value", "target_date", "issuing_body",
	"source_name", "source_url", "source_type", "confidence",
	"collected_by", "collection_date", "original_text", "interpolated",
}

// DatasetRows renders records in the unified schema column order.
func DatasetRows(ds domain.Dataset) [][]string {
	rows := make([][]string, 0, len(ds.Records))
	for _, r := range ds.Records {
		rows = append(rows, []string{
			r.ID, string(r.Type), string(r.Pillar), r.Indicator, r.IndicatorCode,
			formatFloat(r.Value), formatDate(r.Date), r.Gender, r.Region,
			r.EventName, formatDate(r.EventDate), string(r.Category),
			r.ParentID, r.RelatedIndicator, string(r.Direction), formatFloat(r.Magnitude), strconv.Itoa(r.LagMonths), r.EvidenceBasis,
			formatFloat(r.TargetValue), formatDate(r.TargetDate), r.IssuingBody,
			r.SourceName, r.SourceURL, r.SourceType, string(r.Confidence),
			r.CollectedBy, formatDate(r.CollectionDate), r.OriginalText, strconv.FormatBool(r.Interpolated),
		})
	}
	return rows
}

// WriteEnrichedDataset writes the enriched dataset artifact.
func (w *CSVWriter) WriteEnrichedDataset(ds domain.Dataset) error {
	return w.WriteCSV(config.EnrichedDataFile, WriteOptions{
		Headers:   datasetHeaders,
		Records:   DatasetRows(ds),
		BOMPrefix: true,
	})
}

// WriteImpactMatrix writes the association matrix artifact: one row
// per (event, indicator) cell.
func (w *CSVWriter) WriteImpactMatrix(matrix *impact.Matrix) error {
	headers := []string{
		"event_id", "event_name", "event_date", "indicator_code",
		"magnitude", "lag_months", "confidence", "confidence_level", "provenance",
	}

	var rows [][]string
	for _, est := range matrix.Estimates() {
		eventDate := ""
		if ev, ok := matrix.Event(est.EventID); ok {
			eventDate = formatDate(ev.Date)
		}
		rows = append(rows, []string{
			est.EventID, est.EventName, eventDate, est.IndicatorCode,
			formatFloat(est.Magnitude), strconv.Itoa(est.LagMonths),
			formatFloat(est.Confidence), string(impact.ClassifyConfidence(est.Confidence)),
			string(est.Provenance),
		})
	}

	return w.WriteCSV(config.ImpactMatrixFile, WriteOptions{
		Headers:   headers,
		Records:   rows,
		BOMPrefix: true,
	})
}

// WriteForecasts writes the forecast table artifact: one row per
// (indicator, period, scenario).
func (w *CSVWriter) WriteForecasts(forecasts map[string]domain.ForecastSeries) error {
	headers := []string{
		"indicator_code", "year", "scenario", "value", "lower_bound", "upper_bound", "baseline", "trend_family",
	}

	codes := make([]string, 0, len(forecasts))
	for code := range forecasts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var rows [][]string
	for _, code := range codes {
		fc := forecasts[code]
		for _, scenario := range domain.Scenarios() {
			for _, p := range fc.PointsFor(scenario) {
				rows = append(rows, []string{
					p.IndicatorCode, strconv.Itoa(p.Year), string(p.Scenario),
					formatFloat(p.Value), formatFloat(p.LowerBound), formatFloat(p.UpperBound),
					formatFloat(fc.Baseline[p.Year]), string(fc.Family),
				})
			}
		}
	}

	return w.WriteCSV(config.ForecastFile, WriteOptions{
		Headers:   headers,
		Records:   rows,
		BOMPrefix: true,
	})
}

// WriteEnrichmentLog writes the markdown audit trail.
func (w *CSVWriter) WriteEnrichmentLog(audit *enrich.AuditLog) error {
	return w.WriteText(config.EnrichmentLogFile, audit.Markdown())
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%.4f", v)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(config.DateLayoutISO)
}
