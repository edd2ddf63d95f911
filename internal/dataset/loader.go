// Package dataset loads the unified Ethiopia financial-inclusion
// dataset from its workbook, CSV, and supplementary sources into the
// in-memory table the rest of the pipeline consumes.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"finclusion/internal/config"
	"finclusion/pkg/contracts/domain"
)

// Loader reads and validates the unified dataset.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader. A nil logger falls back to slog.Default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With(slog.String("component", "dataset.loader"))}
}

// LoadWorkbook reads the unified dataset workbook. The main sheet and
// the impact-link sheet share the unified record schema; the reference
// sheet holds the controlled vocabulary. Every record is validated
// before the dataset is returned.
func (l *Loader) LoadWorkbook(ctx context.Context, path string) (domain.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	mainRows, err := l.sheetRows(f, config.UnifiedDataSheet)
	if err != nil {
		return domain.Dataset{}, err
	}

	records, err := parseRecordRows(mainRows)
	if err != nil {
		return domain.Dataset{}, err
	}

	// The impact sheet is optional in supplementary extracts; the main
	// sheet may already carry impact_link rows.
	if linkRows, err := l.sheetRows(f, config.ImpactLinksSheet); err == nil {
		links, err := parseRecordRows(linkRows)
		if err != nil {
			return domain.Dataset{}, err
		}
		records = append(records, links...)
	}

	var refs []domain.ReferenceCode
	if refRows, err := l.sheetRows(f, config.ReferenceCodesSheet); err == nil {
		refs, err = parseReferenceRows(refRows)
		if err != nil {
			return domain.Dataset{}, err
		}
	}

	ds := domain.Dataset{Records: records, ReferenceCodes: refs}
	if err := ValidateDataset(ds); err != nil {
		return domain.Dataset{}, err
	}

	l.logger.InfoContext(ctx, "workbook loaded",
		slog.String("path", path),
		slog.Int("records", len(ds.Records)),
		slog.Int("reference_codes", len(ds.ReferenceCodes)),
	)
	return ds, nil
}

// sheetRows reads a sheet by name, falling back to a scan for a sheet
// whose header row carries the unified schema. Workbook exports are
// not consistent about sheet naming.
func (l *Loader) sheetRows(f *excelize.File, name string) ([][]string, error) {
	if rows, err := f.GetRows(name); err == nil && len(rows) > 0 {
		return rows, nil
	}

	for _, candidate := range f.GetSheetList() {
		rows, err := f.GetRows(candidate)
		if err != nil || len(rows) == 0 {
			continue
		}
		header := strings.ToLower(strings.Join(rows[0], " "))
		if strings.Contains(header, "record_type") || strings.Contains(header, "record_id") {
			l.logger.Debug("sheet found by header scan",
				slog.String("wanted", name),
				slog.String("found", candidate))
			return rows, nil
		}
	}
	return nil, fmt.Errorf("sheet %q not found in workbook", name)
}
