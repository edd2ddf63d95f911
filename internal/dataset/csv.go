package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"

	"finclusion/pkg/contracts/domain"
)

// LoadCSV reads a unified-schema CSV file. The column set matches the
// workbook's main sheet, which makes CSV round-trips of enriched
// output loadable again.
func (l *Loader) LoadCSV(ctx context.Context, path string) (domain.Dataset, error) {
	rows, err := readCSVRows(path)
	if err != nil {
		return domain.Dataset{}, err
	}

	records, err := parseRecordRows(rows)
	if err != nil {
		return domain.Dataset{}, err
	}

	ds := domain.Dataset{Records: records}
	if err := ValidateDataset(ds); err != nil {
		return domain.Dataset{}, err
	}

	l.logger.InfoContext(ctx, "csv loaded",
		slog.String("path", path),
		slog.Int("records", len(ds.Records)),
	)
	return ds, nil
}

// LoadReferenceCSV reads the reference-code table from CSV and
// attaches it to a copy of the dataset.
func (l *Loader) LoadReferenceCSV(ctx context.Context, ds domain.Dataset, path string) (domain.Dataset, error) {
	rows, err := readCSVRows(path)
	if err != nil {
		return domain.Dataset{}, err
	}

	refs, err := parseReferenceRows(rows)
	if err != nil {
		return domain.Dataset{}, err
	}

	out := ds.Clone()
	out.ReferenceCodes = refs
	if err := ValidateDataset(out); err != nil {
		return domain.Dataset{}, err
	}

	l.logger.InfoContext(ctx, "reference codes loaded",
		slog.String("path", path),
		slog.Int("codes", len(refs)),
	)
	return out, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}
