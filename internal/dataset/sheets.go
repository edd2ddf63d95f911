package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"finclusion/internal/config"
	"finclusion/pkg/contracts/domain"
)

// SheetsSource fetches supplementary observation rows from a shared
// Google Sheet. Field teams publish corrections and late survey rounds
// there between workbook releases; the enricher merges them in.
type SheetsSource struct {
	cfg    config.SheetsConfig
	svc    *sheets.Service
	logger *slog.Logger
}

// NewSheetsSource creates the source. Returns nil when no spreadsheet
// is configured so callers can skip the merge stage cleanly.
func NewSheetsSource(ctx context.Context, cfg config.SheetsConfig, logger *slog.Logger) (*SheetsSource, error) {
	if cfg.SpreadsheetID == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := sheets.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsSource{
		cfg:    cfg,
		svc:    svc,
		logger: logger.With(slog.String("component", "dataset.sheets")),
	}, nil
}

// Fetch reads the configured range and parses it with the unified
// record schema. The first row of the range must be the header.
func (s *SheetsSource) Fetch(ctx context.Context) ([]domain.Record, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, config.SheetsFetchTimeout)
	defer cancel()

	resp, err := s.svc.Spreadsheets.Values.
		Get(s.cfg.SpreadsheetID, s.cfg.ReadRange).
		Context(fetchCtx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetch supplementary sheet: %w", err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		rows = append(rows, cells)
	}

	records, err := parseRecordRows(rows)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err := ValidateRecord(rec); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "supplementary rows fetched",
		slog.String("spreadsheet_id", s.cfg.SpreadsheetID),
		slog.Int("records", len(records)),
	)
	return records, nil
}
