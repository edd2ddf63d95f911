package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finclusion/internal/config"
	"finclusion/internal/dataset"
	"finclusion/internal/enrich"
	"finclusion/internal/exporter"
	"finclusion/internal/forecast"
	"finclusion/internal/impact"
	"finclusion/internal/infrastructure"
)

// The pipeline command runs the full batch: load the unified dataset,
// merge supplementary rows, enrich, estimate event impacts, forecast,
// and write the artifacts. It is the headless counterpart of the
// dashboard's refresh endpoint.
func main() {
	if err := run(); err != nil {
		slog.Error("Pipeline failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	in := flag.String("in", "", "input dataset (.xlsx or .csv; defaults to the configured dataset file)")
	out := flag.String("out", "", "output directory for artifacts (defaults to the configured output dir)")
	skipSheets := flag.Bool("skip-sheets", false, "skip the supplementary Google Sheets merge")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall pipeline timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if *in != "" {
		cfg.Paths.DatasetFile = *in
	}
	if *out != "" {
		cfg.Paths.OutputDir = *out
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = infrastructure.WithTraceID(ctx, infrastructure.GenerateTraceID())

	logger.InfoContext(ctx, "Pipeline starting",
		slog.String("dataset", cfg.Paths.DatasetFile),
		slog.String("output_dir", paths.OutputDir))

	// Stage 1: load.
	loader := dataset.NewLoader(logger)
	load := loader.LoadWorkbook
	if strings.EqualFold(filepath.Ext(cfg.Paths.DatasetFile), ".csv") {
		load = loader.LoadCSV
	}
	ds, err := load(ctx, cfg.Paths.DatasetFile)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	logger.InfoContext(ctx, "Dataset loaded",
		slog.Int("records", len(ds.Records)),
		slog.Int("indicators", len(ds.IndicatorCodes())))

	enricher := enrich.NewEnricher(cfg.Model, logger)
	audit := enrich.NewAuditLog()

	// Stage 2: supplementary merge (optional).
	if !*skipSheets {
		source, err := dataset.NewSheetsSource(ctx, cfg.Sheets, logger)
		if err != nil {
			logger.WarnContext(ctx, "Supplementary source unavailable",
				slog.String("error", err.Error()))
		} else if source != nil {
			rows, err := source.Fetch(ctx)
			if err != nil {
				logger.WarnContext(ctx, "Supplementary fetch failed, continuing without",
					slog.String("error", err.Error()))
			} else if len(rows) > 0 {
				merged, mergeAudit, err := enricher.MergeSupplementary(ctx, ds, rows)
				if err != nil {
					return fmt.Errorf("merge supplementary: %w", err)
				}
				ds = merged
				audit.Merge(mergeAudit)
				logger.InfoContext(ctx, "Supplementary rows merged",
					slog.Int("rows", len(rows)))
			}
		}
	}

	// Stage 3: enrich.
	enriched, enrichAudit, err := enricher.Enrich(ctx, ds)
	if err != nil {
		return fmt.Errorf("enrich dataset: %w", err)
	}
	audit.Merge(enrichAudit)
	logger.InfoContext(ctx, "Dataset enriched",
		slog.Int("records", len(enriched.Records)),
		slog.Int("audit_entries", len(audit.Entries)))

	// Stage 4: estimate event impacts.
	estimator := impact.NewEstimator(cfg.Model, logger)
	matrix, err := estimator.EstimateAll(ctx, enriched)
	if err != nil {
		return fmt.Errorf("estimate impacts: %w", err)
	}
	logger.InfoContext(ctx, "Impact matrix built",
		slog.Int("estimates", matrix.Len()))

	// Stage 5: forecast.
	engine := forecast.NewEngine(cfg.Model, logger)
	forecasts, err := engine.ForecastAll(ctx, enriched, matrix)
	if err != nil {
		return fmt.Errorf("build forecasts: %w", err)
	}
	logger.InfoContext(ctx, "Forecasts built",
		slog.Int("indicators", len(forecasts)))

	// Stage 6: export artifacts.
	writer := exporter.NewCSVWriter(paths, logger)
	if err := writer.WriteEnrichedDataset(enriched); err != nil {
		return fmt.Errorf("write enriched dataset: %w", err)
	}
	if err := writer.WriteImpactMatrix(matrix); err != nil {
		return fmt.Errorf("write impact matrix: %w", err)
	}
	if err := writer.WriteForecasts(forecasts); err != nil {
		return fmt.Errorf("write forecasts: %w", err)
	}
	if err := writer.WriteEnrichmentLog(audit); err != nil {
		return fmt.Errorf("write enrichment log: %w", err)
	}

	logger.InfoContext(ctx, "Pipeline complete",
		slog.String("output_dir", paths.OutputDir))
	return nil
}
