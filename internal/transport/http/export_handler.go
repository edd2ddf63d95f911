package http

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"finclusion/internal/config"
	apierrors "finclusion/internal/errors"
	"finclusion/internal/exporter"
)

// ExportHandler writes pipeline artifacts to the output directory and
// serves them for download.
type ExportHandler struct {
	data         DataServiceInterface
	forecasts    ForecastServiceInterface
	writer       *exporter.CSVWriter
	paths        *config.Paths
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewExportHandler creates a new export handler.
func NewExportHandler(data DataServiceInterface, forecasts ForecastServiceInterface, writer *exporter.CSVWriter, paths *config.Paths, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	return &ExportHandler{
		data:         data,
		forecasts:    forecasts,
		writer:       writer,
		paths:        paths,
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the export routes.
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.RunExport)
	r.Get("/download/{filename}", h.DownloadArtifact)

	return r
}

// RunExport handles POST /api/export. It writes all four artifacts:
// enriched dataset, impact matrix, forecast table, and enrichment log.
func (h *ExportHandler) RunExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ds, err := h.data.Dataset()
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusServiceUnavailable, "DATASET_NOT_LOADED", "Dataset has not been loaded yet"))
		return
	}
	matrix, err := h.forecasts.Matrix(ctx)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	forecasts, err := h.forecasts.ForecastAll(ctx)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	audit, err := h.data.Audit()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	written := make([]string, 0, 4)
	steps := []struct {
		file string
		run  func() error
	}{
		{config.EnrichedDataFile, func() error { return h.writer.WriteEnrichedDataset(ds) }},
		{config.ImpactMatrixFile, func() error { return h.writer.WriteImpactMatrix(matrix) }},
		{config.ForecastFile, func() error { return h.writer.WriteForecasts(forecasts) }},
		{config.EnrichmentLogFile, func() error { return h.writer.WriteEnrichmentLog(audit) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			h.logger.ErrorContext(ctx, "artifact export failed",
				slog.String("file", step.file),
				slog.String("error", err.Error()),
			)
			h.errorHandler.HandleError(w, r, err)
			return
		}
		written = append(written, step.file)
	}

	h.logger.InfoContext(ctx, "artifacts exported",
		slog.Int("count", len(written)),
		slog.String("output_dir", h.paths.OutputDir))

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   written,
		"count":  len(written),
	})
}

// DownloadArtifact handles GET /api/export/download/{filename}. Only
// files directly in the output directory are served.
func (h *ExportHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("filename", "Filename is required"))
		return
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("filename", "Invalid filename"))
		return
	}

	path := h.paths.OutputPath(filepath.Base(filename))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("artifact "+filename))
		return
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	case ".md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	http.ServeFile(w, r, path)
}
