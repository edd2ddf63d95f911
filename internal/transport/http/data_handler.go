package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "finclusion/internal/errors"
	"finclusion/internal/services"
)

// DataHandler serves dataset, series, and event endpoints.
type DataHandler struct {
	service      DataServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a new data handler.
func NewDataHandler(service DataServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the data routes.
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/summary", h.GetSummary)
	r.Get("/coverage", h.GetCoverage)
	r.Get("/indicators", h.GetIndicators)
	r.Get("/events", h.GetEvents)
	r.Get("/audit", h.GetAudit)

	r.Route("/indicators/{code}", func(r chi.Router) {
		r.Use(h.IndicatorCtx)
		r.Get("/series", h.GetSeries)
		r.Get("/gender-gap", h.GetGenderGap)
	})

	return r
}

// IndicatorCtx validates the indicator code parameter.
func (h *DataHandler) IndicatorCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if code == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("code", "Indicator code is required"))
			return
		}
		if len(code) > 64 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("code", "Invalid indicator code format"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSummary handles GET /api/data/summary.
func (h *DataHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "failed to get summary")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}

// GetCoverage handles GET /api/data/coverage.
func (h *DataHandler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	coverage, err := h.service.Coverage(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "failed to get coverage")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   coverage,
		"count":  len(coverage),
	})
}

// GetIndicators handles GET /api/data/indicators.
func (h *DataHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	indicators, err := h.service.Indicators(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "failed to get indicators")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   indicators,
		"count":  len(indicators),
	})
}

// GetSeries handles GET /api/data/indicators/{code}/series.
func (h *DataHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	series, growth, err := h.service.Series(r.Context(), code)
	if err != nil {
		h.handleServiceError(w, r, err, "failed to get series")
		return
	}
	if len(series.Points) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("indicator "+code))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"series": series,
			"growth": growth,
		},
	})
}

// GetGenderGap handles GET /api/data/indicators/{code}/gender-gap.
func (h *DataHandler) GetGenderGap(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	rows, err := h.service.GenderGap(r.Context(), code)
	if err != nil {
		h.handleServiceError(w, r, err, "failed to get gender gap")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   rows,
		"count":  len(rows),
	})
}

// GetEvents handles GET /api/data/events.
func (h *DataHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Events(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "failed to get events")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   events,
		"count":  len(events),
	})
}

// GetAudit handles GET /api/data/audit.
func (h *DataHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	audit, err := h.service.Audit()
	if err != nil {
		h.handleServiceError(w, r, err, "failed to get audit log")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   audit.Entries,
		"count":  len(audit.Entries),
	})
}

func (h *DataHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	h.logger.ErrorContext(r.Context(), msg,
		slog.String("error", err.Error()),
	)

	if errors.Is(err, services.ErrDatasetNotLoaded) {
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusServiceUnavailable,
			"DATASET_NOT_LOADED",
			"Dataset has not been loaded yet",
		))
		return
	}
	if errors.Is(err, services.ErrInvalidInput) {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	h.errorHandler.HandleError(w, r, err)
}
