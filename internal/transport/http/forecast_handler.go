package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "finclusion/internal/errors"
	"finclusion/internal/impact"
	"finclusion/internal/services"
	"finclusion/pkg/contracts/domain"
)

// ForecastServiceInterface is the forecast service surface the
// handlers need.
type ForecastServiceInterface interface {
	Matrix(ctx context.Context) (*impact.Matrix, error)
	ForecastAll(ctx context.Context) (map[string]domain.ForecastSeries, error)
	Forecast(ctx context.Context, indicatorCode string) (domain.ForecastSeries, error)
	Validation(ctx context.Context) ([]impact.ValidationRow, error)
}

// ForecastHandler serves impact matrix and scenario forecast endpoints.
type ForecastHandler struct {
	service      ForecastServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewForecastHandler creates a new forecast handler.
func NewForecastHandler(service ForecastServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ForecastHandler {
	return &ForecastHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "forecast_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the forecast routes.
func (h *ForecastHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetForecasts)
	r.Get("/{code}", h.GetForecast)
	r.Get("/impact/matrix", h.GetImpactMatrix)
	r.Get("/impact/validation", h.GetValidation)

	return r
}

// GetForecasts handles GET /api/forecasts.
func (h *ForecastHandler) GetForecasts(w http.ResponseWriter, r *http.Request) {
	forecasts, err := h.service.ForecastAll(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "failed to build forecasts")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   forecasts,
		"count":  len(forecasts),
	})
}

// GetForecast handles GET /api/forecasts/{code}.
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("code", "Indicator code is required"))
		return
	}

	forecast, err := h.service.Forecast(r.Context(), code)
	if err != nil {
		h.handleServiceError(w, r, err, "failed to build forecast")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   forecast,
	})
}

// GetImpactMatrix handles GET /api/forecasts/impact/matrix.
func (h *ForecastHandler) GetImpactMatrix(w http.ResponseWriter, r *http.Request) {
	matrix, err := h.service.Matrix(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "failed to build impact matrix")
		return
	}

	estimates := matrix.Estimates()
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   estimates,
		"count":  len(estimates),
	})
}

// GetValidation handles GET /api/forecasts/impact/validation.
func (h *ForecastHandler) GetValidation(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Validation(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "failed to validate impacts")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":                 "success",
		"data":                   rows,
		"count":                  len(rows),
		"mean_absolute_residual": impact.MeanAbsoluteResidual(rows),
	})
}

func (h *ForecastHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
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

	// Domain errors (insufficient data, forecast input) are mapped to
	// problem documents by the shared handler.
	h.errorHandler.HandleError(w, r, err)
}
