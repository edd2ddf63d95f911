package http

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "finclusion/internal/errors"
	ws "finclusion/internal/websocket"
)

// Invalidator drops a cached model after the dataset changes.
type Invalidator interface {
	Invalidate()
}

// PipelineHandler triggers dataset refreshes and reports progress to
// websocket clients.
type PipelineHandler struct {
	data         DataServiceInterface
	forecasts    Invalidator
	hub          *ws.Hub
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler

	refreshing atomic.Bool
}

// NewPipelineHandler creates a new pipeline handler. hub may be nil.
func NewPipelineHandler(data DataServiceInterface, forecasts Invalidator, hub *ws.Hub, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PipelineHandler {
	return &PipelineHandler{
		data:         data,
		forecasts:    forecasts,
		hub:          hub,
		logger:       logger.With(slog.String("component", "pipeline_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the pipeline routes.
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/refresh", h.Refresh)
	return r
}

// Refresh handles POST /api/pipeline/refresh. Only one refresh runs
// at a time; a concurrent request gets 409.
func (h *PipelineHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.refreshing.CompareAndSwap(false, true) {
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusConflict, "REFRESH_RUNNING", "A refresh is already in progress"))
		return
	}
	defer h.refreshing.Store(false)

	ctx := r.Context()
	h.broadcastProgress("load", 0, "refresh started")

	if err := h.data.Refresh(ctx); err != nil {
		h.logger.ErrorContext(ctx, "refresh failed",
			slog.String("error", err.Error()))
		if h.hub != nil {
			h.hub.BroadcastError("refresh", err.Error(), true)
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.forecasts.Invalidate()
	h.broadcastProgress("refresh", 100, "refresh complete")
	if h.hub != nil {
		h.hub.BroadcastRefresh("pipeline", []string{"summary", "series", "forecasts"})
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
	})
}

func (h *PipelineHandler) broadcastProgress(stage string, progress int, message string) {
	if h.hub != nil {
		h.hub.BroadcastProgress(stage, progress, message)
	}
}
