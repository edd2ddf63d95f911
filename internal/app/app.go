package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"finclusion/internal/config"
	"finclusion/internal/dataset"
	apierrors "finclusion/internal/errors"
	"finclusion/internal/exporter"
	"finclusion/internal/infrastructure"
	customMiddleware "finclusion/internal/middleware"
	"finclusion/internal/services"
	handlers "finclusion/internal/transport/http"
	ws "finclusion/internal/websocket"
)

// Application is the dashboard application container.
type Application struct {
	Config          *config.Config
	Paths           *config.Paths
	Router          *chi.Mux
	Server          *http.Server
	WebSocketHub    *ws.Hub
	DataService     *services.DataService
	ForecastService *services.ForecastService
	HealthService   *services.HealthService
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
}

// NewApplication creates an application with its dependencies wired.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", cfg.Server.Port))

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	providers, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

func (a *Application) initializeServices() error {
	metrics, err := infrastructure.NewPipelineMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("create pipeline metrics: %w", err)
	}

	// Supplementary sheet source is optional; nil disables the merge.
	supp, err := dataset.NewSheetsSource(context.Background(), a.Config.Sheets, a.Logger)
	if err != nil {
		a.Logger.Warn("supplementary sheets source unavailable",
			slog.String("error", err.Error()))
	}

	a.WebSocketHub = ws.NewHub(a.Logger)

	var suppSource services.SupplementarySource
	if supp != nil {
		suppSource = supp
	}
	a.DataService = services.NewDataService(a.Config, a.Paths, suppSource, metrics, a.Logger)
	a.ForecastService = services.NewForecastService(a.Config, a.DataService, metrics, a.Logger)
	a.HealthService = services.NewHealthService(config.AppVersion, a.Paths, a.DataService, a.ForecastService, a.WebSocketHub, a.Logger)

	return nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware first so the websocket upgrade is untouched
	// by response wrapping.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.HandleFunc("/ws", a.handleWebSocket)

	r.Group(func(r chi.Router) {
		otelMiddleware := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		r.Use(otelMiddleware.Handler)

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.Compress(5))

		if a.Config.Server.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Server.RateLimit.RPS,
				a.Config.Server.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
		a.setupStaticRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	writer := exporter.NewCSVWriter(a.Paths, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())

		dataHandler := handlers.NewDataHandler(a.DataService, a.Logger, errorHandler)
		r.Mount("/data", dataHandler.Routes())

		forecastHandler := handlers.NewForecastHandler(a.ForecastService, a.Logger, errorHandler)
		r.Mount("/forecasts", forecastHandler.Routes())

		exportHandler := handlers.NewExportHandler(a.DataService, a.ForecastService, writer, a.Paths, a.Logger, errorHandler)
		r.Mount("/export", exportHandler.Routes())

		pipelineHandler := handlers.NewPipelineHandler(a.DataService, a.ForecastService, a.WebSocketHub, a.Logger, errorHandler)
		r.Mount("/pipeline", pipelineHandler.Routes())
	})
}

func (a *Application) setupStaticRoutes(r chi.Router) {
	webDir := a.Paths.WebDir
	if !config.FileExists(webDir) {
		a.Logger.Warn("web directory missing, static serving disabled",
			slog.String("web_dir", webDir))
		return
	}

	fileServer := http.FileServer(http.Dir(webDir))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, filepath.Join(webDir, "index.html"))
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws.ServeWS(a.WebSocketHub, w, r, a.Logger)
}

// Start launches the hub and server and performs the initial dataset
// load in the background so the server answers immediately.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.WebSocketHub.Start()

	go func() {
		loadCtx := infrastructure.WithTraceID(context.Background(), infrastructure.GenerateTraceID())
		if err := a.DataService.Refresh(loadCtx); err != nil {
			a.Logger.Error("initial dataset load failed",
				slog.String("error", err.Error()))
			a.WebSocketHub.BroadcastError("load", err.Error(), true)
			return
		}
		a.WebSocketHub.BroadcastStatus("ready", "dataset loaded")
	}()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry",
				slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
