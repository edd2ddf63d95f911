package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"finclusion/internal/config"
	ws "finclusion/internal/websocket"
)

// HealthService reports liveness and readiness of the application.
type HealthService struct {
	version      string
	paths        *config.Paths
	data         *DataService
	forecasts    *ForecastService
	webSocketHub *ws.Hub
	startTime    time.Time
	logger       *slog.Logger
}

// HealthStatus is the health check response.
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth is the health of one internal component.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemStats are operational statistics for the dashboard.
type SystemStats struct {
	UptimeSeconds    float64   `json:"uptime_seconds"`
	DatasetLoadedAt  time.Time `json:"dataset_loaded_at,omitempty"`
	ModelBuiltAt     time.Time `json:"model_built_at,omitempty"`
	WebSocketClients int       `json:"websocket_clients"`
	GoVersion        string    `json:"go_version"`
	OS               string    `json:"os"`
	Arch             string    `json:"arch"`
}

// NewHealthService creates a health service with injected dependencies.
func NewHealthService(version string, paths *config.Paths, data *DataService, forecasts *ForecastService, hub *ws.Hub, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:      version,
		paths:        paths,
		data:         data,
		forecasts:    forecasts,
		webSocketHub: hub,
		startTime:    time.Now(),
		logger:       logger.With(slog.String("component", "services.health")),
	}
}

// CheckHealth reports overall status. The service is degraded but
// alive before the first dataset refresh completes.
func (hs *HealthService) CheckHealth(ctx context.Context) HealthStatus {
	services := map[string]ServiceHealth{
		"dataset":  hs.datasetHealth(),
		"forecast": hs.forecastHealth(),
	}

	status := "healthy"
	for _, sh := range services {
		if sh.Status != "healthy" {
			status = "degraded"
			break
		}
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
			"uptime_seconds": time.Since(hs.startTime).Seconds(),
		},
		Services: services,
	}
}

func (hs *HealthService) datasetHealth() ServiceHealth {
	if hs.data == nil || hs.data.LoadedAt().IsZero() {
		return ServiceHealth{Status: "unavailable", Message: "dataset not loaded"}
	}
	return ServiceHealth{Status: "healthy"}
}

func (hs *HealthService) forecastHealth() ServiceHealth {
	if hs.forecasts == nil || hs.forecasts.BuiltAt().IsZero() {
		return ServiceHealth{Status: "unavailable", Message: "forecast model not built"}
	}
	return ServiceHealth{Status: "healthy"}
}

// Stats returns operational statistics.
func (hs *HealthService) Stats(ctx context.Context) SystemStats {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
	if hs.data != nil {
		stats.DatasetLoadedAt = hs.data.LoadedAt()
	}
	if hs.forecasts != nil {
		stats.ModelBuiltAt = hs.forecasts.BuiltAt()
	}
	if hs.webSocketHub != nil {
		stats.WebSocketClients = hs.webSocketHub.ClientCount()
	}
	return stats
}
