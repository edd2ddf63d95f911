// Package services implements the business logic layer between the
// HTTP handlers and the analysis pipeline packages. Services own the
// in-memory dataset and model state, coordinate pipeline stages, and
// transform domain errors for the transport layer.
//
// Services follow these architectural principles:
//
//  1. Context propagation for cancellation and tracing
//  2. Dependency injection via constructors taking *slog.Logger
//  3. Caching of expensive model builds with invalidation on refresh
//
// The package provides three core services:
//
//   - DataService: loads, merges, and enriches the unified dataset
//   - ForecastService: builds the impact matrix and scenario forecasts
//   - HealthService: provides system health checks and statistics
package services
