package services

import "errors"

// Service-level errors returned to the transport layer.
var (
	// Dataset errors
	ErrDatasetNotLoaded = errors.New("dataset not loaded")
	ErrNoObservations   = errors.New("no observations in dataset")

	// Forecast errors
	ErrModelNotBuilt = errors.New("forecast model not built")

	// General errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrRefreshRunning     = errors.New("refresh already running")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
