// Package app assembles the dashboard application: configuration,
// logging, OpenTelemetry, services, websocket hub, and the chi router,
// and owns the HTTP server lifecycle.
package app
