// Package http contains the HTTP handlers of the dashboard API. Each
// handler exposes a Routes() chi.Router mounted by the application,
// renders JSON with go-chi/render, and reports failures as RFC 7807
// problem documents through the shared error handler.
package http
