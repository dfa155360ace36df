// Package api defines wire-format types and the case service behind the HTTP
// API layer. It translates internal case models into transport-friendly DTOs
// that the web frontend can render without coupling to internal types.
//
// DTOs use camelCase JSON tags for JavaScript consumers. Internal enums are
// exposed as their stored string values. Timestamps use RFC3339.
//
// The CaseService is the single entry point the daemon handlers call: it
// owns the orchestration of intake profiling, sighting verification, photo
// staging and upload, alerting, and persistence.
package api
