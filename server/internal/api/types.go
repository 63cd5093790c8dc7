package api

import (
	"github.com/statuspulse/statuspulse/server/internal/alerts"
	"github.com/statuspulse/statuspulse/server/internal/report"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	report.Overview
	Interval   string `json:"interval"`
	AlertCount int    `json:"alert_count"`
}

// ServiceResponse is one service entry in GET /api/v1/services,
// GET /api/v1/services/{id}, or the snapshot. Buckets are present only on
// the series endpoint and in the snapshot.
type ServiceResponse struct {
	report.Report
	LastSeen    string           `json:"last_seen,omitempty"` // RFC3339
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// ProfileResponse is one entry of GET /api/v1/profiles.
type ProfileResponse struct {
	Name               string `json:"name"`
	BucketWidthMinutes int    `json:"bucket_width_minutes"`
	BucketCount        int    `json:"bucket_count"`
	WindowMinutes      int    `json:"window_minutes"`
	Default            bool   `json:"default"`
}

// AlertsResponse is the payload for GET /api/v1/alerts.
type AlertsResponse struct {
	Alerts []*alerts.Alert `json:"alerts"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Interval    string            `json:"interval"`
	Overview    report.Overview   `json:"overview"`
	Services    []ServiceResponse `json:"services"`
	GeneratedAt string            `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
