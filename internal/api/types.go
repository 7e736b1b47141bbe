package api

import (
	"github.com/netsentry/netsentry/internal/health"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Monitoring bool             `json:"monitoring"`
	Snapshot   *health.Snapshot `json:"snapshot,omitempty"`
}

// HistoryResponse is the payload for GET /api/v1/health/history.
type HistoryResponse struct {
	Snapshots []health.Snapshot `json:"snapshots"`
	Count     int               `json:"count"`
}

// StatsResponse is the payload for GET /api/v1/health/stats.
type StatsResponse struct {
	Window int          `json:"window"`
	Stats  health.Stats `json:"stats"`
}

// MonitorStateResponse is the payload for the monitor start/stop endpoints.
type MonitorStateResponse struct {
	Monitoring bool `json:"monitoring"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
