// Package api implements the REST surface: health snapshots, history and
// statistics, on-demand discovery and wireless scans, alerts, and the
// Prometheus /metrics endpoint. Responses are JSON; API-key auth is applied
// when configured.
package api
