package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/netsentry/netsentry/internal/config"
	"github.com/netsentry/netsentry/internal/health"
	"github.com/netsentry/netsentry/internal/monitor"
	"github.com/netsentry/netsentry/internal/netrange"
	"github.com/netsentry/netsentry/internal/probe"
	"github.com/netsentry/netsentry/internal/wifi"
)

// Handler is the HTTP handler for all /api/v1/* endpoints plus /metrics.
// It talks to the monitor facade exclusively and returns JSON responses.
type Handler struct {
	mon  *monitor.Monitor
	auth config.AuthConfig
	mux  *http.ServeMux
}

// New creates a Handler wired to the given monitor and registers all routes.
func New(mon *monitor.Monitor, auth config.AuthConfig) http.Handler {
	h := &Handler{mon: mon, auth: auth, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/health/history", h.history)
	h.mux.HandleFunc("/api/v1/health/stats", h.stats)
	h.mux.HandleFunc("/api/v1/health/diagnostics", h.diagnostics)
	h.mux.HandleFunc("/api/v1/monitor/start", h.startMonitor)
	h.mux.HandleFunc("/api/v1/monitor/stop", h.stopMonitor)
	h.mux.HandleFunc("/api/v1/scan", h.scan)
	h.mux.HandleFunc("/api/v1/devices", h.devices)
	h.mux.HandleFunc("/api/v1/wifi", h.wifiScan)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The key guards /api/* only; /metrics stays open so Prometheus can
	// scrape without credentials.
	if r.URL.Path != "/metrics" && !h.authorized(r) {
		jsonErr(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	h.mux.ServeHTTP(w, r)
}

// authorized enforces API-key auth when configured. Non-apikey modes or an
// unset key allow everything through.
func (h *Handler) authorized(r *http.Request) bool {
	key := h.auth.Key()
	if h.auth.Mode != "apikey" || key == "" {
		return true
	}
	got := r.Header.Get(h.auth.EffectiveHeader())
	return subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — the latest computed snapshot.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{Monitoring: h.mon.HealthRunning()}
	if snap, ok := h.mon.CurrentHealth(); ok {
		resp.Snapshot = &snap
	}
	jsonResp(w, http.StatusOK, resp)
}

// history returns GET /api/v1/health/history?limit=N — trailing snapshots,
// oldest first. limit defaults to the full window.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	snaps := h.mon.HealthHistory(limit)
	jsonResp(w, http.StatusOK, HistoryResponse{Snapshots: snaps, Count: len(snaps)})
}

// stats returns GET /api/v1/health/stats?window=N — aggregates over the
// trailing N samples. window defaults to everything recorded.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "window must be a non-negative integer")
			return
		}
		window = n
	}

	jsonResp(w, http.StatusOK, StatsResponse{
		Window: window,
		Stats:  h.mon.HealthStatistics(window),
	})
}

// diagnostics returns GET /api/v1/health/diagnostics — plain-English hints
// derived from the latest snapshot and the trailing sample statistics.
func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var snapPtr *health.Snapshot
	if snap, ok := h.mon.CurrentHealth(); ok {
		snapPtr = &snap
	}
	hints := computeDiagnostics(snapPtr, h.mon.HealthStatistics(0), h.mon.HealthRunning())
	jsonResp(w, http.StatusOK, DiagnosticsResponse{Hints: hints, Count: len(hints)})
}

// startMonitor handles POST /api/v1/monitor/start. Optional ?interval=
// (seconds) overrides the configured sampling interval.
func (h *Handler) startMonitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var interval time.Duration
	if raw := r.URL.Query().Get("interval"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			jsonErr(w, http.StatusBadRequest, "interval must be a positive integer (seconds)")
			return
		}
		interval = time.Duration(secs) * time.Second
	}

	h.mon.StartHealth(interval)
	jsonResp(w, http.StatusOK, MonitorStateResponse{Monitoring: true})
}

// stopMonitor handles POST /api/v1/monitor/stop.
func (h *Handler) stopMonitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.mon.StopHealth()
	jsonResp(w, http.StatusOK, MonitorStateResponse{Monitoring: false})
}

// scan handles POST /api/v1/scan — runs one discovery sweep synchronously and
// returns the fresh result. Optional ?range= and ?strategy= override the
// configuration for this sweep only. A sweep already in flight yields 409.
func (h *Handler) scan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	strategy := r.URL.Query().Get("strategy")
	if _, err := probe.ParseStrategy(strategy); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	devices, sum, err := h.mon.Sweep(r.Context(), monitor.SweepRequest{
		Range:    r.URL.Query().Get("range"),
		Strategy: strategy,
	})
	if err != nil {
		switch {
		case errors.Is(err, monitor.ErrSweepInProgress):
			jsonErr(w, http.StatusConflict, err.Error())
		case errors.Is(err, netrange.ErrInvalidRange):
			jsonErr(w, http.StatusBadRequest, err.Error())
		default:
			jsonErr(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"summary": sum,
	})
}

// devices returns GET /api/v1/devices — the last published sweep.
func (h *Handler) devices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rec, ok := h.mon.LastSweep()
	if !ok {
		jsonErr(w, http.StatusNotFound, "no sweep recorded yet")
		return
	}
	jsonResp(w, http.StatusOK, rec)
}

// wifiScan handles GET /api/v1/wifi — runs a wireless enumeration and returns
// the networks. A missing platform tool is 503, not an empty list.
func (h *Handler) wifiScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	nets, err := h.mon.ScanWireless(r.Context())
	if err != nil {
		if errors.Is(err, wifi.ErrUnavailable) {
			jsonErr(w, http.StatusServiceUnavailable, "wireless scanning unavailable on this host")
			return
		}
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"networks": nets,
		"count":    len(nets),
	})
}

// alerts returns GET /api/v1/alerts — firing plus recently resolved alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.mon.ActiveAlerts())
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
