package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/netsentry/netsentry/internal/alerts"
	"github.com/netsentry/netsentry/internal/api"
	"github.com/netsentry/netsentry/internal/config"
	"github.com/netsentry/netsentry/internal/discovery"
	"github.com/netsentry/netsentry/internal/health"
	"github.com/netsentry/netsentry/internal/monitor"
	"github.com/netsentry/netsentry/internal/netrange"
	"github.com/netsentry/netsentry/internal/probe"
	"github.com/netsentry/netsentry/internal/store"
	"github.com/netsentry/netsentry/internal/wifi"
)

// --- test helpers -----------------------------------------------------------

type stubProber struct {
	reachable map[netip.Addr]bool
}

func (p stubProber) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) (probe.Result, error) {
	if p.reachable[addr] {
		return probe.Result{Addr: addr, RTT: time.Millisecond}, nil
	}
	return probe.Result{}, fmt.Errorf("probe: %s: no response", addr)
}

func (stubProber) Close() error { return nil }

type stubScanner struct {
	nets []wifi.Network
	err  error
}

func (s stubScanner) Scan(ctx context.Context, timeout time.Duration) ([]wifi.Network, error) {
	return s.nets, s.err
}

type fixture struct {
	mon     *monitor.Monitor
	tracker *health.Tracker
}

func newFixture(t *testing.T, ping probe.Prober, scanner monitor.WifiScanner) *fixture {
	t.Helper()
	cfg := &config.Config{
		Scan: config.ScanConfig{
			Range:        "192.168.9.0/30",
			Strategy:     "ping",
			MaxHosts:     16,
			Concurrency:  2,
			ProbeTimeout: 100 * time.Millisecond,
			SweepTimeout: 2 * time.Second,
		},
		Health: config.HealthConfig{Target: "8.8.8.8", Interval: time.Second},
		Wifi:   config.WifiConfig{Timeout: time.Second},
	}
	sampler := health.NewSampler(ping, netip.MustParseAddr("8.8.8.8"), 100*time.Millisecond, nil).
		WithDialer(func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, errors.New("no route")
		})
	tracker := health.NewTracker(sampler, health.DefaultPolicy(), 0, 0)
	mon := monitor.New(cfg, netrange.New(), discovery.New(nil, ping),
		scanner, tracker, alerts.New(config.AlertsConfig{}), store.New())
	return &fixture{mon: mon, tracker: tracker}
}

func newHandler(t *testing.T, f *fixture) http.Handler {
	t.Helper()
	return api.New(f.mon, config.AuthConfig{})
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_NoSnapshotYet(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	rr := do(t, newHandler(t, f), http.MethodGet, "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.Monitoring || resp.Snapshot != nil {
		t.Errorf("resp = %+v, want idle with no snapshot", resp)
	}
}

func TestHealth_WithSnapshot(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	f.tracker.RecordSample(health.Sample{RTT: 15 * time.Millisecond})
	f.tracker.ComputeScore()

	rr := do(t, newHandler(t, f), http.MethodGet, "/api/v1/health")
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.Snapshot == nil || resp.Snapshot.Score == 0 {
		t.Fatalf("resp = %+v, want scored snapshot", resp)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	rr := do(t, newHandler(t, f), http.MethodPost, "/api/v1/health")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/health/history and /stats --------------------------------------

func TestHistory_LimitApplied(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	for i := 0; i < 5; i++ {
		f.tracker.RecordSample(health.Sample{RTT: 20 * time.Millisecond})
		f.tracker.ComputeScore()
	}

	h := newHandler(t, f)
	var resp api.HistoryResponse

	decode(t, do(t, h, http.MethodGet, "/api/v1/health/history"), &resp)
	if resp.Count != 5 {
		t.Errorf("unbounded history count = %d, want 5", resp.Count)
	}

	decode(t, do(t, h, http.MethodGet, "/api/v1/health/history?limit=2"), &resp)
	if resp.Count != 2 {
		t.Errorf("limited history count = %d, want 2", resp.Count)
	}

	if rr := do(t, h, http.MethodGet, "/api/v1/health/history?limit=-1"); rr.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rr.Code)
	}
}

func TestStats_WindowApplied(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	for _, ms := range []int{10, 20, 30} {
		f.tracker.RecordSample(health.Sample{RTT: time.Duration(ms) * time.Millisecond})
	}

	var resp api.StatsResponse
	decode(t, do(t, newHandler(t, f), http.MethodGet, "/api/v1/health/stats?window=2"), &resp)
	if resp.Stats.TotalSamples != 2 {
		t.Errorf("TotalSamples = %d, want trailing 2", resp.Stats.TotalSamples)
	}
	if resp.Stats.AvgLatencyMs != 25 {
		t.Errorf("AvgLatencyMs = %v, want 25", resp.Stats.AvgLatencyMs)
	}
}

// --- monitor start/stop ------------------------------------------------------

func TestMonitorStartStop(t *testing.T) {
	f := newFixture(t, stubProber{reachable: map[netip.Addr]bool{
		netip.MustParseAddr("8.8.8.8"): true,
	}}, stubScanner{})
	h := newHandler(t, f)

	var state api.MonitorStateResponse
	decode(t, do(t, h, http.MethodPost, "/api/v1/monitor/start"), &state)
	if !state.Monitoring || !f.mon.HealthRunning() {
		t.Fatal("loop not running after start")
	}

	decode(t, do(t, h, http.MethodPost, "/api/v1/monitor/stop"), &state)
	if state.Monitoring || f.mon.HealthRunning() {
		t.Fatal("loop still running after stop")
	}
}

// --- /api/v1/scan and /devices ----------------------------------------------

func TestScanThenDevices(t *testing.T) {
	f := newFixture(t, stubProber{reachable: map[netip.Addr]bool{
		netip.MustParseAddr("192.168.9.1"): true,
	}}, stubScanner{})
	h := newHandler(t, f)

	if rr := do(t, h, http.MethodGet, "/api/v1/devices"); rr.Code != http.StatusNotFound {
		t.Fatalf("devices before any sweep: %d, want 404", rr.Code)
	}

	rr := do(t, h, http.MethodPost, "/api/v1/scan")
	if rr.Code != http.StatusOK {
		t.Fatalf("scan status = %d (body %s)", rr.Code, rr.Body.String())
	}
	var scanResp struct {
		Devices []discovery.Device `json:"devices"`
		Summary discovery.Summary  `json:"summary"`
	}
	decode(t, rr, &scanResp)
	if len(scanResp.Devices) != 1 || scanResp.Summary.Responded != 1 {
		t.Errorf("scan = %+v", scanResp)
	}

	var rec store.SweepRecord
	decode(t, do(t, h, http.MethodGet, "/api/v1/devices"), &rec)
	if len(rec.Devices) != 1 {
		t.Errorf("devices after sweep = %+v", rec)
	}
}

func TestScan_InvalidRangeIs400(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	rr := do(t, newHandler(t, f), http.MethodPost, "/api/v1/scan?range=bogus")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (body %s)", rr.Code, rr.Body.String())
	}
}

func TestScan_UnknownStrategyIs400(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	rr := do(t, newHandler(t, f), http.MethodPost, "/api/v1/scan?strategy=tcp-syn")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (body %s)", rr.Code, rr.Body.String())
	}
}

// --- /api/v1/health/diagnostics -----------------------------------------------

func TestDiagnostics_WarmingUpBeforeFirstSnapshot(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	rr := do(t, newHandler(t, f), http.MethodGet, "/api/v1/health/diagnostics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp api.DiagnosticsResponse
	decode(t, rr, &resp)
	if resp.Count != 1 || resp.Hints[0].Key != "warming_up" || resp.Hints[0].Level != "info" {
		t.Errorf("resp = %+v, want a single warming_up info hint", resp)
	}
}

func TestDiagnostics_HealthyConnection(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	f.tracker.RecordSample(health.Sample{RTT: 15 * time.Millisecond})
	f.tracker.ComputeScore()

	var resp api.DiagnosticsResponse
	decode(t, do(t, newHandler(t, f), http.MethodGet, "/api/v1/health/diagnostics"), &resp)
	if resp.Count != 1 || resp.Hints[0].Key != "healthy" || resp.Hints[0].Level != "ok" {
		t.Errorf("resp = %+v, want a single all-clear hint", resp)
	}
}

func TestDiagnostics_DegradedConnectionOrdersCriticalFirst(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	for i := 0; i < 3; i++ {
		f.tracker.RecordSample(health.Sample{RTT: 350 * time.Millisecond})
	}
	f.tracker.RecordSample(health.Sample{Lost: true})
	f.tracker.ComputeScore()

	var resp api.DiagnosticsResponse
	decode(t, do(t, newHandler(t, f), http.MethodGet, "/api/v1/health/diagnostics"), &resp)

	if resp.Count < 2 {
		t.Fatalf("resp = %+v, want latency and loss hints", resp)
	}
	if resp.Hints[0].Level != "critical" {
		t.Errorf("first hint = %+v, want critical severity first", resp.Hints[0])
	}
	keys := map[string]api.DiagnosticHint{}
	for _, hint := range resp.Hints {
		keys[hint.Key] = hint
	}
	if hint, ok := keys["high_latency"]; !ok || hint.Level != "critical" {
		t.Errorf("high_latency hint = %+v, %v", hint, ok)
	}
	if hint, ok := keys["packet_loss"]; !ok || hint.Level != "critical" || hint.Value == nil || *hint.Value != 25 {
		t.Errorf("packet_loss hint = %+v, %v", hint, ok)
	}
}

func TestDiagnostics_InternetUnreachable(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	f.tracker.RecordSample(health.Sample{Lost: true})
	f.tracker.RecordReachability(false)
	f.tracker.ComputeScore()

	var resp api.DiagnosticsResponse
	decode(t, do(t, newHandler(t, f), http.MethodGet, "/api/v1/health/diagnostics"), &resp)
	if resp.Count != 1 || resp.Hints[0].Key != "internet_unreachable" || resp.Hints[0].Level != "critical" {
		t.Errorf("resp = %+v, want a single unreachable hint", resp)
	}
}

// --- /api/v1/wifi ------------------------------------------------------------

func TestWifi_UnavailableIs503(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{err: fmt.Errorf("%w: no tool", wifi.ErrUnavailable)})
	rr := do(t, newHandler(t, f), http.MethodGet, "/api/v1/wifi")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestWifi_ReturnsNetworks(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{nets: []wifi.Network{{SSID: "HomeNet", SignalPercent: 80}}})
	rr := do(t, newHandler(t, f), http.MethodGet, "/api/v1/wifi")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp struct {
		Networks []wifi.Network `json:"networks"`
		Count    int            `json:"count"`
	}
	decode(t, rr, &resp)
	if resp.Count != 1 || resp.Networks[0].SSID != "HomeNet" {
		t.Errorf("resp = %+v", resp)
	}
}

// --- /api/v1/alerts -----------------------------------------------------------

func TestAlerts_EmptyList(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	rr := do(t, newHandler(t, f), http.MethodGet, "/api/v1/alerts")
	var resp []alerts.Alert
	decode(t, rr, &resp)
	if len(resp) != 0 {
		t.Errorf("alerts = %+v, want none", resp)
	}
}

// --- /metrics -----------------------------------------------------------------

func TestMetrics_TextExposition(t *testing.T) {
	f := newFixture(t, stubProber{}, stubScanner{})
	f.tracker.RecordSample(health.Sample{RTT: 15 * time.Millisecond})
	f.tracker.ComputeScore()

	rr := do(t, newHandler(t, f), http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"netsentry_health_score",
		"netsentry_monitoring 0",
		"# TYPE netsentry_latency_ms gauge",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}

// --- auth ---------------------------------------------------------------------

func TestAPIKeyAuth(t *testing.T) {
	t.Setenv("NS_TEST_KEY", "sekrit")
	f := newFixture(t, stubProber{}, stubScanner{})
	h := api.New(f.mon, config.AuthConfig{Mode: "apikey", KeyEnv: "NS_TEST_KEY"})

	if rr := do(t, h, http.MethodGet, "/api/v1/health"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing key status = %d, want 401", rr.Code)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("x-api-key", "sekrit")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("valid key status = %d, want 200", rr.Code)
	}
}

func TestAPIKeyAuth_MetricsStaysOpen(t *testing.T) {
	t.Setenv("NS_TEST_KEY", "sekrit")
	f := newFixture(t, stubProber{}, stubScanner{})
	h := api.New(f.mon, config.AuthConfig{Mode: "apikey", KeyEnv: "NS_TEST_KEY"})

	// Prometheus scrapes without credentials; the key only guards /api/*.
	rr := do(t, h, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Errorf("unauthenticated scrape status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "netsentry_monitoring") {
		t.Errorf("scrape body missing exposition:\n%s", rr.Body.String())
	}
}
