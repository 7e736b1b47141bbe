package ws_test

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

	"github.com/gorilla/websocket"

	"github.com/netsentry/netsentry/internal/alerts"
	"github.com/netsentry/netsentry/internal/config"
	"github.com/netsentry/netsentry/internal/discovery"
	"github.com/netsentry/netsentry/internal/health"
	"github.com/netsentry/netsentry/internal/monitor"
	"github.com/netsentry/netsentry/internal/netrange"
	"github.com/netsentry/netsentry/internal/probe"
	"github.com/netsentry/netsentry/internal/store"
	"github.com/netsentry/netsentry/internal/wifi"
	wsHub "github.com/netsentry/netsentry/internal/ws"
)

// --- helpers ----------------------------------------------------------------

type stubProber struct{}

func (stubProber) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) (probe.Result, error) {
	return probe.Result{}, fmt.Errorf("probe: %s: no response", addr)
}

func (stubProber) Close() error { return nil }

type stubScanner struct{}

func (stubScanner) Scan(ctx context.Context, timeout time.Duration) ([]wifi.Network, error) {
	return nil, nil
}

// newMonitor builds a monitor whose tracker we can drive by hand.
func newMonitor(t *testing.T) (*monitor.Monitor, *health.Tracker) {
	t.Helper()
	cfg := &config.Config{
		Scan:   config.ScanConfig{Range: "192.168.9.0/30", Strategy: "ping"},
		Health: config.HealthConfig{Target: "8.8.8.8", Interval: time.Second},
		Wifi:   config.WifiConfig{Timeout: time.Second},
	}
	sampler := health.NewSampler(stubProber{}, netip.MustParseAddr("8.8.8.8"), 100*time.Millisecond, nil).
		WithDialer(func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, errors.New("no route")
		})
	tracker := health.NewTracker(sampler, health.DefaultPolicy(), 0, 0)
	mon := monitor.New(cfg, netrange.New(), discovery.New(nil, stubProber{}),
		stubScanner{}, tracker, alerts.New(config.AlertsConfig{}), store.New())
	return mon, tracker
}

// startHub starts a test HTTP server with the hub as its handler.
// Returns the ws:// URL and the hub.
func startHub(t *testing.T, mon *monitor.Monitor) (string, *wsHub.Hub) {
	t.Helper()

	hub := wsHub.New(mon)
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads one text message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return msg
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesCurrentSnapshot(t *testing.T) {
	mon, tracker := newMonitor(t)
	tracker.RecordSample(health.Sample{RTT: 15 * time.Millisecond})
	tracker.ComputeScore()

	wsURL, _ := startHub(t, mon)
	conn := dial(t, wsURL)
	msg := readMessage(t, conn)

	var m wsHub.Message
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Event != "health" {
		t.Errorf("event: got %q, want health", m.Event)
	}
	if m.Data.Score == 0 {
		t.Errorf("data = %+v, want scored snapshot", m.Data)
	}
}

func TestHub_BroadcastOnNewSnapshot(t *testing.T) {
	mon, tracker := newMonitor(t)
	wsURL, hub := startHub(t, mon)
	conn := dial(t, wsURL)

	// No snapshot exists yet, so nothing arrives on connect. Wait for the
	// client to register, then drive one tick by hand.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Count() != 1 {
		t.Fatalf("Count = %d, want 1", hub.Count())
	}

	tracker.RecordSample(health.Sample{RTT: 20 * time.Millisecond})
	snap := tracker.ComputeScore()

	var m wsHub.Message
	if err := json.Unmarshal(readMessage(t, conn), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Data.Score != snap.Score {
		t.Errorf("broadcast score = %d, want %d", m.Data.Score, snap.Score)
	}
}

func TestHub_DisconnectDropsClient(t *testing.T) {
	mon, _ := newMonitor(t)
	wsURL, hub := startHub(t, mon)

	conn := dial(t, wsURL)
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Count() != 0 {
		t.Errorf("Count = %d after disconnect, want 0", hub.Count())
	}
}
