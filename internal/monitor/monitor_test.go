package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/netsentry/netsentry/internal/alerts"
	"github.com/netsentry/netsentry/internal/config"
	"github.com/netsentry/netsentry/internal/discovery"
	"github.com/netsentry/netsentry/internal/health"
	"github.com/netsentry/netsentry/internal/netrange"
	"github.com/netsentry/netsentry/internal/probe"
	"github.com/netsentry/netsentry/internal/store"
	"github.com/netsentry/netsentry/internal/wifi"
)

// stubProber answers for a fixed set of addresses, optionally slowly.
type stubProber struct {
	reachable map[netip.Addr]bool
	delay     time.Duration
}

func (p *stubProber) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) (probe.Result, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return probe.Result{}, ctx.Err()
		}
	}
	if p.reachable[addr] {
		return probe.Result{Addr: addr, RTT: time.Millisecond}, nil
	}
	return probe.Result{}, fmt.Errorf("probe: %s: no response", addr)
}

func (p *stubProber) Close() error { return nil }

type stubScanner struct {
	nets []wifi.Network
	err  error
}

func (s stubScanner) Scan(ctx context.Context, timeout time.Duration) ([]wifi.Network, error) {
	return s.nets, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		Scan: config.ScanConfig{
			Range:        "192.168.9.0/30",
			Strategy:     "ping",
			MaxHosts:     16,
			Concurrency:  2,
			ProbeTimeout: 100 * time.Millisecond,
			SweepTimeout: 2 * time.Second,
		},
		Health: config.HealthConfig{
			Target:   "8.8.8.8",
			Interval: 10 * time.Millisecond,
		},
		Wifi: config.WifiConfig{Timeout: time.Second},
	}
}

func newTestMonitor(t *testing.T, ping probe.Prober, scanner WifiScanner) *Monitor {
	t.Helper()
	sampler := health.NewSampler(ping, netip.MustParseAddr("8.8.8.8"), 100*time.Millisecond, nil).
		WithDialer(func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, errors.New("no route")
		})
	tracker := health.NewTracker(sampler, health.DefaultPolicy(), 0, 0)
	return New(
		testConfig(),
		netrange.New(),
		discovery.New(nil, ping),
		scanner,
		tracker,
		alerts.New(config.AlertsConfig{}),
		store.New(),
	)
}

func TestSweep_PublishesToStore(t *testing.T) {
	ping := &stubProber{reachable: map[netip.Addr]bool{
		netip.MustParseAddr("192.168.9.1"): true,
	}}
	m := newTestMonitor(t, ping, stubScanner{})

	devices, sum, err := m.Sweep(context.Background(), SweepRequest{})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(devices) != 1 || sum.Responded != 1 {
		t.Fatalf("devices = %+v, summary = %+v", devices, sum)
	}

	rec, ok := m.LastSweep()
	if !ok || len(rec.Devices) != 1 {
		t.Errorf("store record = %+v, %v", rec, ok)
	}
}

func TestSweep_Serialized(t *testing.T) {
	ping := &stubProber{delay: 200 * time.Millisecond}
	m := newTestMonitor(t, ping, stubScanner{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, _ = m.Sweep(context.Background(), SweepRequest{})
	}()

	// Give the first sweep time to claim the slot.
	time.Sleep(50 * time.Millisecond)
	if _, _, err := m.Sweep(context.Background(), SweepRequest{}); !errors.Is(err, ErrSweepInProgress) {
		t.Errorf("concurrent sweep err = %v, want ErrSweepInProgress", err)
	}
	wg.Wait()

	// A fresh sweep after completion is accepted again.
	ping.delay = 0
	if _, _, err := m.Sweep(context.Background(), SweepRequest{}); err != nil {
		t.Errorf("follow-up sweep: %v", err)
	}
}

func TestScanWireless_PublishesUnavailable(t *testing.T) {
	m := newTestMonitor(t, &stubProber{}, stubScanner{err: fmt.Errorf("%w: no tool", wifi.ErrUnavailable)})

	if _, err := m.ScanWireless(context.Background()); !errors.Is(err, wifi.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	rec, ok := m.LastWifi()
	if !ok || !rec.Unavailable {
		t.Errorf("record = %+v, %v; want unavailable published", rec, ok)
	}
}

func TestScanWireless_PublishesNetworks(t *testing.T) {
	m := newTestMonitor(t, &stubProber{}, stubScanner{nets: []wifi.Network{{SSID: "HomeNet"}}})

	nets, err := m.ScanWireless(context.Background())
	if err != nil || len(nets) != 1 {
		t.Fatalf("nets = %+v, err = %v", nets, err)
	}
	rec, _ := m.LastWifi()
	if rec.Unavailable || len(rec.Networks) != 1 {
		t.Errorf("record = %+v", rec)
	}
}

func TestListeners_ReceiveSnapshots(t *testing.T) {
	ping := &stubProber{reachable: map[netip.Addr]bool{
		netip.MustParseAddr("8.8.8.8"): true,
	}}
	m := newTestMonitor(t, ping, stubScanner{})

	var mu sync.Mutex
	var got []health.Snapshot
	m.AddListener(func(s health.Snapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	m.tracker.RecordSample(health.Sample{RTT: 20 * time.Millisecond})
	m.tracker.ComputeScore()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("listener received %d snapshots, want 1", len(got))
	}
	if got[0].Score == 0 {
		t.Errorf("snapshot = %+v, want scored", got[0])
	}
}

func TestStartStopHealth(t *testing.T) {
	ping := &stubProber{reachable: map[netip.Addr]bool{
		netip.MustParseAddr("8.8.8.8"): true,
	}}
	m := newTestMonitor(t, ping, stubScanner{})

	if m.HealthRunning() {
		t.Fatal("loop running before Start")
	}
	m.StartHealth(0)
	if !m.HealthRunning() {
		t.Fatal("loop not running after Start")
	}
	// The first tick fires immediately, but its score is only published once
	// the in-flight sample completes — wait for it before stopping so the
	// shutdown cannot outrun the tick.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := m.CurrentHealth(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no snapshot recorded by the first tick")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.StopHealth()
	if m.HealthRunning() {
		t.Fatal("loop still running after Stop")
	}
}
