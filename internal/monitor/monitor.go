package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
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

// ErrSweepInProgress is returned when a sweep is requested while another one
// is still running. Sweeps are serialized; callers retry after the current
// one finishes.
var ErrSweepInProgress = errors.New("monitor: sweep already in progress")

// WifiScanner is what Monitor needs from the wireless layer. Satisfied by
// *wifi.Scanner; injectable for tests.
type WifiScanner interface {
	Scan(ctx context.Context, timeout time.Duration) ([]wifi.Network, error)
}

// Monitor is the orchestration layer tying discovery, wireless scanning,
// health tracking and alerting together behind one API. The HTTP handlers
// and the WebSocket hub only ever talk to a Monitor.
type Monitor struct {
	enum    *netrange.Enumerator
	engine  *discovery.Engine
	scanner WifiScanner
	tracker *health.Tracker
	alerts  *alerts.Engine
	store   *store.Store

	cfgMu sync.RWMutex
	cfg   *config.Config

	sweepMu  sync.Mutex
	sweeping bool

	listenerMu sync.RWMutex
	listeners  []func(health.Snapshot)
}

// New wires the subsystems together. The tracker's snapshot hook is claimed
// here: every computed snapshot feeds the alert engine and any listeners
// registered with AddListener.
func New(cfg *config.Config, enum *netrange.Enumerator, engine *discovery.Engine,
	scanner WifiScanner, tracker *health.Tracker, alertEngine *alerts.Engine, st *store.Store) *Monitor {

	m := &Monitor{
		enum:    enum,
		engine:  engine,
		scanner: scanner,
		tracker: tracker,
		alerts:  alertEngine,
		store:   st,
		cfg:     cfg,
	}
	tracker.OnSnapshot = m.onSnapshot
	return m
}

func (m *Monitor) onSnapshot(snap health.Snapshot) {
	m.alerts.Evaluate(snap)

	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()
	for _, fn := range m.listeners {
		fn(snap)
	}
}

// AddListener registers a callback invoked on every new health snapshot.
// Callbacks run on the sampling goroutine and must not block.
func (m *Monitor) AddListener(fn func(health.Snapshot)) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// ApplyConfig installs a new configuration for future operations. A running
// sampling loop is restarted when the interval changed.
func (m *Monitor) ApplyConfig(cfg *config.Config) {
	m.cfgMu.Lock()
	prev := m.cfg
	m.cfg = cfg
	m.cfgMu.Unlock()

	if m.tracker.Running() && prev.Health.Interval != cfg.Health.Interval {
		slog.Info("monitor: sample interval changed, restarting loop",
			"interval", cfg.Health.Interval)
		m.tracker.Stop()
		m.tracker.Start(cfg.Health.Interval)
	}
}

func (m *Monitor) config() *config.Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// SweepRequest optionally overrides the configured range and strategy for
// one sweep. Empty fields keep the configuration's values.
type SweepRequest struct {
	Range    string
	Strategy string
}

// Sweep runs one device discovery pass and publishes the result. Only one
// sweep runs at a time.
func (m *Monitor) Sweep(ctx context.Context, req SweepRequest) ([]discovery.Device, discovery.Summary, error) {
	m.sweepMu.Lock()
	if m.sweeping {
		m.sweepMu.Unlock()
		return nil, discovery.Summary{}, ErrSweepInProgress
	}
	m.sweeping = true
	m.sweepMu.Unlock()

	defer func() {
		m.sweepMu.Lock()
		m.sweeping = false
		m.sweepMu.Unlock()
	}()

	cfg := m.config()
	rangeSpec := cfg.Scan.Range
	if req.Range != "" {
		rangeSpec = req.Range
	}
	strategySpec := cfg.Scan.Strategy
	if req.Strategy != "" {
		strategySpec = req.Strategy
	}

	prefix, err := m.enum.Resolve(rangeSpec)
	if err != nil {
		return nil, discovery.Summary{}, err
	}
	strategy, err := probe.ParseStrategy(strategySpec)
	if err != nil {
		return nil, discovery.Summary{}, err
	}

	devices, sum, err := m.engine.Discover(ctx, discovery.Options{
		Range:        prefix,
		Strategy:     strategy,
		MaxAddresses: cfg.Scan.MaxHosts,
		Concurrency:  cfg.Scan.Concurrency,
		ProbeTimeout: cfg.Scan.ProbeTimeout,
		SweepTimeout: cfg.Scan.SweepTimeout,
	})
	if err != nil {
		return nil, discovery.Summary{}, err
	}

	m.store.PutSweep(devices, sum)
	return devices, sum, nil
}

// LastSweep returns the most recently published sweep, if any.
func (m *Monitor) LastSweep() (store.SweepRecord, bool) {
	return m.store.LastSweep()
}

// ScanWireless enumerates nearby networks and publishes the outcome. A
// missing platform tool publishes an "unavailable" record and returns
// wifi.ErrUnavailable to the caller.
func (m *Monitor) ScanWireless(ctx context.Context) ([]wifi.Network, error) {
	nets, err := m.scanner.Scan(ctx, m.config().Wifi.Timeout)
	if err != nil {
		if errors.Is(err, wifi.ErrUnavailable) {
			m.store.PutWifi(nil, true)
		}
		return nil, err
	}
	m.store.PutWifi(nets, false)
	return nets, nil
}

// LastWifi returns the most recently published wireless scan, if any.
func (m *Monitor) LastWifi() (store.WifiRecord, bool) {
	return m.store.LastWifi()
}

// StartHealth launches periodic connectivity sampling. A non-positive
// interval uses the configured one. Starting an already running loop is a
// no-op.
func (m *Monitor) StartHealth(interval time.Duration) {
	if interval <= 0 {
		interval = m.config().Health.Interval
	}
	m.tracker.Start(interval)
}

// StopHealth halts sampling. Recorded history stays queryable.
func (m *Monitor) StopHealth() {
	m.tracker.Stop()
}

// HealthRunning reports whether the sampling loop is active.
func (m *Monitor) HealthRunning() bool {
	return m.tracker.Running()
}

// CurrentHealth returns the latest snapshot, if one has been computed.
func (m *Monitor) CurrentHealth() (health.Snapshot, bool) {
	return m.tracker.Current()
}

// HealthHistory returns up to limit trailing snapshots, oldest first.
func (m *Monitor) HealthHistory(limit int) []health.Snapshot {
	return m.tracker.History(limit)
}

// HealthStatistics aggregates the trailing windowSize samples.
func (m *Monitor) HealthStatistics(windowSize int) health.Stats {
	return m.tracker.Statistics(windowSize)
}

// ActiveAlerts returns firing alerts plus the recently resolved ones.
func (m *Monitor) ActiveAlerts() []*alerts.Alert {
	return m.alerts.Active()
}
