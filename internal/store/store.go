package store

import (
	"sync"
	"time"

	"github.com/netsentry/netsentry/internal/discovery"
	"github.com/netsentry/netsentry/internal/wifi"
)

// SweepRecord is the published result of the most recent discovery sweep.
type SweepRecord struct {
	Devices   []discovery.Device `json:"devices"`
	Summary   discovery.Summary  `json:"summary"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// WifiRecord is the published result of the most recent wireless scan.
// Unavailable records that the platform tool was missing, which readers must
// keep distinct from "zero networks nearby".
type WifiRecord struct {
	Networks    []wifi.Network `json:"networks"`
	Unavailable bool           `json:"unavailable"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Store holds the latest published scan results. It is the hand-off point
// between on-demand scans and the read-only API/WS surface: writers publish
// complete records, readers always receive copies.
type Store struct {
	mu    sync.RWMutex
	sweep *SweepRecord
	wifi  *WifiRecord
	now   func() time.Time // injectable for deterministic tests
}

// New creates an empty Store.
func New() *Store {
	return &Store{now: time.Now}
}

// WithClock swaps the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// PutSweep publishes a completed sweep.
func (s *Store) PutSweep(devices []discovery.Device, sum discovery.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep = &SweepRecord{
		Devices:   append([]discovery.Device(nil), devices...),
		Summary:   sum,
		UpdatedAt: s.now(),
	}
}

// LastSweep returns a copy of the latest sweep, if one has been published.
func (s *Store) LastSweep() (SweepRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sweep == nil {
		return SweepRecord{}, false
	}
	rec := *s.sweep
	rec.Devices = append([]discovery.Device(nil), s.sweep.Devices...)
	return rec, true
}

// PutWifi publishes a wireless scan outcome.
func (s *Store) PutWifi(networks []wifi.Network, unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wifi = &WifiRecord{
		Networks:    append([]wifi.Network(nil), networks...),
		Unavailable: unavailable,
		UpdatedAt:   s.now(),
	}
}

// LastWifi returns a copy of the latest wireless scan, if any.
func (s *Store) LastWifi() (WifiRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.wifi == nil {
		return WifiRecord{}, false
	}
	rec := *s.wifi
	rec.Networks = append([]wifi.Network(nil), s.wifi.Networks...)
	return rec, true
}

// SweepAge reports how long ago the last sweep was published.
func (s *Store) SweepAge() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sweep == nil {
		return 0, false
	}
	return s.now().Sub(s.sweep.UpdatedAt), true
}
