package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netsentry/netsentry/internal/netrange"
	"github.com/netsentry/netsentry/internal/probe"
)

// Defaults applied when Options fields are zero.
const (
	DefaultMaxAddresses = 254
	DefaultConcurrency  = 30
	DefaultProbeTimeout = time.Second
	DefaultSweepTimeout = 2 * time.Minute

	// hostnameTimeout bounds the opportunistic reverse lookup per device.
	hostnameTimeout = 500 * time.Millisecond
)

// Device is one reachable host found by a sweep. A sweep produces a fresh
// immutable snapshot; devices are not tracked across sweeps beyond address
// equality.
type Device struct {
	Addr         netip.Addr `json:"address"`
	HardwareAddr string     `json:"physical_address,omitempty"`
	Hostname     string     `json:"hostname,omitempty"`
	Reachable    bool       `json:"reachable"`
	LastSeen     time.Time  `json:"last_seen"`
}

// Summary describes one completed (or deadline-truncated) sweep.
type Summary struct {
	Session         string         `json:"session"`
	AddressesProbed int            `json:"addresses_probed"`
	Responded       int            `json:"responded"`
	StrategyUsed    probe.Strategy `json:"strategy_used"`
	Elapsed         time.Duration  `json:"elapsed"`
	Truncated       bool           `json:"truncated"`
}

// Options configures a single sweep.
type Options struct {
	Range        netip.Prefix
	Strategy     probe.Strategy
	MaxAddresses int
	Concurrency  int
	ProbeTimeout time.Duration
	SweepTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.Strategy == "" {
		o.Strategy = probe.StrategyAuto
	}
	if o.MaxAddresses <= 0 {
		o.MaxAddresses = DefaultMaxAddresses
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	if o.SweepTimeout <= 0 {
		o.SweepTimeout = DefaultSweepTimeout
	}
}

// HostResolver is the reverse-DNS collaborator. Injectable for tests.
type HostResolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Engine sweeps a candidate range with a bounded worker pool and returns a
// sorted, deduplicated device snapshot.
//
// The arp prober may be nil when the privilege was missing at startup; the
// engine then treats every Auto sweep as ping-only from the start.
type Engine struct {
	arp      probe.Prober
	ping     probe.Prober
	resolver HostResolver
	now      func() time.Time
}

// New returns an Engine probing with the given ARP and ping capabilities.
func New(arp, ping probe.Prober) *Engine {
	return &Engine{
		arp:      arp,
		ping:     ping,
		resolver: net.DefaultResolver,
		now:      time.Now,
	}
}

// NewWithResolver is New with an injected reverse-DNS collaborator and clock.
func NewWithResolver(arp, ping probe.Prober, r HostResolver, now func() time.Time) *Engine {
	e := New(arp, ping)
	if r != nil {
		e.resolver = r
	}
	if now != nil {
		e.now = now
	}
	return e
}

// Discover runs one sweep over opts.Range.
//
// Zero responders is not an error: the returned slice is empty and the
// summary still reports how many addresses were probed. The only errors are
// whole-operation preconditions — an unusable range or a strategy whose
// capability is entirely missing. When the sweep deadline passes, the results
// collected so far are returned with Summary.Truncated set.
func (e *Engine) Discover(ctx context.Context, opts Options) ([]Device, Summary, error) {
	opts.applyDefaults()

	sum := Summary{
		Session:      uuid.NewString(),
		StrategyUsed: opts.Strategy,
	}

	if !opts.Range.IsValid() || !opts.Range.Addr().Is4() {
		return nil, sum, fmt.Errorf("discovery: unusable range %v", opts.Range)
	}

	sel, err := e.newSelector(opts.Strategy)
	if err != nil {
		return nil, sum, err
	}

	hosts := netrange.Hosts(opts.Range, opts.MaxAddresses)
	sum.AddressesProbed = len(hosts)

	ctx, cancel := context.WithTimeout(ctx, opts.SweepTimeout)
	defer cancel()

	start := e.now()
	slog.Info("discovery: sweep starting",
		"session", sum.Session,
		"range", opts.Range.String(),
		"hosts", len(hosts),
		"strategy", string(opts.Strategy),
		"concurrency", opts.Concurrency,
	)

	jobs := make(chan netip.Addr)
	results := make(chan Device)

	var wg sync.WaitGroup
	workers := opts.Concurrency
	if workers > len(hosts) {
		workers = len(hosts)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for addr := range jobs {
				dev, ok := e.probeOne(ctx, sel, addr, opts.ProbeTimeout)
				if !ok {
					continue
				}
				select {
				case results <- dev:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, addr := range hosts {
			select {
			case jobs <- addr:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	devices := make([]Device, 0)
	for dev := range results {
		devices = append(devices, dev)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Addr.Compare(devices[j].Addr) < 0
	})

	sum.Responded = len(devices)
	sum.StrategyUsed = sel.used()
	sum.Elapsed = e.now().Sub(start)
	sum.Truncated = errors.Is(ctx.Err(), context.DeadlineExceeded)

	slog.Info("discovery: sweep finished",
		"session", sum.Session,
		"responded", sum.Responded,
		"strategy_used", string(sum.StrategyUsed),
		"elapsed", sum.Elapsed,
		"truncated", sum.Truncated,
	)
	return devices, sum, nil
}

// probeOne probes a single address through the selector and, on success,
// opportunistically resolves its hostname. Resolution failure leaves the
// hostname empty and never marks the device unreachable.
func (e *Engine) probeOne(ctx context.Context, sel *selector, addr netip.Addr, timeout time.Duration) (Device, bool) {
	res, err := sel.probe(ctx, addr, timeout)
	if err != nil {
		return Device{}, false
	}

	dev := Device{
		Addr:      res.Addr,
		Reachable: true,
		LastSeen:  e.now(),
	}
	if res.HardwareAddr != nil {
		dev.HardwareAddr = res.HardwareAddr.String()
	}

	hctx, cancel := context.WithTimeout(ctx, hostnameTimeout)
	defer cancel()
	if names, err := e.resolver.LookupAddr(hctx, addr.String()); err == nil && len(names) > 0 {
		dev.Hostname = strings.TrimSuffix(names[0], ".")
	}
	return dev, true
}

// selector holds the sweep's probe strategy. The privileged→unprivileged
// downgrade happens at most once per sweep so every address after the first
// failure is probed the same way.
type selector struct {
	mu       sync.Mutex
	current  probe.Prober
	strategy probe.Strategy
	fallback probe.Prober // nil once consumed or when none exists
}

func (e *Engine) newSelector(s probe.Strategy) (*selector, error) {
	if e.ping == nil {
		return nil, fmt.Errorf("discovery: %w: no ping capability wired", probe.ErrUnavailable)
	}
	switch s {
	case probe.StrategyARP:
		if e.arp == nil {
			return nil, fmt.Errorf("discovery: arp-only sweep: %w", probe.ErrUnavailable)
		}
		return &selector{current: e.arp, strategy: probe.StrategyARP}, nil
	case probe.StrategyPing:
		return &selector{current: e.ping, strategy: probe.StrategyPing}, nil
	default: // auto
		if e.arp == nil {
			slog.Info("discovery: arp unavailable at startup, sweeping ping-only")
			return &selector{current: e.ping, strategy: probe.StrategyPing}, nil
		}
		return &selector{current: e.arp, strategy: probe.StrategyARP, fallback: e.ping}, nil
	}
}

func (s *selector) probe(ctx context.Context, addr netip.Addr, timeout time.Duration) (probe.Result, error) {
	s.mu.Lock()
	p := s.current
	s.mu.Unlock()

	res, err := p.Probe(ctx, addr, timeout)
	if err == nil || !errors.Is(err, probe.ErrUnavailable) {
		return res, err
	}

	s.mu.Lock()
	if s.fallback != nil {
		slog.Warn("discovery: probe capability unavailable, falling back to ping for this sweep",
			"err", err)
		s.current = s.fallback
		s.strategy = probe.StrategyPing
		s.fallback = nil
	}
	p = s.current
	s.mu.Unlock()

	return p.Probe(ctx, addr, timeout)
}

func (s *selector) used() probe.Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}
