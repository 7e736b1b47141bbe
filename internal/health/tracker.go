package health

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Capacity defaults. The sample ring is deliberately larger than the batch:
// the batch drives scoring, the ring feeds statistics.
const (
	DefaultWindowSize    = 60  // retained snapshots
	DefaultBatchSize     = 10  // samples per score evaluation
	DefaultSampleHistory = 300 // retained samples for statistics
	reachabilityWindow   = 20  // recent internet checks tracked for uptime
	DefaultInterval      = 5 * time.Second
)

// Tracker is the health scoring engine. It owns the bounded history window
// exclusively — it is the single writer, and every read hands out copies.
//
// The monitoring loop is a two-state machine: Idle until Start, Sampling
// until Stop. Start while sampling and Stop while idle are no-ops.
type Tracker struct {
	sampler *Sampler
	policy  Policy

	mu         sync.Mutex
	samples    *ring[Sample]
	batchSize  int
	reach      *ring[bool]
	window     *ring[Snapshot]
	hasCurrent bool
	current    Snapshot

	// OnSnapshot, when set before Start, is invoked after every appended
	// snapshot (outside the tracker lock). The alert engine hangs off it.
	OnSnapshot func(Snapshot)

	now func() time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTracker builds a Tracker. Zero windowSize or batchSize select defaults.
func NewTracker(sampler *Sampler, policy Policy, windowSize, batchSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Tracker{
		sampler:   sampler,
		policy:    policy,
		samples:   newRing[Sample](DefaultSampleHistory),
		batchSize: batchSize,
		reach:     newRing[bool](reachabilityWindow),
		window:    newRing[Snapshot](windowSize),
		now:       time.Now,
	}
}

// WithClock swaps the snapshot timestamp source.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// RecordSample appends one latency sample.
func (t *Tracker) RecordSample(s Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples.append(s)
}

// RecordReachability appends one internet-reachability outcome.
func (t *Tracker) RecordReachability(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reach.append(ok)
}

// ComputeScore evaluates the trailing sample batch, appends the resulting
// snapshot to the history window (evicting the oldest at capacity) and
// returns it.
func (t *Tracker) ComputeScore() Snapshot {
	t.mu.Lock()

	batch := t.samples.tail(t.batchSize)
	var rtts []float64
	for _, s := range batch {
		if !s.Lost {
			rtts = append(rtts, s.RTTMs())
		}
	}

	in := Input{UptimePct: t.uptimePctLocked()}
	snap := Snapshot{Timestamp: t.now()}

	if len(batch) > 0 {
		in.LossPct = float64(len(batch)-len(rtts)) / float64(len(batch)) * 100
	}
	if len(rtts) > 0 {
		in.HasLatency = true
		in.AvgLatencyMs = meanOf(rtts)
		in.JitterMs = stddevOf(rtts)
		snap.LatencyMs = round2(in.AvgLatencyMs)
		snap.JitterMs = round2(in.JitterMs)
	}

	score, breakdown := t.policy.Score(in)
	snap.Score = score
	snap.Category = CategoryFor(score)
	snap.PacketLossPct = round2(in.LossPct)
	snap.UptimePct = round2(in.UptimePct)
	snap.Breakdown = breakdown

	t.window.append(snap)
	t.current = snap
	t.hasCurrent = true
	hook := t.OnSnapshot
	t.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
	return snap
}

// Current returns the latest computed snapshot, if any.
func (t *Tracker) Current() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.hasCurrent
}

// History returns up to limit trailing snapshots, oldest first. limit <= 0
// returns the full window. The returned slice is a copy.
func (t *Tracker) History(limit int) []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window.tail(limit)
}

// WindowLen reports how many snapshots the history currently holds.
func (t *Tracker) WindowLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window.len()
}

// Statistics aggregates the trailing windowSize samples; windowSize <= 0 or
// larger than the recorded history silently clamps to what is available.
func (t *Tracker) Statistics(windowSize int) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := t.samples.tail(windowSize)
	st := Stats{TotalSamples: len(samples)}

	var rtts []float64
	for _, s := range samples {
		if !s.Lost {
			rtts = append(rtts, s.RTTMs())
		}
	}
	st.SuccessfulSamples = len(rtts)
	if len(samples) > 0 {
		st.SuccessRate = round2(float64(len(rtts)) / float64(len(samples)) * 100)
	}
	if len(rtts) == 0 {
		return st
	}

	min, max := rtts[0], rtts[0]
	for _, v := range rtts[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	st.AvgLatencyMs = round2(meanOf(rtts))
	st.MinLatencyMs = round2(min)
	st.MaxLatencyMs = round2(max)
	return st
}

// Start launches the periodic sampling loop. A second Start while the loop
// runs is a no-op. The loop is independently cancellable and never shares
// state with an in-flight discovery sweep.
func (t *Tracker) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.cancel != nil {
		slog.Debug("health: monitoring already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})

	slog.Info("health: monitoring started", "interval", interval)
	go t.run(ctx, interval)
}

// Stop halts the loop. The in-flight tick finishes; no new ticks are
// scheduled. Stop while idle is a no-op.
func (t *Tracker) Stop() {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil
	slog.Info("health: monitoring stopped")
}

// Running reports whether the sampling loop is active.
func (t *Tracker) Running() bool {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	return t.cancel != nil
}

func (t *Tracker) run(ctx context.Context, interval time.Duration) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Take an immediate first sample so the UI never waits a full interval.
	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	t.RecordSample(t.sampler.Sample(ctx))
	t.RecordReachability(t.sampler.InternetReachable(ctx))
	if ctx.Err() != nil {
		return
	}
	snap := t.ComputeScore()
	slog.Debug("health: snapshot",
		"score", snap.Score,
		"category", string(snap.Category),
		"latency_ms", snap.LatencyMs,
		"loss_pct", snap.PacketLossPct,
	)
}

func (t *Tracker) uptimePctLocked() float64 {
	checks := t.reach.tail(0)
	if len(checks) == 0 {
		return 100 // assume up before the first observation
	}
	var up int
	for _, ok := range checks {
		if ok {
			up++
		}
	}
	return float64(up) / float64(len(checks)) * 100
}

func meanOf(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// stddevOf is the sample standard deviation; one value has zero jitter.
func stddevOf(vs []float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	m := meanOf(vs)
	var ss float64
	for _, v := range vs {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vs)-1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
