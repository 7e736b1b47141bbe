package health

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netsentry/netsentry/internal/probe"
)

// DefaultReferences are the redundant hosts used for the cheap internet
// reachability check. Any one answering means the uplink works.
var DefaultReferences = []string{
	"8.8.8.8:53",         // Google DNS
	"1.1.1.1:53",         // Cloudflare DNS
	"208.67.222.222:53",  // OpenDNS
}

const (
	DefaultSampleTimeout = 2 * time.Second
	referenceDialTimeout = 2 * time.Second
)

// DialFunc is the connection collaborator behind InternetReachable.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Sampler issues latency probes against a reference target and quick
// internet-reachability checks. Ordinary network failure is recorded as a
// loss sample, never returned as an error.
type Sampler struct {
	prober     probe.Prober
	target     netip.Addr
	timeout    time.Duration
	references []string
	dial       DialFunc
	now        func() time.Time
	seq        atomic.Uint32
}

// NewSampler builds a Sampler probing target through p.
func NewSampler(p probe.Prober, target netip.Addr, timeout time.Duration, references []string) *Sampler {
	if timeout <= 0 {
		timeout = DefaultSampleTimeout
	}
	if len(references) == 0 {
		references = DefaultReferences
	}
	var d net.Dialer
	return &Sampler{
		prober:     p,
		target:     target,
		timeout:    timeout,
		references: references,
		dial:       d.DialContext,
		now:        time.Now,
	}
}

// WithDialer swaps the reachability dialer. Tests use this to avoid the network.
func (s *Sampler) WithDialer(dial DialFunc) *Sampler {
	s.dial = dial
	return s
}

// WithClock swaps the timestamp source.
func (s *Sampler) WithClock(now func() time.Time) *Sampler {
	s.now = now
	return s
}

// Sample issues one probe against the reference target. Timeout or
// unreachable yields a loss marker.
func (s *Sampler) Sample(ctx context.Context) Sample {
	seq := int(s.seq.Add(1))
	res, err := s.prober.Probe(ctx, s.target, s.timeout)
	if err != nil {
		slog.Debug("health: sample lost", "target", s.target.String(), "seq", seq, "err", err)
		return Sample{Timestamp: s.now(), Lost: true, Seq: seq}
	}
	return Sample{Timestamp: s.now(), RTT: res.RTT, Seq: seq}
}

// InternetReachable dials the reference hosts in parallel and reports whether
// any of them accepted. All references failing is a false, not an error.
func (s *Sampler) InternetReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, referenceDialTimeout)
	defer cancel()

	ok := make(chan struct{}, len(s.references))
	var wg sync.WaitGroup
	for _, ref := range s.references {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			conn, err := s.dial(ctx, "tcp", addr)
			if err != nil {
				return
			}
			conn.Close()
			select {
			case ok <- struct{}{}:
			default:
			}
			cancel() // one answer is enough
		}(ref)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ok:
		return true
	case <-done:
		select {
		case <-ok:
			return true
		default:
			return false
		}
	}
}
