package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"
)

// ErrUnavailable marks a probe capability that cannot run at all — missing
// raw-socket privilege, unsupported platform, no usable interface. Callers
// distinguish it from ordinary per-address failures, which only mean
// "unreachable".
var ErrUnavailable = errors.New("probe: capability unavailable")

// Strategy selects which probe primitive a discovery sweep uses.
type Strategy string

const (
	// StrategyAuto tries ARP first and falls back to ping for the rest of
	// the sweep when ARP reports unavailable.
	StrategyAuto Strategy = "auto"

	// StrategyARP probes with ARP requests only. Requires AF_PACKET access.
	StrategyARP Strategy = "arp"

	// StrategyPing probes with echo-style reachability checks only.
	StrategyPing Strategy = "ping"
)

// ParseStrategy converts a config string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyAuto, StrategyARP, StrategyPing:
		return Strategy(s), nil
	case "":
		return StrategyAuto, nil
	default:
		return "", fmt.Errorf("probe: unknown strategy %q", s)
	}
}

// Result is the outcome of one successful reachability probe.
type Result struct {
	Addr netip.Addr

	// RTT is the measured round trip of the probe.
	RTT time.Duration

	// HardwareAddr is set when the probe method learns the target's MAC
	// (ARP). Nil otherwise.
	HardwareAddr net.HardwareAddr
}

// Prober performs a single reachability/latency measurement against one
// address. A nil error means the address responded. An error wrapping
// ErrUnavailable means the capability itself cannot run; any other error
// means this one address is unreachable and the sweep continues.
type Prober interface {
	Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) (Result, error)
	Close() error
}

// deadlineFor combines the per-probe timeout with the context deadline,
// whichever ends first.
func deadlineFor(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		d = cd
	}
	return d
}
