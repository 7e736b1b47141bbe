package probe

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"
)

// defaultTCPPorts are services common enough on LAN hosts that an open
// connection to any one of them counts as "reachable".
var defaultTCPPorts = []uint16{80, 443, 22, 53, 445, 8080, 3389, 5000, 62078}

// TCPProber detects hosts by attempting TCP connections to a short list of
// common ports. It needs no privilege at all, which makes it the probe of
// last resort when both ARP and ICMP are unavailable. Hosts that firewall
// every listed port are invisible to it.
type TCPProber struct {
	ports []uint16
}

// NewTCP returns a TCPProber over the given ports, or the default port list
// when none are given.
func NewTCP(ports ...uint16) *TCPProber {
	if len(ports) == 0 {
		ports = defaultTCPPorts
	}
	return &TCPProber{ports: ports}
}

// Probe tries each port in turn until one accepts or timeout is spent.
// The RTT reported is the connect time of the first successful dial.
func (p *TCPProber) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) (Result, error) {
	perPort := timeout / time.Duration(len(p.ports))
	if perPort < 50*time.Millisecond {
		perPort = 50 * time.Millisecond
	}

	deadline := deadlineFor(ctx, timeout)
	for _, port := range p.ports {
		if err := ctx.Err(); err != nil {
			return Result{Addr: addr}, err
		}
		if !time.Now().Before(deadline) {
			break
		}

		d := net.Dialer{Timeout: perPort, Deadline: deadline}
		start := time.Now()
		conn, err := d.DialContext(ctx, "tcp", netip.AddrPortFrom(addr, port).String())
		if err == nil {
			conn.Close()
			return Result{Addr: addr, RTT: time.Since(start)}, nil
		}
	}
	return Result{Addr: addr}, fmt.Errorf("tcp probe %s: no listed port open", addr)
}

// Close is a no-op.
func (p *TCPProber) Close() error { return nil }
