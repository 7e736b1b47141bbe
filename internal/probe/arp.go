package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/mdlayher/arp"
)

// ARPProber resolves addresses with ARP requests on one interface. ARP is the
// fastest and most reliable way to find LAN hosts, but opening the AF_PACKET
// socket requires elevated privilege — construction fails with ErrUnavailable
// when that privilege is missing, which is the signal the discovery engine
// uses to fall back to ping for the rest of a sweep.
type ARPProber struct {
	ifi *net.Interface

	// The arp.Client multiplexes one packet socket; probes serialize on mu
	// so replies cannot be attributed to the wrong request.
	mu sync.Mutex
	c  *arp.Client
}

// NewARP opens an ARP client on the named interface, or on the first up,
// non-loopback interface carrying an IPv4 address when name is empty.
func NewARP(name string) (*ARPProber, error) {
	ifi, err := pickInterface(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c, err := arp.Dial(ifi)
	if err != nil {
		// Typically EPERM without CAP_NET_RAW, or an unsupported platform.
		return nil, fmt.Errorf("%w: arp dial on %s: %v", ErrUnavailable, ifi.Name, err)
	}

	slog.Debug("probe: arp client ready", "interface", ifi.Name)
	return &ARPProber{ifi: ifi, c: c}, nil
}

// Probe sends an ARP request for addr and waits for the reply.
func (p *ARPProber) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{Addr: addr}, err
	}
	if err := p.c.SetDeadline(deadlineFor(ctx, timeout)); err != nil {
		return Result{Addr: addr}, fmt.Errorf("%w: arp set deadline: %v", ErrUnavailable, err)
	}

	start := time.Now()
	hw, err := p.c.Resolve(addr)
	if err != nil {
		return Result{Addr: addr}, fmt.Errorf("arp resolve %s: %w", addr, err)
	}
	return Result{Addr: addr, RTT: time.Since(start), HardwareAddr: hw}, nil
}

// Close releases the packet socket.
func (p *ARPProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.c.Close()
}

func pickInterface(name string) (*net.Interface, error) {
	if name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("interface %q: %w", name, err)
		}
		return ifi, nil
	}

	ifis, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for i := range ifis {
		ifi := &ifis[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && ipn.IP.To4() != nil {
				return ifi, nil
			}
		}
	}
	return nil, fmt.Errorf("no up interface with an IPv4 address")
}
