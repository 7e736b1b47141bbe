package probe

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ianaProtocolICMP is the IPv4 ICMP protocol number passed to icmp.ParseMessage.
const ianaProtocolICMP = 1

var echoPayload = []byte("netsentry echo probe")

// Pinger sends ICMP echo requests. It prefers the unprivileged datagram ICMP
// socket (available on Linux when ping_group_range covers the process) and
// falls back to a raw socket when the process is privileged. If neither
// socket can be opened, construction fails with ErrUnavailable.
type Pinger struct {
	network string // "udp4" or "ip4:icmp"
	id      int
	seq     atomic.Uint32
}

// NewPinger verifies an ICMP socket can be opened and returns a Pinger.
func NewPinger() (*Pinger, error) {
	for _, network := range []string{"udp4", "ip4:icmp"} {
		c, err := icmp.ListenPacket(network, "0.0.0.0")
		if err == nil {
			c.Close()
			return &Pinger{network: network, id: os.Getpid() & 0xffff}, nil
		}
	}
	return nil, fmt.Errorf("%w: no ICMP socket (need CAP_NET_RAW or ping_group_range)", ErrUnavailable)
}

// Probe sends one echo request to addr and waits for the matching reply.
// Each probe opens its own socket so concurrent workers never contend for
// reply demultiplexing.
func (p *Pinger) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) (Result, error) {
	conn, err := icmp.ListenPacket(p.network, "0.0.0.0")
	if err != nil {
		return Result{Addr: addr}, fmt.Errorf("%w: icmp listen: %v", ErrUnavailable, err)
	}
	defer conn.Close()

	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{ID: p.id, Seq: seq, Data: echoPayload},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return Result{Addr: addr}, fmt.Errorf("ping %s: marshal echo: %w", addr, err)
	}

	ip := net.IP(addr.AsSlice())
	var dst net.Addr = &net.UDPAddr{IP: ip}
	if p.network == "ip4:icmp" {
		dst = &net.IPAddr{IP: ip}
	}

	deadline := deadlineFor(ctx, timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return Result{Addr: addr}, fmt.Errorf("ping %s: set deadline: %w", addr, err)
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, dst); err != nil {
		return Result{Addr: addr}, fmt.Errorf("ping %s: write: %w", addr, err)
	}

	rb := make([]byte, 1500)
	for {
		if err := ctx.Err(); err != nil {
			return Result{Addr: addr}, err
		}
		n, _, err := conn.ReadFrom(rb)
		if err != nil {
			return Result{Addr: addr}, fmt.Errorf("ping %s: %w", addr, err)
		}
		m, err := icmp.ParseMessage(ianaProtocolICMP, rb[:n])
		if err != nil || m.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		echo, ok := m.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			// Stray reply for another probe on a raw socket.
			continue
		}
		return Result{Addr: addr, RTT: time.Since(start)}, nil
	}
}

// Close is a no-op; sockets are per-probe.
func (p *Pinger) Close() error { return nil }
