// Package netrange resolves the candidate sweep range (explicit CIDR,
// derived /24, or the fixed fallback network) and enumerates its host
// addresses with a hard cap.
package netrange

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"
)

// FallbackPrefix is probed when the local outbound address cannot be
// determined. Discovery proceeds with a best-effort guess rather than abort.
var FallbackPrefix = netip.MustParsePrefix("192.168.1.0/24")

// ErrInvalidRange is returned when an explicitly supplied range does not
// parse as an IPv4 CIDR. It is a whole-operation precondition failure —
// nothing is probed after it.
var ErrInvalidRange = errors.New("netrange: invalid CIDR range")

// LocalAddrFunc reports the machine's outbound IPv4 address. It exists as an
// injection point so tests control interface state without touching sockets.
type LocalAddrFunc func() (netip.Addr, error)

// Enumerator derives the candidate address range for a discovery sweep.
type Enumerator struct {
	localAddr LocalAddrFunc
}

// New returns an Enumerator backed by a real outbound-interface query.
func New() *Enumerator {
	return &Enumerator{localAddr: OutboundIPv4}
}

// NewWithLocalAddr returns an Enumerator using fn to discover the local address.
func NewWithLocalAddr(fn LocalAddrFunc) *Enumerator {
	return &Enumerator{localAddr: fn}
}

// Resolve returns the range to sweep.
//
// If explicit is non-empty it must be a valid IPv4 CIDR and is returned
// masked; a malformed value is rejected with ErrInvalidRange before any
// probing starts. When explicit is empty the /24 containing the local
// outbound address is derived. Failure to determine a local address is not an
// error — the fixed fallback network is returned instead.
func (e *Enumerator) Resolve(explicit string) (netip.Prefix, error) {
	if explicit != "" {
		p, err := netip.ParsePrefix(explicit)
		if err != nil || !p.Addr().Is4() {
			return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidRange, explicit)
		}
		return p.Masked(), nil
	}

	addr, err := e.localAddr()
	if err != nil {
		slog.Warn("netrange: local address unknown, using fallback range",
			"fallback", FallbackPrefix.String(), "err", err)
		return FallbackPrefix, nil
	}

	p, err := addr.Prefix(24)
	if err != nil {
		slog.Warn("netrange: cannot derive /24, using fallback range",
			"addr", addr.String(), "err", err)
		return FallbackPrefix, nil
	}
	return p, nil
}

// OutboundIPv4 discovers the local IPv4 address used for internet-bound
// traffic by opening a UDP socket toward a public resolver. No packet is
// actually sent — connect on UDP only selects a route.
func OutboundIPv4() (netip.Addr, error) {
	conn, err := net.DialTimeout("udp4", "8.8.8.8:80", 2*time.Second)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("netrange: outbound probe: %w", err)
	}
	defer conn.Close()

	ua, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, fmt.Errorf("netrange: unexpected local addr %T", conn.LocalAddr())
	}
	addr := ua.AddrPort().Addr().Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("netrange: local addr %s is not IPv4", addr)
	}
	return addr, nil
}

// Hosts enumerates the usable host addresses of p in ascending order, capped
// at max. For prefixes shorter than /31 the network and broadcast addresses
// are skipped. When the range holds more than max hosts the list is capped
// and the cap is logged — an unbounded space is never probed silently.
func Hosts(p netip.Prefix, max int) []netip.Addr {
	p = p.Masked()
	if !p.Addr().Is4() {
		return nil
	}

	a4 := p.Addr().As4()
	base := binary.BigEndian.Uint32(a4[:])
	size := uint64(1) << (32 - p.Bits())

	var first, last uint64
	switch {
	case p.Bits() >= 31:
		first, last = uint64(base), uint64(base)+size-1
	default:
		first, last = uint64(base)+1, uint64(base)+size-2
	}

	total := int(last - first + 1)
	if max > 0 && total > max {
		slog.Info("netrange: capping sweep range",
			"range", p.String(), "hosts", total, "cap", max)
		total = max
	}

	out := make([]netip.Addr, 0, total)
	for i := 0; i < total; i++ {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(first)+uint32(i))
		out = append(out, netip.AddrFrom4(b))
	}
	return out
}
