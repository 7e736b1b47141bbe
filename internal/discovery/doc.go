// Package discovery sweeps a candidate address range with a bounded worker
// pool and publishes an immutable, address-sorted device snapshot per sweep.
//
// Strategy handling follows a two-state selector: a sweep starts on the
// preferred (ARP) prober and downgrades to ping exactly once when the
// capability reports unavailable, so every address within one sweep is probed
// consistently. Individual probe failures are recorded as "unreachable" and
// never abort the sweep; an expired sweep deadline yields the partial result
// rather than discarding it.
package discovery
