// Package probe implements the single-address reachability primitives the
// discovery engine and connectivity sampler are built on.
//
// Three Prober implementations cover the degradation ladder: ARP requests
// (fast, MAC-yielding, privileged), ICMP echo (unprivileged where
// ping_group_range allows, raw socket otherwise), and TCP connect scans of
// common ports (always available). Every implementation reports the missing
// capability case with an error wrapping ErrUnavailable so callers can
// downgrade once instead of failing per address.
package probe
