// Package health converts noisy, intermittently failing latency samples into
// a stable, bounded, historically aware quality signal.
//
// score.go holds the pure policy-table scoring: four weighted components
// (latency 40%, packet loss 30%, jitter 20%, uptime 10%) on piecewise-linear
// curves, mapped to an integer 0–100 and an Excellent/Good/Fair/Poor band.
//
// tracker.go is the stateful engine: it is the sole writer to a fixed-capacity
// snapshot ring, evaluates a trailing sample batch per tick and runs the
// optional periodic sampling loop (Idle ⇄ Sampling, idempotent Start/Stop).
// Readers always receive copies, never live references.
//
// sampler.go issues the probes: one echo-style measurement per tick against a
// reference host, plus a parallel TCP dial across redundant public resolvers
// for the internet-reachability bit.
package health
