package api

import (
	"fmt"
	"sort"

	"github.com/netsentry/netsentry/internal/health"
)

// DiagnosticHint is one human-readable insight about the connection's health.
// Title is a short chip label; Detail explains the problem and what to check
// in plain English.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label (≤ 5 words).
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint (e.g. loss %).
	Value *float64 `json:"value,omitempty"`
}

// DiagnosticsResponse is the payload for GET /api/v1/health/diagnostics.
type DiagnosticsResponse struct {
	Hints []DiagnosticHint `json:"hints"`
	Count int              `json:"count"`
}

// computeDiagnostics derives hints from the latest snapshot plus the trailing
// sample statistics. Hints are ordered: critical first, then warnings, then
// info.
func computeDiagnostics(snap *health.Snapshot, stats health.Stats, monitoring bool) []DiagnosticHint {
	// ── No data yet ──────────────────────────────────────────────────────────
	if snap == nil {
		detail := "No health snapshot has been computed yet. " +
			"Scores are calculated from batches of connectivity samples, so the first " +
			"one appears shortly after sampling begins. No action needed."
		if !monitoring {
			detail = "The sampling loop is not running, so there is nothing to diagnose. " +
				"Start it with POST /api/v1/monitor/start and check back after the first batch."
		}
		return []DiagnosticHint{{
			Key:    "warming_up",
			Level:  "info",
			Title:  "Warming up",
			Detail: detail,
		}}
	}

	// ── Internet unreachable ─────────────────────────────────────────────────
	if snap.UptimePct == 0 {
		return []DiagnosticHint{{
			Key:   "internet_unreachable",
			Level: "critical",
			Title: "No internet connection",
			Detail: "None of the reference hosts answered during the last check. " +
				"The local network may be up while the uplink is down. " +
				"Check the cable or wireless link to the router, then the router's WAN " +
				"status, and restart the router if both look fine. Until connectivity " +
				"returns, latency and loss figures describe a dead link.",
		}}
	}

	var hints []DiagnosticHint

	// ── Latency ──────────────────────────────────────────────────────────────
	if snap.LatencyMs >= 100 {
		v := snap.LatencyMs
		level, title := "warning", fmt.Sprintf("%.0f ms latency", v)
		if v >= 300 {
			level = "critical"
		}
		hints = append(hints, DiagnosticHint{
			Key: "high_latency", Level: level, Title: title, Value: &v,
			Detail: fmt.Sprintf(
				"Round trips to the reference host are averaging %.0f ms "+
					"(recent window: %.0f–%.0f ms). Interactive traffic feels sluggish "+
					"above 100 ms. Common causes: a saturated uplink from large "+
					"downloads or uploads, a congested wireless channel, or provider-side "+
					"queuing. Pause heavy transfers and compare, or test at a quieter hour.",
				v, stats.MinLatencyMs, stats.MaxLatencyMs),
		})
	}

	// ── Packet loss ──────────────────────────────────────────────────────────
	if snap.PacketLossPct > 0 {
		v := snap.PacketLossPct
		var level, title, detail string
		switch {
		case v >= 10:
			level = "critical"
			title = fmt.Sprintf("%.1f%% packet loss", v)
			detail = fmt.Sprintf(
				"%.1f%% of probes went unanswered. Loss at this level breaks calls "+
					"and stalls transfers. Check physical cabling and connectors first; "+
					"on wireless, move closer to the access point or switch to a wired "+
					"link to rule the radio path out.", v)
		case v >= 2:
			level = "warning"
			title = fmt.Sprintf("%.1f%% packet loss", v)
			detail = fmt.Sprintf(
				"%.1f%% of probes went unanswered. Occasional loss is normal on "+
					"wireless links, but a sustained rate above 2%% degrades real-time "+
					"traffic. Watch whether the number grows, and prefer a wired "+
					"connection for comparison.", v)
		default:
			level = "info"
			title = fmt.Sprintf("%.1f%% minor loss", v)
			detail = fmt.Sprintf(
				"A small amount of loss (%.1f%%) was observed. This is usually "+
					"harmless jitter in the sample batch, but keep an eye on it.", v)
		}
		hints = append(hints, DiagnosticHint{
			Key: "packet_loss", Level: level, Title: title, Detail: detail, Value: &v,
		})
	}

	// ── Jitter ───────────────────────────────────────────────────────────────
	if snap.JitterMs >= 50 {
		v := snap.JitterMs
		level := "warning"
		if v >= 120 {
			level = "critical"
		}
		hints = append(hints, DiagnosticHint{
			Key: "high_jitter", Level: level,
			Title: fmt.Sprintf("%.0f ms jitter", v), Value: &v,
			Detail: fmt.Sprintf(
				"Round-trip times are varying by %.0f ms between samples. High jitter "+
					"hurts calls and streaming more than raw latency does. It usually "+
					"points to a busy shared medium: reduce the number of active devices, "+
					"or enable traffic prioritisation (QoS) on the router.", v),
		})
	}

	// ── Uptime ───────────────────────────────────────────────────────────────
	if snap.UptimePct < 100 {
		v := snap.UptimePct
		level := "info"
		switch {
		case v < 70:
			level = "critical"
		case v < 90:
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key: "uptime", Level: level,
			Title: fmt.Sprintf("%.0f%% uptime", v), Value: &v,
			Detail: fmt.Sprintf(
				"The reference hosts were reachable on %.0f%% of recent checks. "+
					"Anything below 100%% means the uplink dropped at least once. A brief "+
					"dip is often a router or provider hiccup; a sustained dip indicates "+
					"an unstable link worth raising with the provider.", v),
		})
	}

	// ── Sample-level stability ───────────────────────────────────────────────
	if stats.TotalSamples >= 10 && stats.SuccessRate < 90 {
		v := stats.SuccessRate
		hints = append(hints, DiagnosticHint{
			Key: "unstable_link", Level: "warning",
			Title: fmt.Sprintf("%.0f%% probe success", v), Value: &v,
			Detail: fmt.Sprintf(
				"Only %d of the last %d connectivity probes succeeded (%.0f%%). "+
					"The current snapshot may look fine, but the trailing window shows "+
					"an unreliable link. Check for loose cabling, wireless interference, "+
					"or a router under memory pressure, and consider a firmware update.",
				stats.SuccessfulSamples, stats.TotalSamples, v),
		})
	}

	// ── All clear ────────────────────────────────────────────────────────────
	if len(hints) == 0 {
		score := float64(snap.Score)
		hints = append(hints, DiagnosticHint{
			Key: "healthy", Level: "ok", Title: "All clear", Value: &score,
			Detail: fmt.Sprintf(
				"The connection is healthy with a score of %.0f/100 (%s). "+
					"Latency, loss, jitter and uptime are all within normal bounds. "+
					"A sudden score drop is the earliest sign of trouble, so keep the "+
					"sampling loop running.",
				score, snap.Category),
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank(hints[i].Level) < levelRank(hints[j].Level)
	})
	return hints
}

func levelRank(level string) int {
	switch level {
	case "critical":
		return 0
	case "warning":
		return 1
	case "info":
		return 2
	default:
		return 3
	}
}
