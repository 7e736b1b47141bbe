package alerts

import (
	"strconv"
	"strings"

	"github.com/netsentry/netsentry/internal/health"
)

// evalCondition evaluates a rule condition string against a health snapshot.
//
// Supported expressions (field operator value):
//
//	score < 40
//	latency_ms > 200
//	packet_loss > 20
//	jitter_ms > 50
//	uptime_pct < 90
//	category == Poor
//
// Returns (fires bool, triggering value float64). Returns (false, 0) if the
// expression cannot be parsed or the field is unknown.
func evalCondition(cond string, snap health.Snapshot) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "category" {
		if op == "==" {
			return string(snap.Category) == rhs, float64(snap.Score)
		}
		return false, 0
	}

	v, ok := numericField(field, snap)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the snapshot.
func numericField(field string, snap health.Snapshot) (float64, bool) {
	switch field {
	case "score":
		return float64(snap.Score), true
	case "latency_ms":
		return snap.LatencyMs, true
	case "packet_loss":
		return snap.PacketLossPct, true
	case "jitter_ms":
		return snap.JitterMs, true
	case "uptime_pct":
		return snap.UptimePct, true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
