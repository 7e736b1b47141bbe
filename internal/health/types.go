package health

import "time"

// Sample is one latency/loss measurement. Immutable once recorded; a lost
// sample carries no round trip — loss is data, not an exception.
type Sample struct {
	Timestamp time.Time     `json:"timestamp"`
	RTT       time.Duration `json:"rtt"`
	Lost      bool          `json:"lost"`
	Seq       int           `json:"sequence"`
}

// RTTMs returns the round trip in milliseconds.
func (s Sample) RTTMs() float64 {
	return float64(s.RTT) / float64(time.Millisecond)
}

// Snapshot is one immutable computed health record.
type Snapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	Score         int       `json:"score"`
	Category      Category  `json:"category"`
	LatencyMs     float64   `json:"latency_ms"`
	PacketLossPct float64   `json:"packet_loss_percent"`
	JitterMs      float64   `json:"jitter_ms"`
	UptimePct     float64   `json:"uptime_percent"`
	Breakdown     Breakdown `json:"breakdown"`
}

// Stats aggregates recorded samples over a trailing window.
type Stats struct {
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
	MinLatencyMs      float64 `json:"min_latency_ms"`
	MaxLatencyMs      float64 `json:"max_latency_ms"`
	SuccessRate       float64 `json:"success_rate"`
	TotalSamples      int     `json:"total_samples"`
	SuccessfulSamples int     `json:"successful_samples"`
}
