package api

import (
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// metrics serves GET /metrics in Prometheus text exposition format. The
// families are built on demand from the monitor's current state; there is no
// registry because every value is already tracked elsewhere.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var families []*dto.MetricFamily

	if snap, ok := h.mon.CurrentHealth(); ok {
		families = append(families,
			gauge("netsentry_health_score", "Composite network health score (0-100).", float64(snap.Score)),
			gauge("netsentry_latency_ms", "Average round-trip latency over the last sample batch.", snap.LatencyMs),
			gauge("netsentry_packet_loss_pct", "Packet loss percentage over the last sample batch.", snap.PacketLossPct),
			gauge("netsentry_jitter_ms", "Latency standard deviation over the last sample batch.", snap.JitterMs),
			gauge("netsentry_uptime_pct", "Internet reachability percentage over recent checks.", snap.UptimePct),
		)
	}

	monitoring := 0.0
	if h.mon.HealthRunning() {
		monitoring = 1
	}
	families = append(families,
		gauge("netsentry_monitoring", "Whether the sampling loop is running (1 = yes).", monitoring))

	if rec, ok := h.mon.LastSweep(); ok {
		families = append(families,
			gauge("netsentry_devices", "Devices found by the most recent sweep.", float64(rec.Summary.Responded)),
			gauge("netsentry_sweep_age_seconds", "Seconds since the last completed sweep.",
				time.Since(rec.UpdatedAt).Seconds()))
	}

	families = append(families,
		gauge("netsentry_active_alerts", "Currently firing or recently resolved alerts.",
			float64(len(h.mon.ActiveAlerts()))))

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}

func gauge(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: proto.Float64(value)}},
		},
	}
}
