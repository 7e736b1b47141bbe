package health

import (
	"math"
	"testing"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestScore_PerfectBatch(t *testing.T) {
	p := DefaultPolicy()
	score, b := p.Score(Input{
		AvgLatencyMs: 15,
		JitterMs:     0,
		HasLatency:   true,
		LossPct:      0,
		UptimePct:    100,
	})
	if score != 100 {
		t.Errorf("Score = %d, want 100 (15ms, no loss, no jitter, full uptime)", score)
	}
	if CategoryFor(score) != CategoryExcellent {
		t.Errorf("Category = %q, want Excellent", CategoryFor(score))
	}
	if b.LatencyScore != 100 || b.JitterScore != 100 || b.LossScore != 100 || b.UptimeScore != 100 {
		t.Errorf("breakdown = %+v, want all components at 100", b)
	}
}

func TestScore_LatencyMonotone(t *testing.T) {
	p := DefaultPolicy()
	base := Input{JitterMs: 0, HasLatency: true, LossPct: 0, UptimePct: 100}

	prev := math.Inf(1)
	for _, lat := range []float64{5, 10, 20, 35, 50, 75, 100, 150, 200, 300, 500} {
		in := base
		in.AvgLatencyMs = lat
		score, _ := p.Score(in)
		if float64(score) > prev {
			t.Errorf("score rose from %.0f to %d as latency grew to %.0fms", prev, score, lat)
		}
		prev = float64(score)
	}

	lo, _ := p.Score(Input{AvgLatencyMs: 10, HasLatency: true, UptimePct: 100})
	hi, _ := p.Score(Input{AvgLatencyMs: 200, HasLatency: true, UptimePct: 100})
	if lo < hi {
		t.Errorf("score(10ms)=%d < score(200ms)=%d, want non-increasing in latency", lo, hi)
	}
}

func TestScore_TotalLossCostsExactlyLossWeight(t *testing.T) {
	p := DefaultPolicy()

	clean, _ := p.Score(Input{
		AvgLatencyMs: 15, JitterMs: 0, HasLatency: true, LossPct: 0, UptimePct: 100,
	})
	// 100% loss: no round trips at all, so latency/jitter take full credit
	// and only the loss component collapses.
	lossy, lb := p.Score(Input{HasLatency: false, LossPct: 100, UptimePct: 100})

	if lb.LossScore != 0 {
		t.Errorf("loss component = %.2f with 100%% loss, want 0", lb.LossScore)
	}
	if diff := clean - lossy; diff != 30 {
		t.Errorf("total loss cost %d points, want exactly 30 (0.30 weight × 100)", diff)
	}
}

func TestScore_ClampsOutOfRangeInputs(t *testing.T) {
	p := DefaultPolicy()
	score, b := p.Score(Input{
		AvgLatencyMs: 10000, JitterMs: 10000, HasLatency: true,
		LossPct: 250, UptimePct: -5,
	})
	if score < 0 || score > 100 {
		t.Errorf("Score = %d out of [0,100]", score)
	}
	if b.LossScore != 0 || b.UptimeScore != 0 {
		t.Errorf("breakdown = %+v, want loss and uptime clamped to 0", b)
	}
}

func TestCurveScore(t *testing.T) {
	curve := DefaultPolicy().LatencyCurve
	tests := []struct {
		name string
		ms   float64
		want float64
	}{
		{"below first anchor", 5, 100},
		{"at first anchor", 20, 100},
		{"mid first segment", 35, 90},  // 20..50 maps 100..80
		{"at second anchor", 50, 80},
		{"mid second segment", 75, 65}, // 50..100 maps 80..50
		{"at third anchor", 100, 50},
		{"mid decay", 200, 25},         // 100..300 maps 50..0
		{"at floor", 300, 0},
		{"beyond floor", 1000, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := curveScore(curve, tc.ms); !almostEqual(got, tc.want, 0.001) {
				t.Errorf("curveScore(%.0fms) = %.2f, want %.2f", tc.ms, got, tc.want)
			}
		})
	}
}

func TestCategoryFor_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		want  Category
	}{
		{100, CategoryExcellent},
		{80, CategoryExcellent},
		{79, CategoryGood},
		{60, CategoryGood},
		{59, CategoryFair},
		{40, CategoryFair},
		{39, CategoryPoor},
		{0, CategoryPoor},
	}
	for _, tc := range tests {
		if got := CategoryFor(tc.score); got != tc.want {
			t.Errorf("CategoryFor(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestPolicy_Validate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}

	bad := DefaultPolicy()
	bad.Weights.Latency = 0.5
	if err := bad.Validate(); err == nil {
		t.Error("weights not summing to 1.0 must fail validation")
	}

	bad = DefaultPolicy()
	bad.LatencyCurve = []CurvePoint{{UpToMs: 50, Score: 80}, {UpToMs: 20, Score: 100}}
	if err := bad.Validate(); err == nil {
		t.Error("descending curve anchors must fail validation")
	}

	bad = DefaultPolicy()
	bad.JitterCurve = nil
	if err := bad.Validate(); err == nil {
		t.Error("empty curve must fail validation")
	}
}

func TestScore_JitterPunishesTighter(t *testing.T) {
	p := DefaultPolicy()
	// 30ms of jitter must cost more than 30ms of latency does.
	latOnly, _ := p.Score(Input{AvgLatencyMs: 30, JitterMs: 0, HasLatency: true, UptimePct: 100})
	jitOnly, _ := p.Score(Input{AvgLatencyMs: 1, JitterMs: 30, HasLatency: true, UptimePct: 100})

	latLost := 100 - float64(latOnly)
	jitLost := 100 - float64(jitOnly)
	// Normalise by weight to compare the raw component penalty.
	if jitLost/p.Weights.Jitter <= latLost/p.Weights.Latency {
		t.Errorf("jitter curve not tighter than latency curve: lat component lost %.1f, jitter component lost %.1f",
			latLost/p.Weights.Latency, jitLost/p.Weights.Jitter)
	}
}
