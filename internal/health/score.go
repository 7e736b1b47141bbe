package health

import (
	"fmt"
	"math"
)

// Category is the qualitative band a score falls into. Boundaries are
// inclusive at the lower bound of each band.
type Category string

const (
	CategoryExcellent Category = "Excellent" // score >= 80
	CategoryGood      Category = "Good"      // score >= 60
	CategoryFair      Category = "Fair"      // score >= 40
	CategoryPoor      Category = "Poor"      // score < 40
)

// CurvePoint anchors a piecewise-linear penalty curve. Values at or below
// the first anchor score the first anchor's value; values at or beyond the
// last anchor score the last anchor's value; between anchors the score is
// interpolated linearly.
type CurvePoint struct {
	UpToMs float64 `yaml:"up_to_ms"`
	Score  float64 `yaml:"score"`
}

// Weights are the fixed component weights of the composite score.
// They must sum to 1.0.
type Weights struct {
	Latency float64 `yaml:"latency"`
	Loss    float64 `yaml:"loss"`
	Jitter  float64 `yaml:"jitter"`
	Uptime  float64 `yaml:"uptime"`
}

// Policy is the scoring policy table. Deployments with different baselines
// can reshape the curves in configuration without touching the engine.
type Policy struct {
	LatencyCurve []CurvePoint `yaml:"latency_curve"`
	JitterCurve  []CurvePoint `yaml:"jitter_curve"`
	Weights      Weights      `yaml:"weights"`
}

// DefaultPolicy returns the stock curves: latency is forgiving up to 20ms and
// bottoms out at 300ms; jitter uses the same shape with tighter breakpoints
// since each millisecond of jitter hurts more than one of latency.
func DefaultPolicy() Policy {
	return Policy{
		LatencyCurve: []CurvePoint{
			{UpToMs: 20, Score: 100},
			{UpToMs: 50, Score: 80},
			{UpToMs: 100, Score: 50},
			{UpToMs: 300, Score: 0},
		},
		JitterCurve: []CurvePoint{
			{UpToMs: 5, Score: 100},
			{UpToMs: 15, Score: 80},
			{UpToMs: 40, Score: 50},
			{UpToMs: 120, Score: 0},
		},
		Weights: Weights{Latency: 0.40, Loss: 0.30, Jitter: 0.20, Uptime: 0.10},
	}
}

// Validate checks the policy is internally consistent.
func (p Policy) Validate() error {
	sum := p.Weights.Latency + p.Weights.Loss + p.Weights.Jitter + p.Weights.Uptime
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("health: weights sum to %.4f, want 1.0", sum)
	}
	for _, curve := range []struct {
		name   string
		points []CurvePoint
	}{
		{"latency_curve", p.LatencyCurve},
		{"jitter_curve", p.JitterCurve},
	} {
		if len(curve.points) == 0 {
			return fmt.Errorf("health: %s is empty", curve.name)
		}
		for i := 1; i < len(curve.points); i++ {
			if curve.points[i].UpToMs <= curve.points[i-1].UpToMs {
				return fmt.Errorf("health: %s anchors must ascend in ms", curve.name)
			}
			if curve.points[i].Score > curve.points[i-1].Score {
				return fmt.Errorf("health: %s scores must not increase with ms", curve.name)
			}
		}
	}
	return nil
}

// Input holds one evaluation batch's aggregates. HasLatency is false when the
// batch contained no successful round trips at all; latency and jitter then
// take full credit so the loss component alone carries the damage.
type Input struct {
	AvgLatencyMs float64
	JitterMs     float64
	HasLatency   bool
	LossPct      float64
	UptimePct    float64
}

// Breakdown is the per-component score set behind a composite score.
type Breakdown struct {
	LatencyScore float64 `json:"latency_score"`
	LossScore    float64 `json:"loss_score"`
	JitterScore  float64 `json:"jitter_score"`
	UptimeScore  float64 `json:"uptime_score"`
}

// Score computes the composite 0–100 score for one batch.
func (p Policy) Score(in Input) (int, Breakdown) {
	b := Breakdown{
		LatencyScore: 100,
		JitterScore:  100,
		LossScore:    clamp(100-in.LossPct, 0, 100),
		UptimeScore:  clamp(in.UptimePct, 0, 100),
	}
	if in.HasLatency {
		b.LatencyScore = curveScore(p.LatencyCurve, in.AvgLatencyMs)
		b.JitterScore = curveScore(p.JitterCurve, in.JitterMs)
	}

	raw := b.LatencyScore*p.Weights.Latency +
		b.LossScore*p.Weights.Loss +
		b.JitterScore*p.Weights.Jitter +
		b.UptimeScore*p.Weights.Uptime

	return int(clamp(math.Round(raw), 0, 100)), b
}

// CategoryFor maps a composite score to its band.
func CategoryFor(score int) Category {
	switch {
	case score >= 80:
		return CategoryExcellent
	case score >= 60:
		return CategoryGood
	case score >= 40:
		return CategoryFair
	default:
		return CategoryPoor
	}
}

// curveScore evaluates a piecewise-linear curve at v.
func curveScore(curve []CurvePoint, v float64) float64 {
	if len(curve) == 0 {
		return 100
	}
	if v <= curve[0].UpToMs {
		return curve[0].Score
	}
	for i := 1; i < len(curve); i++ {
		if v <= curve[i].UpToMs {
			prev, next := curve[i-1], curve[i]
			frac := (v - prev.UpToMs) / (next.UpToMs - prev.UpToMs)
			return prev.Score + frac*(next.Score-prev.Score)
		}
	}
	return curve[len(curve)-1].Score
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
