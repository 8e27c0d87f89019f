package curve

import (
	"github.com/holiman/uint256"

	"agent-performance-lab/internal/domain"
)

// SlopePolicy maps committed performance to a new slope. One canonical
// interface with two concrete strategies selected at configuration time;
// only one strategy ever runs in a deployment, so the two can never race
// against each other.
type SlopePolicy interface {
	// Name identifies the strategy in logs and config.
	Name() string

	// NewSlope computes the candidate slope from the current slope and
	// the committed metrics. Callers clamp the result to the hard bounds.
	NewSlope(current *uint256.Int, m *domain.PerformanceMetrics) *uint256.Int
}

// bps denominator for multiplier math.
var bpsDenom = uint256.NewInt(10000)

// scaleBps returns slope * multBps / 10000.
func scaleBps(slope *uint256.Int, multBps uint64) *uint256.Int {
	out := new(uint256.Int).Mul(slope, uint256.NewInt(multBps))
	return out.Div(out, bpsDenom)
}

// TierPolicy maps ROI to discrete multipliers of the fixed base slope,
// from 0.25x for deeply negative ROI up to 2x for sustained outperformance.
type TierPolicy struct {
	Base *uint256.Int
}

// NewTierPolicy creates a TierPolicy over the package base slope.
func NewTierPolicy() *TierPolicy {
	return &TierPolicy{Base: BaseSlope.Clone()}
}

// Name implements SlopePolicy.
func (p *TierPolicy) Name() string { return "ROI_TIER" }

// NewSlope implements SlopePolicy. The current slope is ignored: tiers
// are anchored on the base slope so repeated adjustments cannot compound.
func (p *TierPolicy) NewSlope(_ *uint256.Int, m *domain.PerformanceMetrics) *uint256.Int {
	var multBps uint64
	switch {
	case m.ROIBps >= 5000:
		multBps = 20000 // 2x
	case m.ROIBps >= 2000:
		multBps = 15000 // 1.5x
	case m.ROIBps >= 500:
		multBps = 12500 // 1.25x
	case m.ROIBps >= 0:
		multBps = 10000 // 1x
	case m.ROIBps >= -2000:
		multBps = 5000 // 0.5x
	default:
		multBps = 2500 // 0.25x
	}
	return scaleBps(p.Base, multBps)
}

// ScorePolicy blends ROI and win rate 50/50 into a continuous score and
// scales the CURRENT slope by a multiplier in [0.5x, 1.5x].
type ScorePolicy struct{}

// NewScorePolicy creates a ScorePolicy.
func NewScorePolicy() *ScorePolicy { return &ScorePolicy{} }

// Name implements SlopePolicy.
func (p *ScorePolicy) Name() string { return "PERF_SCORE" }

// Score normalizes ROI from [-10000, 10000] into [0, 10000], averages it
// with the win rate, and returns the blended score in bps.
func (p *ScorePolicy) Score(m *domain.PerformanceMetrics) int64 {
	roi := m.ROIBps
	if roi > domain.BpsMax {
		roi = domain.BpsMax
	}
	if roi < -domain.BpsMax {
		roi = -domain.BpsMax
	}
	normROI := (roi + domain.BpsMax) / 2 // [0, 10000]

	win := m.WinRateBps
	if win > domain.BpsMax {
		win = domain.BpsMax
	}
	if win < 0 {
		win = 0
	}

	return (normROI + win) / 2
}

// NewSlope implements SlopePolicy: multiplier = 0.5 + score/10000,
// applied to the current slope.
func (p *ScorePolicy) NewSlope(current *uint256.Int, m *domain.PerformanceMetrics) *uint256.Int {
	multBps := uint64(5000 + p.Score(m)) // [5000, 15000]
	return scaleBps(current, multBps)
}

// PolicyByName resolves a configured strategy name. Unknown names fall
// back to the continuous score policy.
func PolicyByName(name string) SlopePolicy {
	switch name {
	case "ROI_TIER":
		return NewTierPolicy()
	case "PERF_SCORE":
		return NewScorePolicy()
	default:
		return NewScorePolicy()
	}
}
