// Package engine computes performance metrics as a pure function of a
// computation snapshot. No randomness, no wall-clock reads, no hidden
// state: independent parties given identical snapshots produce
// bit-identical outputs, which is what the consensus commit relies on.
package engine

import (
	"math"

	"github.com/holiman/uint256"

	"agent-performance-lab/internal/domain"
)

// Fixed conversion and bounding constants. These are part of the
// consensus surface: changing any of them is a breaking protocol change.
const (
	// ReserveRateUSDMicro converts one whole reserve token (1e18 wei)
	// into micro-USD: 2e9 = $2000 per token.
	ReserveRateUSDMicro = uint64(2_000_000_000)

	// MaxDrawdownStepBps bounds how far the drawdown may move in one
	// tick, preventing single-tick whiplash.
	MaxDrawdownStepBps = int64(500)

	// VolatilityFloorBps is the minimum denominator for the Sharpe
	// proxy, so a zero drawdown never divides by zero.
	VolatilityFloorBps = int64(100)

	// SharpeScale converts the ROI/drawdown ratio into the x100
	// fixed-point Sharpe convention.
	SharpeScale = int64(100)
)

// Compute derives the next metric snapshot from snap. The second return
// value is false when every committed field equals the stored snapshot
// bit for bit; the commit protocol must skip the write in that case.
func Compute(snap *domain.ComputationSnapshot) (*domain.PerformanceMetrics, bool) {
	prev := snap.Previous
	activity := snap.Activity

	next := &domain.PerformanceMetrics{
		AgentID:     activity.AgentID,
		LastUpdated: snap.Now,
	}

	next.TVLManaged = computeTVL(snap.Curve)
	next.ROIBps = computeROI(snap.Curve, activity)
	next.WinRateBps = computeWinRate(activity)
	next.MaxDrawdownBps = computeDrawdown(prev, snap.Curve)
	next.SharpeRatioScaled = computeSharpe(next.ROIBps, next.MaxDrawdownBps)
	next.TotalTrades = computeTotalTrades(prev, activity)

	if prev != nil && next.Equal(prev) {
		// No update: hand back the stored snapshot untouched so the
		// caller never observes a differing LastUpdated.
		return prev, false
	}
	return next, true
}

// computeTVL converts the curve reserve through the fixed exchange rate
// into micro-USD. No deployed curve means no managed value.
func computeTVL(curve *domain.CurveState) int64 {
	if curve == nil || curve.ReserveBalance.IsZero() {
		return 0
	}
	tvl := new(uint256.Int).Mul(curve.ReserveBalance, uint256.NewInt(ReserveRateUSDMicro))
	tvl.Div(tvl, domain.TokenUnit)
	if !tvl.IsUint64() || tvl.Uint64() > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(tvl.Uint64())
}

// computeROI blends the curve's price appreciation with the realized
// profit/volume ratio. Both present: average. One present: use it alone.
// Neither: zero.
func computeROI(curve *domain.CurveState, activity *domain.ActivitySnapshot) int64 {
	priceROI := priceAppreciationBps(curve)
	realizedROI := realizedProfitBps(activity)

	switch {
	case priceROI != 0 && realizedROI != 0:
		return (priceROI + realizedROI) / 2
	case priceROI != 0:
		return priceROI
	default:
		return realizedROI
	}
}

// priceAppreciationBps is (currentPrice - basePrice) / basePrice in bps.
func priceAppreciationBps(curve *domain.CurveState) int64 {
	if curve == nil || curve.BasePrice.IsZero() {
		return 0
	}
	price := curve.CurrentPrice
	base := curve.BasePrice
	if price.Eq(base) {
		return 0
	}

	diff := new(uint256.Int)
	negative := price.Lt(base)
	if negative {
		diff.Sub(base, price)
	} else {
		diff.Sub(price, base)
	}
	diff.Mul(diff, uint256.NewInt(uint64(domain.BpsMax)))
	diff.Div(diff, base)
	if !diff.IsUint64() || diff.Uint64() > math.MaxInt64 {
		diff.SetUint64(math.MaxInt64)
	}
	bps := int64(diff.Uint64())
	if negative {
		return -bps
	}
	return bps
}

// realizedProfitBps is profit/volume in bps from verified activity.
func realizedProfitBps(activity *domain.ActivitySnapshot) int64 {
	if activity == nil || activity.VolumeUSD <= 0 || activity.ProfitUSD == 0 {
		return 0
	}
	return activity.ProfitUSD * domain.BpsMax / activity.VolumeUSD
}

// computeWinRate is wins/trades in bps over recognized actions only.
// The aggregator has already filtered out transfers and unknown calls.
func computeWinRate(activity *domain.ActivitySnapshot) int64 {
	if activity == nil || activity.Trades == 0 {
		return 0
	}
	rate := activity.Wins * domain.BpsMax / activity.Trades
	return clampBps(rate)
}

// computeDrawdown moves the stored drawdown toward the current
// collateralization gap, at most MaxDrawdownStepBps per tick. The metric
// improves (decreases) while collateral per unit supply covers the spot
// price and worsens otherwise.
func computeDrawdown(prev *domain.PerformanceMetrics, curve *domain.CurveState) int64 {
	var stored int64
	if prev != nil {
		stored = prev.MaxDrawdownBps
	}
	if curve == nil || curve.TotalSupply.IsZero() || curve.CurrentPrice.IsZero() {
		return clampBps(stored)
	}

	// support = reserve backing per whole token of supply, in wei.
	support := new(uint256.Int).Mul(curve.ReserveBalance, domain.TokenUnit)
	support.Div(support, curve.TotalSupply)

	gap := new(uint256.Int)
	improving := !support.Lt(curve.CurrentPrice)
	if improving {
		gap.Sub(support, curve.CurrentPrice)
	} else {
		gap.Sub(curve.CurrentPrice, support)
	}
	gap.Mul(gap, uint256.NewInt(uint64(domain.BpsMax)))
	gap.Div(gap, curve.CurrentPrice)

	step := MaxDrawdownStepBps
	if gap.IsUint64() && int64(gap.Uint64()) < step {
		step = int64(gap.Uint64())
	}

	if improving {
		return clampBps(stored - step)
	}
	return clampBps(stored + step)
}

// computeSharpe is ROI over a drawdown-or-volatility proxy, scaled x100.
// Zero or negative ROI yields zero, never a negative or infinite ratio.
func computeSharpe(roiBps, drawdownBps int64) int64 {
	if roiBps <= 0 {
		return 0
	}
	denom := drawdownBps
	if denom < VolatilityFloorBps {
		denom = VolatilityFloorBps
	}
	return roiBps * SharpeScale / denom
}

// computeTotalTrades re-derives the count from the authoritative
// activity source every tick (absolute-recount policy), clamped against
// the stored value so the committed counter never decreases when the
// source returns a truncated history.
func computeTotalTrades(prev *domain.PerformanceMetrics, activity *domain.ActivitySnapshot) int64 {
	var derived int64
	if activity != nil {
		derived = activity.Trades
	}
	if prev != nil && prev.TotalTrades > derived {
		return prev.TotalTrades
	}
	return derived
}

func clampBps(v int64) int64 {
	if v < domain.BpsMin {
		return domain.BpsMin
	}
	if v > domain.BpsMax {
		return domain.BpsMax
	}
	return v
}
