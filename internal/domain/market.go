package domain

import "github.com/holiman/uint256"

// MarketStatus is the lifecycle state of a prediction market.
// OPEN is the initial state; every other state is terminal.
type MarketStatus string

const (
	MarketStatusOpen        MarketStatus = "OPEN"
	MarketStatusResolvedYes MarketStatus = "RESOLVED_YES"
	MarketStatusResolvedNo  MarketStatus = "RESOLVED_NO"
	MarketStatusCancelled   MarketStatus = "CANCELLED"
)

// Terminal reports whether the status can no longer change.
func (s MarketStatus) Terminal() bool {
	return s != MarketStatusOpen
}

// MetricSelector names the committed metric field a market resolves against.
type MetricSelector string

const (
	MetricROI         MetricSelector = "ROI_BPS"
	MetricWinRate     MetricSelector = "WIN_RATE_BPS"
	MetricMaxDrawdown MetricSelector = "MAX_DRAWDOWN_BPS"
	MetricSharpe      MetricSelector = "SHARPE_SCALED"
	MetricTVL         MetricSelector = "TVL_MANAGED"
	MetricTotalTrades MetricSelector = "TOTAL_TRADES"
)

// Comparison is the resolution direction for a market threshold.
type Comparison string

const (
	ComparisonAboveOrEqual Comparison = "ABOVE_OR_EQUAL"
	ComparisonBelowOrEqual Comparison = "BELOW_OR_EQUAL"
)

// Market is a threshold prediction market on one agent metric.
// Creation fields are immutable; only Status and the stake totals mutate.
type Market struct {
	MarketID   string // PRIMARY KEY, deterministic hash
	AgentID    string
	Metric     MetricSelector
	Comparison Comparison
	Threshold  int64 // same fixed-point convention as the selected metric
	Deadline   int64 // Unix timestamp in milliseconds
	Creator    string
	CreatedAt  int64

	Status        MarketStatus
	TotalYesStake *uint256.Int // wei-denominated stake total, YES side
	TotalNoStake  *uint256.Int // wei-denominated stake total, NO side
}

// TotalPool is the sum of both stake sides. Nil sides count as zero.
func (m *Market) TotalPool() *uint256.Int {
	pool := new(uint256.Int)
	if m.TotalYesStake != nil {
		pool.Add(pool, m.TotalYesStake)
	}
	if m.TotalNoStake != nil {
		pool.Add(pool, m.TotalNoStake)
	}
	return pool
}

// SelectMetric extracts the market's configured field from a committed snapshot.
func (m *Market) SelectMetric(pm *PerformanceMetrics) int64 {
	switch m.Metric {
	case MetricROI:
		return pm.ROIBps
	case MetricWinRate:
		return pm.WinRateBps
	case MetricMaxDrawdown:
		return pm.MaxDrawdownBps
	case MetricSharpe:
		return pm.SharpeRatioScaled
	case MetricTVL:
		return pm.TVLManaged
	case MetricTotalTrades:
		return pm.TotalTrades
	default:
		return 0
	}
}

// ValidMetricSelector reports whether s names a resolvable metric field.
func ValidMetricSelector(s MetricSelector) bool {
	switch s {
	case MetricROI, MetricWinRate, MetricMaxDrawdown, MetricSharpe, MetricTVL, MetricTotalTrades:
		return true
	}
	return false
}

// ValidComparison reports whether c is a recognized resolution direction.
func ValidComparison(c Comparison) bool {
	return c == ComparisonAboveOrEqual || c == ComparisonBelowOrEqual
}
