// Package market implements the prediction-market state machine:
// OPEN -> {RESOLVED_YES, RESOLVED_NO, CANCELLED}, terminal once left
// OPEN, with pari-mutuel payouts that round in the contract's favor.
package market

import (
	"github.com/holiman/uint256"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// MinDeadlineLeadMs is the minimum distance between creation time and
// deadline, in milliseconds.
const MinDeadlineLeadMs = int64(5 * 60 * 1000)

// ValidateCreate checks the immutable creation fields of a new market.
func ValidateCreate(m *domain.Market, now int64) error {
	if m == nil || m.MarketID == "" || m.AgentID == "" {
		return ledger.ErrInvalidInput
	}
	if !domain.ValidMetricSelector(m.Metric) || !domain.ValidComparison(m.Comparison) {
		return ledger.ErrInvalidInput
	}
	if m.Deadline < now+MinDeadlineLeadMs {
		return ledger.ErrDeadlineTooSoon
	}
	return nil
}

// Outcome decides the terminal status for an OPEN market past its
// deadline. A zero total pool resolves to CANCELLED instead of picking a
// winner nobody backed.
func Outcome(m *domain.Market, committed *domain.PerformanceMetrics) domain.MarketStatus {
	if m.TotalPool().IsZero() {
		return domain.MarketStatusCancelled
	}

	value := m.SelectMetric(committed)
	var yes bool
	switch m.Comparison {
	case domain.ComparisonAboveOrEqual:
		yes = value >= m.Threshold
	case domain.ComparisonBelowOrEqual:
		yes = value <= m.Threshold
	}

	if yes {
		return domain.MarketStatusResolvedYes
	}
	return domain.MarketStatusResolvedNo
}

// Payout computes a user's claim on a terminal market from their stakes
// on each side. Winner payouts are userStake*totalPool/winningTotal
// rounded down, so the sum across all claimants never exceeds the pool.
// CANCELLED refunds the user's own stakes on both sides. All amounts are
// wei; the product is taken over a 512-bit intermediate, so it stays
// exact at any stake the pool can hold.
func Payout(m *domain.Market, userYes, userNo *uint256.Int) (*uint256.Int, error) {
	switch m.Status {
	case domain.MarketStatusCancelled:
		refund := new(uint256.Int)
		if userYes != nil {
			refund.Add(refund, userYes)
		}
		if userNo != nil {
			refund.Add(refund, userNo)
		}
		if refund.IsZero() {
			return nil, ledger.ErrNothingToClaim
		}
		return refund, nil

	case domain.MarketStatusResolvedYes:
		return winnerShare(userYes, m.TotalYesStake, m.TotalPool())

	case domain.MarketStatusResolvedNo:
		return winnerShare(userNo, m.TotalNoStake, m.TotalPool())

	default:
		return nil, ledger.ErrMarketTerminal
	}
}

// winnerShare is stake/winningTotal of the full pool, rounded down.
// userStake <= winningTotal <= totalPool always holds on a resolved
// market, so the quotient fits 256 bits.
func winnerShare(userStake, winningTotal, totalPool *uint256.Int) (*uint256.Int, error) {
	if userStake == nil || userStake.IsZero() || winningTotal == nil || winningTotal.IsZero() {
		return nil, ledger.ErrNothingToClaim
	}
	share, overflow := new(uint256.Int).MulDivOverflow(userStake, totalPool, winningTotal)
	if overflow {
		return nil, ledger.ErrInvalidInput
	}
	return share, nil
}
