package market

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

const testNow = int64(1_700_000_000_000)

func validMarket() *domain.Market {
	return &domain.Market{
		MarketID:   "market-1",
		AgentID:    "agent-1",
		Metric:     domain.MetricWinRate,
		Comparison: domain.ComparisonAboveOrEqual,
		Threshold:  5000,
		Deadline:   testNow + MinDeadlineLeadMs + 1,
		Creator:    "creator-1",
		CreatedAt:  testNow,
	}
}

func TestValidateCreate(t *testing.T) {
	if err := ValidateCreate(validMarket(), testNow); err != nil {
		t.Errorf("expected valid market, got %v", err)
	}

	m := validMarket()
	m.MarketID = ""
	if err := ValidateCreate(m, testNow); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("empty id: expected ErrInvalidInput, got %v", err)
	}

	m = validMarket()
	m.Metric = "POPULARITY"
	if err := ValidateCreate(m, testNow); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("bad metric: expected ErrInvalidInput, got %v", err)
	}

	m = validMarket()
	m.Comparison = "STRICTLY_ABOVE"
	if err := ValidateCreate(m, testNow); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("bad comparison: expected ErrInvalidInput, got %v", err)
	}

	m = validMarket()
	m.Deadline = testNow + MinDeadlineLeadMs - 1
	if err := ValidateCreate(m, testNow); !errors.Is(err, ledger.ErrDeadlineTooSoon) {
		t.Errorf("short deadline: expected ErrDeadlineTooSoon, got %v", err)
	}
}

func TestOutcome_ZeroPoolCancelsBeforeMetricRead(t *testing.T) {
	// nil metrics would panic on a field read; the zero-pool guard must
	// fire first. Nil stake sides count as an empty pool.
	m := validMarket()
	if got := Outcome(m, nil); got != domain.MarketStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", got)
	}
}

func TestOutcome_Comparisons(t *testing.T) {
	committed := &domain.PerformanceMetrics{WinRateBps: 5000}

	tests := []struct {
		name       string
		comparison domain.Comparison
		threshold  int64
		want       domain.MarketStatus
	}{
		{"above met at boundary", domain.ComparisonAboveOrEqual, 5000, domain.MarketStatusResolvedYes},
		{"above missed", domain.ComparisonAboveOrEqual, 5001, domain.MarketStatusResolvedNo},
		{"below met at boundary", domain.ComparisonBelowOrEqual, 5000, domain.MarketStatusResolvedYes},
		{"below missed", domain.ComparisonBelowOrEqual, 4999, domain.MarketStatusResolvedNo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMarket()
			m.Comparison = tt.comparison
			m.Threshold = tt.threshold
			m.TotalYesStake = uint256.NewInt(100)
			if got := Outcome(m, committed); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPayout_WinnerShare(t *testing.T) {
	m := validMarket()
	m.Status = domain.MarketStatusResolvedYes
	m.TotalYesStake = uint256.NewInt(3000)
	m.TotalNoStake = uint256.NewInt(1000)

	// 3000 YES of a 3000 winning side claims the whole 4000 pool.
	payout, err := Payout(m, uint256.NewInt(3000), nil)
	if err != nil {
		t.Fatalf("Payout: %v", err)
	}
	if !payout.Eq(uint256.NewInt(4000)) {
		t.Errorf("expected 4000, got %s", payout.Dec())
	}

	// The losing side gets nothing.
	if _, err := Payout(m, nil, uint256.NewInt(1000)); !errors.Is(err, ledger.ErrNothingToClaim) {
		t.Errorf("expected ErrNothingToClaim, got %v", err)
	}
}

func TestPayout_WeiScaleStakes(t *testing.T) {
	// 1 ETH staked on a 4 ETH winning YES side against 6 ETH NO: the
	// winner claims a quarter of the 10 ETH pool. The intermediate
	// stake*pool product is ~4e37, far past int64; the share must still
	// come out exact.
	eth := uint256.NewInt(1e18)

	m := validMarket()
	m.Status = domain.MarketStatusResolvedYes
	m.TotalYesStake = new(uint256.Int).Mul(eth, uint256.NewInt(4))
	m.TotalNoStake = new(uint256.Int).Mul(eth, uint256.NewInt(6))

	payout, err := Payout(m, eth, nil)
	if err != nil {
		t.Fatalf("Payout: %v", err)
	}
	want := uint256.NewInt(2_500_000_000_000_000_000)
	if !payout.Eq(want) {
		t.Errorf("expected %s, got %s", want.Dec(), payout.Dec())
	}
}

func TestPayout_FloorConservesPool(t *testing.T) {
	// Three winners whose shares do not divide evenly: the floored
	// payouts must never sum above the pool.
	m := validMarket()
	m.Status = domain.MarketStatusResolvedNo
	m.TotalYesStake = uint256.NewInt(1000)
	m.TotalNoStake = uint256.NewInt(3001)

	stakes := []uint64{1000, 1000, 1001}
	sum := new(uint256.Int)
	for _, s := range stakes {
		payout, err := Payout(m, nil, uint256.NewInt(s))
		if err != nil {
			t.Fatalf("Payout(%d): %v", s, err)
		}
		sum.Add(sum, payout)
	}
	if pool := m.TotalPool(); sum.Gt(pool) {
		t.Errorf("payouts %s exceed pool %s", sum.Dec(), pool.Dec())
	}
}

func TestPayout_CancelledRefundsOwnStakes(t *testing.T) {
	m := validMarket()
	m.Status = domain.MarketStatusCancelled
	m.TotalYesStake = uint256.NewInt(3000)
	m.TotalNoStake = uint256.NewInt(1000)

	payout, err := Payout(m, uint256.NewInt(500), uint256.NewInt(200))
	if err != nil {
		t.Fatalf("Payout: %v", err)
	}
	if !payout.Eq(uint256.NewInt(700)) {
		t.Errorf("expected refund 700, got %s", payout.Dec())
	}

	if _, err := Payout(m, nil, nil); !errors.Is(err, ledger.ErrNothingToClaim) {
		t.Errorf("expected ErrNothingToClaim, got %v", err)
	}
}

func TestPayout_OpenMarketRejected(t *testing.T) {
	m := validMarket()
	m.Status = domain.MarketStatusOpen
	if _, err := Payout(m, uint256.NewInt(100), nil); !errors.Is(err, ledger.ErrMarketTerminal) {
		t.Errorf("expected ErrMarketTerminal, got %v", err)
	}
}
