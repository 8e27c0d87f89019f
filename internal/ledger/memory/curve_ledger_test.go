package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"agent-performance-lab/internal/curve"
	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

const curveSubmitter = "tracker"

func deployTestCurve(t *testing.T, l *CurveLedger, agentID string) {
	t.Helper()
	basePrice := uint256.NewInt(1e14)
	if err := l.Deploy(context.Background(), agentID, basePrice, curve.BaseSlope); err != nil {
		t.Fatalf("Deploy %s: %v", agentID, err)
	}
}

func tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), domain.TokenUnit)
}

func TestCurveLedger_Deploy(t *testing.T) {
	ctx := context.Background()
	l := NewCurveLedger(curveSubmitter)
	deployTestCurve(t, l, "agent-1")

	state, err := l.GetCurve(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetCurve: %v", err)
	}
	if !state.TotalSupply.IsZero() || !state.ReserveBalance.IsZero() {
		t.Errorf("expected zero supply and reserve, got %s/%s", state.TotalSupply.Dec(), state.ReserveBalance.Dec())
	}
	if !state.CurrentPrice.Eq(state.BasePrice) {
		t.Errorf("expected spot price at base, got %s", state.CurrentPrice.Dec())
	}

	if err := l.Deploy(ctx, "agent-1", uint256.NewInt(1e14), curve.BaseSlope); !errors.Is(err, ledger.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := l.Deploy(ctx, "agent-2", uint256.NewInt(1e14), uint256.NewInt(1)); !errors.Is(err, ledger.ErrSlopeOutOfRange) {
		t.Errorf("expected ErrSlopeOutOfRange, got %v", err)
	}
}

func TestCurveLedger_BuyHappyPath(t *testing.T) {
	ctx := context.Background()
	l := NewCurveLedger(curveSubmitter)
	deployTestCurve(t, l, "agent-1")

	amount := tokens(10)
	quote, err := l.GetBuyPrice(ctx, "agent-1", amount)
	if err != nil {
		t.Fatalf("GetBuyPrice: %v", err)
	}

	cost, err := l.Buy(ctx, "agent-1", "trader-1", amount, quote)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !cost.Eq(quote) {
		t.Errorf("expected cost %s to equal quote %s", cost.Dec(), quote.Dec())
	}

	state, _ := l.GetCurve(ctx, "agent-1")
	if !state.TotalSupply.Eq(amount) {
		t.Errorf("expected supply %s, got %s", amount.Dec(), state.TotalSupply.Dec())
	}
	if !state.ReserveBalance.Eq(cost) {
		t.Errorf("expected reserve %s, got %s", cost.Dec(), state.ReserveBalance.Dec())
	}
	// 1e14 + 1e13*10 = 2e14 after ten whole tokens.
	if want := uint256.NewInt(2e14); !state.CurrentPrice.Eq(want) {
		t.Errorf("expected price %s, got %s", want.Dec(), state.CurrentPrice.Dec())
	}

	bal, err := l.BalanceOf(ctx, "agent-1", "trader-1")
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if !bal.Eq(amount) {
		t.Errorf("expected balance %s, got %s", amount.Dec(), bal.Dec())
	}
}

func TestCurveLedger_BuyUnderpayment(t *testing.T) {
	ctx := context.Background()
	l := NewCurveLedger(curveSubmitter)
	deployTestCurve(t, l, "agent-1")

	amount := tokens(10)
	quote, err := l.GetBuyPrice(ctx, "agent-1", amount)
	if err != nil {
		t.Fatalf("GetBuyPrice: %v", err)
	}
	short := new(uint256.Int).SubUint64(quote, 1)

	if _, err := l.Buy(ctx, "agent-1", "trader-1", amount, short); !errors.Is(err, ledger.ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}

	// The rejected buy left the curve untouched.
	state, _ := l.GetCurve(ctx, "agent-1")
	if !state.TotalSupply.IsZero() || !state.ReserveBalance.IsZero() {
		t.Error("rejected buy must not mutate supply or reserve")
	}
}

func TestCurveLedger_SellRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := NewCurveLedger(curveSubmitter)
	deployTestCurve(t, l, "agent-1")

	amount := tokens(10)
	quote, _ := l.GetBuyPrice(ctx, "agent-1", amount)
	cost, err := l.Buy(ctx, "agent-1", "trader-1", amount, quote)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}

	refund, err := l.Sell(ctx, "agent-1", "trader-1", amount)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if refund.Gt(cost) {
		t.Errorf("refund %s exceeds cost %s", refund.Dec(), cost.Dec())
	}

	state, _ := l.GetCurve(ctx, "agent-1")
	if !state.TotalSupply.IsZero() {
		t.Errorf("expected zero supply after full sell, got %s", state.TotalSupply.Dec())
	}
	if !state.CurrentPrice.Eq(state.BasePrice) {
		t.Errorf("expected price back at base, got %s", state.CurrentPrice.Dec())
	}

	bal, _ := l.BalanceOf(ctx, "agent-1", "trader-1")
	if !bal.IsZero() {
		t.Errorf("expected zero balance, got %s", bal.Dec())
	}
}

func TestCurveLedger_SellWithoutBalance(t *testing.T) {
	ctx := context.Background()
	l := NewCurveLedger(curveSubmitter)
	deployTestCurve(t, l, "agent-1")

	amount := tokens(5)
	quote, _ := l.GetBuyPrice(ctx, "agent-1", amount)
	if _, err := l.Buy(ctx, "agent-1", "trader-1", amount, quote); err != nil {
		t.Fatalf("Buy: %v", err)
	}

	// Another trader holds nothing on this curve.
	if _, err := l.Sell(ctx, "agent-1", "trader-2", amount); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	// Selling more than held fails the same way.
	if _, err := l.Sell(ctx, "agent-1", "trader-1", tokens(6)); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestCurveLedger_ZeroAmounts(t *testing.T) {
	ctx := context.Background()
	l := NewCurveLedger(curveSubmitter)
	deployTestCurve(t, l, "agent-1")

	zero := new(uint256.Int)
	if _, err := l.GetBuyPrice(ctx, "agent-1", zero); !errors.Is(err, ledger.ErrZeroAmount) {
		t.Errorf("quote buy: expected ErrZeroAmount, got %v", err)
	}
	if _, err := l.GetSellRefund(ctx, "agent-1", zero); !errors.Is(err, ledger.ErrZeroAmount) {
		t.Errorf("quote sell: expected ErrZeroAmount, got %v", err)
	}
	if _, err := l.Buy(ctx, "agent-1", "trader-1", zero, uint256.NewInt(1)); !errors.Is(err, ledger.ErrZeroAmount) {
		t.Errorf("buy: expected ErrZeroAmount, got %v", err)
	}
	if _, err := l.Sell(ctx, "agent-1", "trader-1", zero); !errors.Is(err, ledger.ErrZeroAmount) {
		t.Errorf("sell: expected ErrZeroAmount, got %v", err)
	}
}

func TestCurveLedger_UndeployedAgent(t *testing.T) {
	ctx := context.Background()
	l := NewCurveLedger(curveSubmitter)

	if _, err := l.GetCurve(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.GetBuyPrice(ctx, "missing", tokens(1)); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.BalanceOf(ctx, "missing", "trader-1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := l.AdjustSlope(ctx, curveSubmitter, "missing", curve.BaseSlope); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCurveLedger_AdjustSlope(t *testing.T) {
	ctx := context.Background()
	l := NewCurveLedger(curveSubmitter)
	deployTestCurve(t, l, "agent-1")

	amount := tokens(10)
	quote, _ := l.GetBuyPrice(ctx, "agent-1", amount)
	if _, err := l.Buy(ctx, "agent-1", "trader-1", amount, quote); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	before, _ := l.GetCurve(ctx, "agent-1")

	newSlope := uint256.NewInt(2e13)
	if err := l.AdjustSlope(ctx, curveSubmitter, "agent-1", newSlope); err != nil {
		t.Fatalf("AdjustSlope: %v", err)
	}

	state, _ := l.GetCurve(ctx, "agent-1")
	if !state.Slope.Eq(newSlope) {
		t.Errorf("expected slope %s, got %s", newSlope.Dec(), state.Slope.Dec())
	}
	// Supply and reserve are untouched; only the spot price rederives.
	if !state.TotalSupply.Eq(before.TotalSupply) || !state.ReserveBalance.Eq(before.ReserveBalance) {
		t.Error("slope adjustment must not move supply or reserve")
	}
	if want := uint256.NewInt(3e14); !state.CurrentPrice.Eq(want) {
		t.Errorf("expected reprice to %s, got %s", want.Dec(), state.CurrentPrice.Dec())
	}
}

func TestCurveLedger_AdjustSlopeGates(t *testing.T) {
	ctx := context.Background()
	l := NewCurveLedger(curveSubmitter)
	deployTestCurve(t, l, "agent-1")

	if err := l.AdjustSlope(ctx, "imposter", "agent-1", uint256.NewInt(2e13)); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if err := l.AdjustSlope(ctx, curveSubmitter, "agent-1", uint256.NewInt(1)); !errors.Is(err, ledger.ErrSlopeOutOfRange) {
		t.Errorf("expected ErrSlopeOutOfRange, got %v", err)
	}

	state, _ := l.GetCurve(ctx, "agent-1")
	if !state.Slope.Eq(curve.BaseSlope) {
		t.Errorf("expected slope unchanged, got %s", state.Slope.Dec())
	}
}
