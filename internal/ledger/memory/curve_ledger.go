package memory

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	"agent-performance-lab/internal/curve"
	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// CurveLedger is an in-memory implementation of ledger.CurveLedger.
// One mutex guards supply, reserve, and balances together: a reader can
// never observe a supply change without the matching reserve change.
type CurveLedger struct {
	submitter string // authorized principal for slope adjustments

	mu       sync.RWMutex
	curves   map[string]*domain.CurveState       // keyed by agent_id
	balances map[string]map[string]*uint256.Int  // agent_id -> trader -> base units
}

// NewCurveLedger creates an in-memory curve ledger gated on the given
// slope-adjustment principal.
func NewCurveLedger(submitter string) *CurveLedger {
	return &CurveLedger{
		submitter: submitter,
		curves:    make(map[string]*domain.CurveState),
		balances:  make(map[string]map[string]*uint256.Int),
	}
}

// Deploy creates a curve for an agent. Returns ErrDuplicateKey if one exists.
func (l *CurveLedger) Deploy(_ context.Context, agentID string, basePrice, slope *uint256.Int) error {
	if agentID == "" || basePrice == nil || slope == nil {
		return ledger.ErrInvalidInput
	}
	if !curve.SlopeInRange(slope) {
		return ledger.ErrSlopeOutOfRange
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.curves[agentID]; exists {
		return ledger.ErrDuplicateKey
	}

	zero := new(uint256.Int)
	l.curves[agentID] = &domain.CurveState{
		AgentID:        agentID,
		TotalSupply:    zero.Clone(),
		ReserveBalance: zero.Clone(),
		BasePrice:      basePrice.Clone(),
		Slope:          slope.Clone(),
		CurrentPrice:   basePrice.Clone(),
	}
	l.balances[agentID] = make(map[string]*uint256.Int)
	return nil
}

// GetCurve retrieves current curve state. Returns ErrNotFound if no
// curve is deployed.
func (l *CurveLedger) GetCurve(_ context.Context, agentID string) (*domain.CurveState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state, exists := l.curves[agentID]
	if !exists {
		return nil, ledger.ErrNotFound
	}
	return state.Clone(), nil
}

// GetBuyPrice quotes the integral cost of buying amount base units.
func (l *CurveLedger) GetBuyPrice(_ context.Context, agentID string, amount *uint256.Int) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state, exists := l.curves[agentID]
	if !exists {
		return nil, ledger.ErrNotFound
	}
	if amount == nil || amount.IsZero() {
		return nil, ledger.ErrZeroAmount
	}
	return curve.BuyCost(state.BasePrice, state.Slope, state.TotalSupply, amount)
}

// GetSellRefund quotes the integral refund for selling amount base units.
func (l *CurveLedger) GetSellRefund(_ context.Context, agentID string, amount *uint256.Int) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state, exists := l.curves[agentID]
	if !exists {
		return nil, ledger.ErrNotFound
	}
	if amount == nil || amount.IsZero() {
		return nil, ledger.ErrZeroAmount
	}
	if amount.Gt(state.TotalSupply) {
		return nil, ledger.ErrInsufficientBalance
	}
	return curve.SellRefund(state.BasePrice, state.Slope, state.TotalSupply, amount)
}

// Buy mints amount base units to trader against payment wei. Supply,
// reserve, and the trader balance mutate under one critical section.
func (l *CurveLedger) Buy(_ context.Context, agentID, trader string, amount, payment *uint256.Int) (*uint256.Int, error) {
	if trader == "" {
		return nil, ledger.ErrInvalidInput
	}
	if amount == nil || amount.IsZero() {
		return nil, ledger.ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, exists := l.curves[agentID]
	if !exists {
		return nil, ledger.ErrNotFound
	}

	cost, err := curve.BuyCost(state.BasePrice, state.Slope, state.TotalSupply, amount)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.Lt(cost) {
		return nil, ledger.ErrInsufficientPayment
	}

	state.TotalSupply.Add(state.TotalSupply, amount)
	state.ReserveBalance.Add(state.ReserveBalance, cost)
	state.CurrentPrice = curve.SpotPrice(state.BasePrice, state.Slope, state.TotalSupply)

	bal, ok := l.balances[agentID][trader]
	if !ok {
		bal = new(uint256.Int)
		l.balances[agentID][trader] = bal
	}
	bal.Add(bal, amount)

	return cost, nil
}

// Sell burns amount base units from trader and returns the refund wei.
func (l *CurveLedger) Sell(_ context.Context, agentID, trader string, amount *uint256.Int) (*uint256.Int, error) {
	if trader == "" {
		return nil, ledger.ErrInvalidInput
	}
	if amount == nil || amount.IsZero() {
		return nil, ledger.ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, exists := l.curves[agentID]
	if !exists {
		return nil, ledger.ErrNotFound
	}

	bal, ok := l.balances[agentID][trader]
	if !ok || bal.Lt(amount) {
		return nil, ledger.ErrInsufficientBalance
	}

	refund, err := curve.SellRefund(state.BasePrice, state.Slope, state.TotalSupply, amount)
	if err != nil {
		return nil, err
	}
	if state.ReserveBalance.Lt(refund) {
		return nil, ledger.ErrInsufficientReserve
	}

	state.TotalSupply.Sub(state.TotalSupply, amount)
	state.ReserveBalance.Sub(state.ReserveBalance, refund)
	state.CurrentPrice = curve.SpotPrice(state.BasePrice, state.Slope, state.TotalSupply)
	bal.Sub(bal, amount)

	return refund, nil
}

// BalanceOf retrieves trader's token balance on the agent's curve.
func (l *CurveLedger) BalanceOf(_ context.Context, agentID, trader string) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, exists := l.curves[agentID]; !exists {
		return nil, ledger.ErrNotFound
	}
	bal, ok := l.balances[agentID][trader]
	if !ok {
		return new(uint256.Int), nil
	}
	return bal.Clone(), nil
}

// AdjustSlope sets a new slope without touching supply or reserve.
func (l *CurveLedger) AdjustSlope(_ context.Context, submitter, agentID string, newSlope *uint256.Int) error {
	if submitter != l.submitter {
		return ledger.ErrUnauthorized
	}
	if newSlope == nil || !curve.SlopeInRange(newSlope) {
		return ledger.ErrSlopeOutOfRange
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, exists := l.curves[agentID]
	if !exists {
		return ledger.ErrNotFound
	}

	state.Slope = newSlope.Clone()
	state.CurrentPrice = curve.SpotPrice(state.BasePrice, state.Slope, state.TotalSupply)
	return nil
}

// Verify interface compliance at compile time.
var _ ledger.CurveLedger = (*CurveLedger)(nil)
