package postgres

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"

	"agent-performance-lab/internal/curve"
	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// CurveLedger implements ledger.CurveLedger using PostgreSQL.
// 256-bit values are stored as NUMERIC(78,0) and travel as decimal
// strings. Buy and Sell lock the curve row for the whole trade, so
// supply, reserve, and the trader balance move together.
type CurveLedger struct {
	pool      *Pool
	submitter string // authorized principal for slope adjustments
}

// NewCurveLedger creates a CurveLedger gated on the given
// slope-adjustment principal.
func NewCurveLedger(pool *Pool, submitter string) *CurveLedger {
	return &CurveLedger{pool: pool, submitter: submitter}
}

// Compile-time interface check.
var _ ledger.CurveLedger = (*CurveLedger)(nil)

// Deploy creates a curve for an agent. Returns ErrDuplicateKey if one exists.
func (l *CurveLedger) Deploy(ctx context.Context, agentID string, basePrice, slope *uint256.Int) error {
	if agentID == "" || basePrice == nil || slope == nil {
		return ledger.ErrInvalidInput
	}
	if !curve.SlopeInRange(slope) {
		return ledger.ErrSlopeOutOfRange
	}

	query := `
		INSERT INTO curves (agent_id, total_supply, reserve_balance, base_price, slope, current_price)
		VALUES ($1, 0, 0, $2::numeric, $3::numeric, $2::numeric)
	`

	_, err := l.pool.Exec(ctx, query, agentID, basePrice.Dec(), slope.Dec())
	if err != nil {
		if isDuplicateKeyError(err) {
			return ledger.ErrDuplicateKey
		}
		return fmt.Errorf("insert curve: %w", err)
	}
	return nil
}

// GetCurve retrieves current curve state. Returns ErrNotFound if no
// curve is deployed.
func (l *CurveLedger) GetCurve(ctx context.Context, agentID string) (*domain.CurveState, error) {
	query := `
		SELECT agent_id, total_supply::text, reserve_balance::text,
		       base_price::text, slope::text, current_price::text
		FROM curves
		WHERE agent_id = $1
	`
	return scanCurve(l.pool.QueryRow(ctx, query, agentID))
}

// GetBuyPrice quotes the integral cost of buying amount base units.
func (l *CurveLedger) GetBuyPrice(ctx context.Context, agentID string, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, ledger.ErrZeroAmount
	}
	state, err := l.GetCurve(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return curve.BuyCost(state.BasePrice, state.Slope, state.TotalSupply, amount)
}

// GetSellRefund quotes the integral refund for selling amount base units.
func (l *CurveLedger) GetSellRefund(ctx context.Context, agentID string, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, ledger.ErrZeroAmount
	}
	state, err := l.GetCurve(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if amount.Gt(state.TotalSupply) {
		return nil, ledger.ErrInsufficientBalance
	}
	return curve.SellRefund(state.BasePrice, state.Slope, state.TotalSupply, amount)
}

// Buy mints amount base units to trader against payment wei.
func (l *CurveLedger) Buy(ctx context.Context, agentID, trader string, amount, payment *uint256.Int) (*uint256.Int, error) {
	if trader == "" {
		return nil, ledger.ErrInvalidInput
	}
	if amount == nil || amount.IsZero() {
		return nil, ledger.ErrZeroAmount
	}

	var cost *uint256.Int
	err := inTx(ctx, l.pool, func(tx pgx.Tx) error {
		state, err := lockCurve(ctx, tx, agentID)
		if err != nil {
			return err
		}

		cost, err = curve.BuyCost(state.BasePrice, state.Slope, state.TotalSupply, amount)
		if err != nil {
			return err
		}
		if payment == nil || payment.Lt(cost) {
			return ledger.ErrInsufficientPayment
		}

		supply := new(uint256.Int).Add(state.TotalSupply, amount)
		reserve := new(uint256.Int).Add(state.ReserveBalance, cost)
		price := curve.SpotPrice(state.BasePrice, state.Slope, supply)

		if err := writeCurve(ctx, tx, agentID, supply, reserve, nil, price); err != nil {
			return err
		}

		balQuery := `
			INSERT INTO curve_balances (agent_id, trader, balance)
			VALUES ($1, $2, $3::numeric)
			ON CONFLICT (agent_id, trader) DO UPDATE SET
				balance = curve_balances.balance + EXCLUDED.balance
		`
		if _, err := tx.Exec(ctx, balQuery, agentID, trader, amount.Dec()); err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cost, nil
}

// Sell burns amount base units from trader and returns the refund wei.
func (l *CurveLedger) Sell(ctx context.Context, agentID, trader string, amount *uint256.Int) (*uint256.Int, error) {
	if trader == "" {
		return nil, ledger.ErrInvalidInput
	}
	if amount == nil || amount.IsZero() {
		return nil, ledger.ErrZeroAmount
	}

	var refund *uint256.Int
	err := inTx(ctx, l.pool, func(tx pgx.Tx) error {
		state, err := lockCurve(ctx, tx, agentID)
		if err != nil {
			return err
		}

		var balStr string
		balQuery := `
			SELECT balance::text FROM curve_balances
			WHERE agent_id = $1 AND trader = $2
			FOR UPDATE
		`
		if err := tx.QueryRow(ctx, balQuery, agentID, trader).Scan(&balStr); err != nil {
			if isNotFoundError(err) {
				return ledger.ErrInsufficientBalance
			}
			return fmt.Errorf("lock balance: %w", err)
		}
		bal, err := uint256.FromDecimal(balStr)
		if err != nil {
			return fmt.Errorf("parse balance: %w", err)
		}
		if bal.Lt(amount) {
			return ledger.ErrInsufficientBalance
		}

		refund, err = curve.SellRefund(state.BasePrice, state.Slope, state.TotalSupply, amount)
		if err != nil {
			return err
		}
		if state.ReserveBalance.Lt(refund) {
			return ledger.ErrInsufficientReserve
		}

		supply := new(uint256.Int).Sub(state.TotalSupply, amount)
		reserve := new(uint256.Int).Sub(state.ReserveBalance, refund)
		price := curve.SpotPrice(state.BasePrice, state.Slope, supply)

		if err := writeCurve(ctx, tx, agentID, supply, reserve, nil, price); err != nil {
			return err
		}

		newBal := new(uint256.Int).Sub(bal, amount)
		update := `
			UPDATE curve_balances SET balance = $3::numeric
			WHERE agent_id = $1 AND trader = $2
		`
		if _, err := tx.Exec(ctx, update, agentID, trader, newBal.Dec()); err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// BalanceOf retrieves trader's token balance on the agent's curve.
func (l *CurveLedger) BalanceOf(ctx context.Context, agentID, trader string) (*uint256.Int, error) {
	if _, err := l.GetCurve(ctx, agentID); err != nil {
		return nil, err
	}

	var balStr string
	query := `
		SELECT balance::text FROM curve_balances
		WHERE agent_id = $1 AND trader = $2
	`
	err := l.pool.QueryRow(ctx, query, agentID, trader).Scan(&balStr)
	if err != nil {
		if isNotFoundError(err) {
			return new(uint256.Int), nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}

	bal, err := uint256.FromDecimal(balStr)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return bal, nil
}

// AdjustSlope sets a new slope without touching supply or reserve.
func (l *CurveLedger) AdjustSlope(ctx context.Context, submitter, agentID string, newSlope *uint256.Int) error {
	if submitter != l.submitter {
		return ledger.ErrUnauthorized
	}
	if newSlope == nil || !curve.SlopeInRange(newSlope) {
		return ledger.ErrSlopeOutOfRange
	}

	return inTx(ctx, l.pool, func(tx pgx.Tx) error {
		state, err := lockCurve(ctx, tx, agentID)
		if err != nil {
			return err
		}
		price := curve.SpotPrice(state.BasePrice, newSlope, state.TotalSupply)
		return writeCurve(ctx, tx, agentID, state.TotalSupply, state.ReserveBalance, newSlope, price)
	})
}

// lockCurve reads one curve row under FOR UPDATE.
func lockCurve(ctx context.Context, tx pgx.Tx, agentID string) (*domain.CurveState, error) {
	query := `
		SELECT agent_id, total_supply::text, reserve_balance::text,
		       base_price::text, slope::text, current_price::text
		FROM curves
		WHERE agent_id = $1
		FOR UPDATE
	`
	return scanCurve(tx.QueryRow(ctx, query, agentID))
}

// writeCurve updates the mutable curve columns. A nil slope keeps the
// stored one.
func writeCurve(ctx context.Context, tx pgx.Tx, agentID string, supply, reserve, slope, price *uint256.Int) error {
	query := `
		UPDATE curves SET
			total_supply    = $2::numeric,
			reserve_balance = $3::numeric,
			slope           = COALESCE($4, slope::text)::numeric,
			current_price   = $5::numeric
		WHERE agent_id = $1
	`
	var slopeStr *string
	if slope != nil {
		s := slope.Dec()
		slopeStr = &s
	}
	if _, err := tx.Exec(ctx, query, agentID, supply.Dec(), reserve.Dec(), slopeStr, price.Dec()); err != nil {
		return fmt.Errorf("update curve: %w", err)
	}
	return nil
}

// scanCurve scans one curve row with numeric columns cast to text.
func scanCurve(row pgx.Row) (*domain.CurveState, error) {
	var (
		state                                              domain.CurveState
		supplyStr, reserveStr, baseStr, slopeStr, priceStr string
	)
	err := row.Scan(
		&state.AgentID,
		&supplyStr,
		&reserveStr,
		&baseStr,
		&slopeStr,
		&priceStr,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("scan curve row: %w", err)
	}

	fields := []struct {
		dst **uint256.Int
		src string
	}{
		{&state.TotalSupply, supplyStr},
		{&state.ReserveBalance, reserveStr},
		{&state.BasePrice, baseStr},
		{&state.Slope, slopeStr},
		{&state.CurrentPrice, priceStr},
	}
	for _, f := range fields {
		v, err := uint256.FromDecimal(f.src)
		if err != nil {
			return nil, fmt.Errorf("parse curve value %q: %w", f.src, err)
		}
		*f.dst = v
	}
	return &state, nil
}
