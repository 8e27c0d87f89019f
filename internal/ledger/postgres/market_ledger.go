package postgres

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
	"agent-performance-lab/internal/market"
)

// MarketLedger implements ledger.MarketLedger using PostgreSQL.
// Bets, resolution, and claims lock the market row so the pool totals
// and the status transition are serialized per market. Stake amounts are
// wei, stored as NUMERIC(78,0) and moved as decimal strings.
type MarketLedger struct {
	pool *Pool
}

// NewMarketLedger creates a new MarketLedger.
func NewMarketLedger(pool *Pool) *MarketLedger {
	return &MarketLedger{pool: pool}
}

// Compile-time interface check.
var _ ledger.MarketLedger = (*MarketLedger)(nil)

const marketColumns = `
	market_id, agent_id, metric, comparison, threshold,
	deadline, creator, created_at, status,
	total_yes_stake::text, total_no_stake::text
`

// CreateMarket stores a new OPEN market.
func (l *MarketLedger) CreateMarket(ctx context.Context, m *domain.Market) error {
	if err := market.ValidateCreate(m, m.CreatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO markets (
			market_id, agent_id, metric, comparison, threshold,
			deadline, creator, created_at, status, total_yes_stake, total_no_stake
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0)
	`

	_, err := l.pool.Exec(ctx, query,
		m.MarketID,
		m.AgentID,
		string(m.Metric),
		string(m.Comparison),
		m.Threshold,
		m.Deadline,
		m.Creator,
		m.CreatedAt,
		string(domain.MarketStatusOpen),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ledger.ErrDuplicateKey
		}
		return fmt.Errorf("insert market: %w", err)
	}
	return nil
}

// GetMarket retrieves a market by id. Returns ErrNotFound if absent.
func (l *MarketLedger) GetMarket(ctx context.Context, marketID string) (*domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE market_id = $1`
	return scanMarket(l.pool.QueryRow(ctx, query, marketID))
}

// ListOpenMarkets retrieves all OPEN markets sorted by deadline ASC.
func (l *MarketLedger) ListOpenMarkets(ctx context.Context) ([]*domain.Market, error) {
	query := `
		SELECT ` + marketColumns + `
		FROM markets
		WHERE status = $1
		ORDER BY deadline ASC, market_id ASC
	`

	rows, err := l.pool.Query(ctx, query, string(domain.MarketStatusOpen))
	if err != nil {
		return nil, fmt.Errorf("list open markets: %w", err)
	}
	defer rows.Close()

	var result []*domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market rows: %w", err)
	}
	return result, nil
}

// BetYes adds stake wei to the YES side.
func (l *MarketLedger) BetYes(ctx context.Context, marketID, user string, amount *uint256.Int, now int64) error {
	return l.bet(ctx, marketID, user, amount, now, true)
}

// BetNo adds stake to the NO side.
func (l *MarketLedger) BetNo(ctx context.Context, marketID, user string, amount *uint256.Int, now int64) error {
	return l.bet(ctx, marketID, user, amount, now, false)
}

func (l *MarketLedger) bet(ctx context.Context, marketID, user string, amount *uint256.Int, now int64, yes bool) error {
	if user == "" {
		return ledger.ErrInvalidInput
	}
	if amount == nil || amount.IsZero() {
		return ledger.ErrZeroAmount
	}

	return inTx(ctx, l.pool, func(tx pgx.Tx) error {
		m, err := lockMarket(ctx, tx, marketID)
		if err != nil {
			return err
		}
		if m.Status.Terminal() {
			return ledger.ErrMarketTerminal
		}
		if now >= m.Deadline {
			return ledger.ErrDeadlinePassed
		}

		side, total := "no_stake", "total_no_stake"
		if yes {
			side, total = "yes_stake", "total_yes_stake"
		}

		stakeQuery := fmt.Sprintf(`
			INSERT INTO market_stakes (market_id, "user", yes_stake, no_stake)
			VALUES ($1, $2, $3::numeric, $4::numeric)
			ON CONFLICT (market_id, "user") DO UPDATE SET
				%s = market_stakes.%s + $5::numeric
		`, side, side)
		yesAmt, noAmt := "0", "0"
		if yes {
			yesAmt = amount.Dec()
		} else {
			noAmt = amount.Dec()
		}
		if _, err := tx.Exec(ctx, stakeQuery, marketID, user, yesAmt, noAmt, amount.Dec()); err != nil {
			return fmt.Errorf("upsert stake: %w", err)
		}

		totalQuery := fmt.Sprintf(`UPDATE markets SET %s = %s + $2::numeric WHERE market_id = $1`, total, total)
		if _, err := tx.Exec(ctx, totalQuery, marketID, amount.Dec()); err != nil {
			return fmt.Errorf("update pool total: %w", err)
		}
		return nil
	})
}

// Resolve transitions an OPEN market past its deadline to a terminal status.
func (l *MarketLedger) Resolve(ctx context.Context, marketID string, status domain.MarketStatus, now int64) error {
	if !status.Terminal() {
		return ledger.ErrInvalidInput
	}

	return inTx(ctx, l.pool, func(tx pgx.Tx) error {
		m, err := lockMarket(ctx, tx, marketID)
		if err != nil {
			return err
		}
		if m.Status.Terminal() {
			return ledger.ErrMarketTerminal
		}
		if now < m.Deadline {
			return ledger.ErrDeadlineNotReached
		}

		query := `UPDATE markets SET status = $2 WHERE market_id = $1`
		if _, err := tx.Exec(ctx, query, marketID, string(status)); err != nil {
			return fmt.Errorf("update market status: %w", err)
		}
		return nil
	})
}

// Claim pays the caller's share of a terminal market exactly once. The
// claim row's primary key is the once-only guard.
func (l *MarketLedger) Claim(ctx context.Context, marketID, user string) (*uint256.Int, error) {
	if user == "" {
		return nil, ledger.ErrInvalidInput
	}

	var payout *uint256.Int
	err := inTx(ctx, l.pool, func(tx pgx.Tx) error {
		m, err := lockMarket(ctx, tx, marketID)
		if err != nil {
			return err
		}
		if !m.Status.Terminal() {
			return ledger.ErrMarketTerminal
		}

		yes, no, err := readStake(ctx, tx, marketID, user)
		if err != nil {
			return err
		}

		payout, err = market.Payout(m, yes, no)
		if err != nil {
			return err
		}

		claimQuery := `
			INSERT INTO market_claims (market_id, "user", amount)
			VALUES ($1, $2, $3::numeric)
		`
		if _, err := tx.Exec(ctx, claimQuery, marketID, user, payout.Dec()); err != nil {
			if isDuplicateKeyError(err) {
				return ledger.ErrAlreadyClaimed
			}
			return fmt.Errorf("insert claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// StakeOf retrieves (yesStake, noStake) for a user on a market.
func (l *MarketLedger) StakeOf(ctx context.Context, marketID, user string) (*uint256.Int, *uint256.Int, error) {
	if _, err := l.GetMarket(ctx, marketID); err != nil {
		return nil, nil, err
	}

	var yesStr, noStr string
	query := `
		SELECT yes_stake::text, no_stake::text FROM market_stakes
		WHERE market_id = $1 AND "user" = $2
	`
	err := l.pool.QueryRow(ctx, query, marketID, user).Scan(&yesStr, &noStr)
	if err != nil {
		if isNotFoundError(err) {
			return new(uint256.Int), new(uint256.Int), nil
		}
		return nil, nil, fmt.Errorf("get stake: %w", err)
	}
	return parseStakePair(yesStr, noStr)
}

// readStake reads one user's position inside a transaction. A missing
// row is a zero position.
func readStake(ctx context.Context, tx pgx.Tx, marketID, user string) (*uint256.Int, *uint256.Int, error) {
	var yesStr, noStr string
	query := `
		SELECT yes_stake::text, no_stake::text FROM market_stakes
		WHERE market_id = $1 AND "user" = $2
	`
	err := tx.QueryRow(ctx, query, marketID, user).Scan(&yesStr, &noStr)
	if err != nil {
		if isNotFoundError(err) {
			return new(uint256.Int), new(uint256.Int), nil
		}
		return nil, nil, fmt.Errorf("get stake: %w", err)
	}
	return parseStakePair(yesStr, noStr)
}

func parseStakePair(yesStr, noStr string) (*uint256.Int, *uint256.Int, error) {
	yes, err := uint256.FromDecimal(yesStr)
	if err != nil {
		return nil, nil, fmt.Errorf("parse yes stake %q: %w", yesStr, err)
	}
	no, err := uint256.FromDecimal(noStr)
	if err != nil {
		return nil, nil, fmt.Errorf("parse no stake %q: %w", noStr, err)
	}
	return yes, no, nil
}

// lockMarket reads one market row under FOR UPDATE.
func lockMarket(ctx context.Context, tx pgx.Tx, marketID string) (*domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE market_id = $1 FOR UPDATE`
	return scanMarket(tx.QueryRow(ctx, query, marketID))
}

// scanMarket scans a single market row with stake totals cast to text.
func scanMarket(row pgx.Row) (*domain.Market, error) {
	var (
		m                             domain.Market
		metricStr, compStr, statusStr string
		yesStr, noStr                 string
	)
	err := row.Scan(
		&m.MarketID,
		&m.AgentID,
		&metricStr,
		&compStr,
		&m.Threshold,
		&m.Deadline,
		&m.Creator,
		&m.CreatedAt,
		&statusStr,
		&yesStr,
		&noStr,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("scan market row: %w", err)
	}

	m.Metric = domain.MetricSelector(metricStr)
	m.Comparison = domain.Comparison(compStr)
	m.Status = domain.MarketStatus(statusStr)
	m.TotalYesStake, m.TotalNoStake, err = parseStakePair(yesStr, noStr)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
