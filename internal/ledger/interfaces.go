package ledger

import (
	"context"

	"github.com/holiman/uint256"

	"agent-performance-lab/internal/domain"
)

// ReportVerifier checks a signed report's aggregate signature against the
// registered signer set. Implemented by the consensus signer set and
// injected into metrics ledgers so the write gate and the quorum check
// live behind one principal.
type ReportVerifier interface {
	VerifyReport(report *domain.SignedReport) error
}

// HeightSource reports the latest finalized ledger height. Reads pinned
// to a finalized height are stable: a pending tip would let independent
// parties observe different inputs and break consensus.
type HeightSource interface {
	FinalizedHeight(ctx context.Context) (int64, error)
}

// RegistryLedger provides access to the external agent registry.
// This core only ever writes through Deactivate (liveness monitor).
type RegistryLedger interface {
	// Register adds a new agent. Returns ErrDuplicateKey if agent_id exists.
	Register(ctx context.Context, a *domain.AgentRecord) error

	// GetAgent retrieves an agent by id. Returns ErrNotFound if not exists.
	GetAgent(ctx context.Context, agentID string) (*domain.AgentRecord, error)

	// GetActiveAgentIDs retrieves ids of all active agents, sorted ascending.
	GetActiveAgentIDs(ctx context.Context) ([]string, error)

	// Deactivate clears the active flag. Idempotent; ErrNotFound if absent.
	Deactivate(ctx context.Context, agentID string) error
}

// MetricsLedger holds the single committed metric snapshot per agent.
type MetricsLedger interface {
	// GetMetrics retrieves the committed snapshot. Returns ErrNotFound
	// for agents that were never committed.
	GetMetrics(ctx context.Context, agentID string) (*domain.PerformanceMetrics, error)

	// UpdateMetrics overwrites the stored snapshot with the report's
	// metrics and increments the update counter. The write is rejected
	// atomically with ErrUnauthorized for a wrong submitter and
	// ErrInvalidReport for a failed quorum check; no field is partially
	// written.
	UpdateMetrics(ctx context.Context, submitter string, report *domain.SignedReport) error
}

// CurveLedger manages one bonding curve per agent plus trader balances.
// Buy and Sell mutate supply and reserve atomically: no reader ever
// observes one without the matching change to the other.
type CurveLedger interface {
	// Deploy creates a curve for an agent. Returns ErrDuplicateKey if one exists.
	Deploy(ctx context.Context, agentID string, basePrice, slope *uint256.Int) error

	// GetCurve retrieves current curve state. Returns ErrNotFound if no
	// curve is deployed for the agent.
	GetCurve(ctx context.Context, agentID string) (*domain.CurveState, error)

	// GetBuyPrice quotes the integral cost of buying amount base units.
	GetBuyPrice(ctx context.Context, agentID string, amount *uint256.Int) (*uint256.Int, error)

	// GetSellRefund quotes the integral refund for selling amount base units.
	GetSellRefund(ctx context.Context, agentID string, amount *uint256.Int) (*uint256.Int, error)

	// Buy mints amount base units to trader against payment wei.
	// Returns the exact cost charged; the excess is returned as change.
	// Fails with ErrInsufficientPayment when payment < cost.
	Buy(ctx context.Context, agentID, trader string, amount, payment *uint256.Int) (*uint256.Int, error)

	// Sell burns amount base units from trader and returns the refund wei.
	// Fails with ErrInsufficientBalance or ErrInsufficientReserve.
	Sell(ctx context.Context, agentID, trader string, amount *uint256.Int) (*uint256.Int, error)

	// BalanceOf retrieves trader's token balance on the agent's curve.
	BalanceOf(ctx context.Context, agentID, trader string) (*uint256.Int, error)

	// AdjustSlope sets a new slope without touching supply or reserve.
	// Gated on the registered writer principal; ErrSlopeOutOfRange for
	// slopes outside [MinSlope, MaxSlope].
	AdjustSlope(ctx context.Context, submitter, agentID string, newSlope *uint256.Int) error
}

// MarketLedger is the prediction-market contract surface.
type MarketLedger interface {
	// CreateMarket stores a new OPEN market. Returns ErrDeadlineTooSoon
	// when the deadline is not beyond the minimum lead time and
	// ErrInvalidInput for unknown metric/comparison combinations.
	CreateMarket(ctx context.Context, m *domain.Market) error

	// GetMarket retrieves a market by id. Returns ErrNotFound if absent.
	GetMarket(ctx context.Context, marketID string) (*domain.Market, error)

	// ListOpenMarkets retrieves all OPEN markets sorted by deadline ASC.
	ListOpenMarkets(ctx context.Context) ([]*domain.Market, error)

	// BetYes adds stake wei to the YES side. Only while OPEN and strictly
	// before the deadline; zero amounts rejected with ErrZeroAmount.
	BetYes(ctx context.Context, marketID, user string, amount *uint256.Int, now int64) error

	// BetNo adds stake to the NO side, same rules as BetYes.
	BetNo(ctx context.Context, marketID, user string, amount *uint256.Int, now int64) error

	// Resolve transitions an OPEN market past its deadline to the given
	// terminal status. Returns ErrMarketTerminal if already resolved and
	// ErrDeadlineNotReached before the deadline.
	Resolve(ctx context.Context, marketID string, status domain.MarketStatus, now int64) error

	// Claim pays the caller's share of a terminal market exactly once.
	// Returns the payout wei; ErrAlreadyClaimed on repeat calls and
	// ErrNothingToClaim when the user has nothing on the paying side.
	Claim(ctx context.Context, marketID, user string) (*uint256.Int, error)

	// StakeOf retrieves (yesStake, noStake) for a user on a market.
	StakeOf(ctx context.Context, marketID, user string) (*uint256.Int, *uint256.Int, error)
}
