package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
	"agent-performance-lab/internal/market"
)

// stake holds one user's position on a market, in wei.
type stake struct {
	yes *uint256.Int
	no  *uint256.Int
}

// MarketLedger is an in-memory implementation of ledger.MarketLedger.
type MarketLedger struct {
	mu      sync.RWMutex
	markets map[string]*domain.Market    // keyed by market_id
	stakes  map[string]map[string]*stake // market_id -> user -> stake
	claimed map[string]map[string]bool   // market_id -> user -> claimed
}

// NewMarketLedger creates a new in-memory market ledger.
func NewMarketLedger() *MarketLedger {
	return &MarketLedger{
		markets: make(map[string]*domain.Market),
		stakes:  make(map[string]map[string]*stake),
		claimed: make(map[string]map[string]bool),
	}
}

// CreateMarket stores a new OPEN market.
func (l *MarketLedger) CreateMarket(_ context.Context, m *domain.Market) error {
	if err := market.ValidateCreate(m, m.CreatedAt); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.markets[m.MarketID]; exists {
		return ledger.ErrDuplicateKey
	}

	stored := *m
	stored.Status = domain.MarketStatusOpen
	stored.TotalYesStake = new(uint256.Int)
	stored.TotalNoStake = new(uint256.Int)
	l.markets[m.MarketID] = &stored
	l.stakes[m.MarketID] = make(map[string]*stake)
	l.claimed[m.MarketID] = make(map[string]bool)
	return nil
}

// GetMarket retrieves a market by id. Returns ErrNotFound if absent.
func (l *MarketLedger) GetMarket(_ context.Context, marketID string) (*domain.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, exists := l.markets[marketID]
	if !exists {
		return nil, ledger.ErrNotFound
	}
	return copyMarket(m), nil
}

// ListOpenMarkets retrieves all OPEN markets sorted by deadline ASC.
func (l *MarketLedger) ListOpenMarkets(_ context.Context) ([]*domain.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*domain.Market
	for _, m := range l.markets {
		if m.Status == domain.MarketStatusOpen {
			result = append(result, copyMarket(m))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Deadline != result[j].Deadline {
			return result[i].Deadline < result[j].Deadline
		}
		return result[i].MarketID < result[j].MarketID
	})
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

func (l *MarketLedger) bet(_ context.Context, marketID, user string, amount *uint256.Int, now int64, yes bool) error {
	if user == "" {
		return ledger.ErrInvalidInput
	}
	if amount == nil || amount.IsZero() {
		return ledger.ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, exists := l.markets[marketID]
	if !exists {
		return ledger.ErrNotFound
	}
	if m.Status.Terminal() {
		return ledger.ErrMarketTerminal
	}
	if now >= m.Deadline {
		return ledger.ErrDeadlinePassed
	}

	s, ok := l.stakes[marketID][user]
	if !ok {
		s = &stake{yes: new(uint256.Int), no: new(uint256.Int)}
		l.stakes[marketID][user] = s
	}
	if yes {
		s.yes.Add(s.yes, amount)
		m.TotalYesStake.Add(m.TotalYesStake, amount)
	} else {
		s.no.Add(s.no, amount)
		m.TotalNoStake.Add(m.TotalNoStake, amount)
	}
	return nil
}

// Resolve transitions an OPEN market past its deadline to a terminal status.
func (l *MarketLedger) Resolve(_ context.Context, marketID string, status domain.MarketStatus, now int64) error {
	if !status.Terminal() {
		return ledger.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, exists := l.markets[marketID]
	if !exists {
		return ledger.ErrNotFound
	}
	if m.Status.Terminal() {
		return ledger.ErrMarketTerminal
	}
	if now < m.Deadline {
		return ledger.ErrDeadlineNotReached
	}

	m.Status = status
	return nil
}

// Claim pays the caller's share of a terminal market exactly once.
func (l *MarketLedger) Claim(_ context.Context, marketID, user string) (*uint256.Int, error) {
	if user == "" {
		return nil, ledger.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, exists := l.markets[marketID]
	if !exists {
		return nil, ledger.ErrNotFound
	}
	if !m.Status.Terminal() {
		return nil, ledger.ErrMarketTerminal
	}
	if l.claimed[marketID][user] {
		return nil, ledger.ErrAlreadyClaimed
	}

	yes, no := new(uint256.Int), new(uint256.Int)
	if s, ok := l.stakes[marketID][user]; ok {
		yes, no = s.yes, s.no
	}

	payout, err := market.Payout(m, yes, no)
	if err != nil {
		return nil, err
	}

	// The claimed flag is set only after the payout computation succeeds,
	// and exactly once.
	l.claimed[marketID][user] = true
	return payout, nil
}

// StakeOf retrieves (yesStake, noStake) for a user on a market.
func (l *MarketLedger) StakeOf(_ context.Context, marketID, user string) (*uint256.Int, *uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, exists := l.markets[marketID]; !exists {
		return nil, nil, ledger.ErrNotFound
	}
	s, ok := l.stakes[marketID][user]
	if !ok {
		return new(uint256.Int), new(uint256.Int), nil
	}
	return s.yes.Clone(), s.no.Clone(), nil
}

// copyMarket clones a stored market including its stake totals, so no
// caller can mutate ledger state through a returned pointer.
func copyMarket(m *domain.Market) *domain.Market {
	stored := *m
	stored.TotalYesStake = m.TotalYesStake.Clone()
	stored.TotalNoStake = m.TotalNoStake.Clone()
	return &stored
}

// Verify interface compliance at compile time.
var _ ledger.MarketLedger = (*MarketLedger)(nil)
