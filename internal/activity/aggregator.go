package activity

import (
	"context"
	"fmt"

	"agent-performance-lab/internal/domain"
)

// DefaultFetchLimit bounds external fetches per agent per tick; the
// execution environment caps both fetches and wall-clock time.
const DefaultFetchLimit = 500

// Aggregator normalizes raw transactions into an ActivitySnapshot.
// An optional fallback source (typically replayed ledger events) keeps
// the pipeline moving when the external indexer is down; snapshots built
// from the fallback are marked unhealthy so dashboards can tell the two
// apart.
type Aggregator struct {
	source     Source
	fallback   Source // may be nil
	fetchLimit int
}

// NewAggregator creates an aggregator over the primary source.
func NewAggregator(source Source) *Aggregator {
	return &Aggregator{source: source, fetchLimit: DefaultFetchLimit}
}

// WithFallback sets the secondary source used when the primary fails.
func (a *Aggregator) WithFallback(fallback Source) *Aggregator {
	a.fallback = fallback
	return a
}

// WithFetchLimit overrides the per-agent fetch budget.
func (a *Aggregator) WithFetchLimit(n int) *Aggregator {
	a.fetchLimit = n
	return a
}

// Aggregate fetches and normalizes one agent's activity. Only successful
// transactions whose action is in the agent's capability set count.
func (a *Aggregator) Aggregate(ctx context.Context, agentID, wallet string, caps domain.CapabilitySet) (*domain.ActivitySnapshot, error) {
	healthy := true
	txs, err := a.source.Transactions(ctx, wallet, a.fetchLimit)
	if err != nil {
		if a.fallback == nil {
			return nil, fmt.Errorf("activity fetch for %s: %w", agentID, err)
		}
		txs, err = a.fallback.Transactions(ctx, wallet, a.fetchLimit)
		if err != nil {
			return nil, fmt.Errorf("activity fetch for %s (fallback): %w", agentID, err)
		}
		healthy = false
	}

	return Normalize(agentID, txs, caps, healthy), nil
}

// Normalize reduces transactions to counts. Pure: same inputs, same
// snapshot, regardless of transaction order.
func Normalize(agentID string, txs []domain.WalletTransaction, caps domain.CapabilitySet, healthy bool) *domain.ActivitySnapshot {
	snap := &domain.ActivitySnapshot{
		AgentID:       agentID,
		SourceHealthy: healthy,
	}

	for _, tx := range txs {
		if !tx.Success {
			continue
		}
		if !caps.Enabled(tx.Action) {
			continue
		}

		snap.Trades++
		if tx.NetUSD > 0 {
			snap.Wins++
		}
		snap.VolumeUSD += tx.GrossUSD
		snap.ProfitUSD += tx.NetUSD
		if tx.Timestamp > snap.LastActiveAt {
			snap.LastActiveAt = tx.Timestamp
		}
	}

	return snap
}
