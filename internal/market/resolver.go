package market

import (
	"context"
	"errors"
	"fmt"
	"log"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// Resolver evaluates due markets against committed metrics and
// transitions them to their terminal state. It runs on its own schedule
// or on a threshold-crossing trigger, independent of the metric tracker.
type Resolver struct {
	markets ledger.MarketLedger
	metrics ledger.MetricsLedger
	history ledger.ResolutionHistoryStore // may be nil
	verbose bool
}

// NewResolver creates a Resolver over the given ledgers.
func NewResolver(markets ledger.MarketLedger, metrics ledger.MetricsLedger) *Resolver {
	return &Resolver{markets: markets, metrics: metrics}
}

// WithHistory attaches an audit sink for terminal transitions. Sink
// failures are logged, never propagated: a resolution stands on its own.
func (r *Resolver) WithHistory(history ledger.ResolutionHistoryStore) *Resolver {
	r.history = history
	return r
}

// WithVerbose enables per-market logging.
func (r *Resolver) WithVerbose(v bool) *Resolver {
	r.verbose = v
	return r
}

// RunResult summarizes one resolver pass.
type RunResult struct {
	Resolved  int
	Cancelled int
	Pending   int // not yet past deadline
	Errors    []string
}

// Run resolves every OPEN market whose deadline has passed. Markets are
// independent: one failed resolution never blocks the rest.
func (r *Resolver) Run(ctx context.Context, now int64) *RunResult {
	result := &RunResult{}

	open, err := r.markets.ListOpenMarkets(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list open markets: %v", err))
		return result
	}

	for _, m := range open {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("resolve %s: %v", m.MarketID, err))
			return result
		}
		if m.Deadline > now {
			result.Pending++
			continue
		}

		status, err := r.resolveOne(ctx, m, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("resolve %s: %v", m.MarketID, err))
			continue
		}
		if status == domain.MarketStatusCancelled {
			result.Cancelled++
		} else {
			result.Resolved++
		}
	}

	return result
}

// ResolveMarket resolves a single market by id, used by the
// threshold-crossing trigger path.
func (r *Resolver) ResolveMarket(ctx context.Context, marketID string, now int64) (domain.MarketStatus, error) {
	m, err := r.markets.GetMarket(ctx, marketID)
	if err != nil {
		return "", err
	}
	if m.Status.Terminal() {
		return m.Status, ledger.ErrMarketTerminal
	}
	if m.Deadline > now {
		return m.Status, ledger.ErrDeadlineNotReached
	}
	return r.resolveOne(ctx, m, now)
}

// resolveOne decides and writes one market's terminal status.
func (r *Resolver) resolveOne(ctx context.Context, m *domain.Market, now int64) (domain.MarketStatus, error) {
	// The no-liquidity guard fires before any metric read: an empty pool
	// cancels even when the agent has no committed snapshot.
	var committed *domain.PerformanceMetrics
	if !m.TotalPool().IsZero() {
		var err error
		committed, err = r.metrics.GetMetrics(ctx, m.AgentID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return "", fmt.Errorf("agent %s has no committed metrics: %w", m.AgentID, err)
			}
			return "", err
		}
	}

	status := Outcome(m, committed)
	if err := r.markets.Resolve(ctx, m.MarketID, status, now); err != nil {
		return "", err
	}

	if r.history != nil {
		rec := &domain.ResolutionRecord{
			MarketID:      m.MarketID,
			AgentID:       m.AgentID,
			Metric:        string(m.Metric),
			Status:        string(status),
			Threshold:     m.Threshold,
			TotalYesStake: m.TotalYesStake.Dec(),
			TotalNoStake:  m.TotalNoStake.Dec(),
			ResolvedAt:    now,
		}
		if err := r.history.Insert(ctx, rec); err != nil {
			log.Printf("[resolver] history for market %s: %v", m.MarketID, err)
		}
	}

	r.log("market %s: %s (agent %s, metric %s)", m.MarketID, status, m.AgentID, m.Metric)
	return status, nil
}

func (r *Resolver) log(format string, args ...interface{}) {
	if r.verbose {
		log.Printf("[resolver] "+format, args...)
	}
}
