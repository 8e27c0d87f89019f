// Package tracker orchestrates the per-tick pipeline: pin a finalized
// height, read ledger state and wallet activity per agent, run the
// parties, aggregate their signatures, and commit the report. Every tick
// is stateless with respect to the ledgers; only the rotation cursor and
// the committer's dedup cache live in process.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"agent-performance-lab/internal/activity"
	"agent-performance-lab/internal/consensus"
	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// HistorySink receives every accepted commit for out-of-band audit
// storage. Sink failures are reported but never roll back a commit.
type HistorySink interface {
	RecordCommit(ctx context.Context, report *domain.SignedReport) error
}

// Runner drives one scheduled tick over the active agent set.
type Runner struct {
	registry   ledger.RegistryLedger
	reader     *ledger.Reader
	aggregator *activity.Aggregator
	parties    []*consensus.Party
	committer  *consensus.Committer
	threshold  int

	history HistorySink // may be nil
	verbose bool

	// Rotation window: when the active set exceeds maxAgentsPerTick the
	// runner round-robins through it across ticks.
	maxAgentsPerTick int
	mu               sync.Mutex
	cursor           int
}

// NewRunner creates a tick runner. threshold is the m of the m-of-n
// quorum and must not exceed len(parties).
func NewRunner(
	registry ledger.RegistryLedger,
	reader *ledger.Reader,
	aggregator *activity.Aggregator,
	parties []*consensus.Party,
	committer *consensus.Committer,
	threshold int,
) *Runner {
	return &Runner{
		registry:   registry,
		reader:     reader,
		aggregator: aggregator,
		parties:    parties,
		committer:  committer,
		threshold:  threshold,
	}
}

// WithHistorySink attaches an audit sink for accepted commits.
func (r *Runner) WithHistorySink(sink HistorySink) *Runner {
	r.history = sink
	return r
}

// WithMaxAgentsPerTick caps how many agents one tick processes (0 means
// the whole active set every tick).
func (r *Runner) WithMaxAgentsPerTick(n int) *Runner {
	r.maxAgentsPerTick = n
	return r
}

// WithVerbose enables per-agent logging.
func (r *Runner) WithVerbose(v bool) *Runner {
	r.verbose = v
	return r
}

// TickResult summarizes one tick. An agent lands in exactly one bucket.
type TickResult struct {
	Height        int64
	Processed     int
	Committed     int
	NoOps         int
	Duplicates    int
	NotConfigured int
	Errors        []string
}

// Run processes the current rotation window of active agents at one
// pinned height. Per-agent failures are collected, never fatal: one
// broken agent must not starve the rest of the window.
func (r *Runner) Run(ctx context.Context, now int64) (*TickResult, error) {
	height, err := r.reader.PinHeight(ctx)
	if err != nil {
		return nil, err
	}
	result := &TickResult{Height: height}

	ids, err := r.registry.GetActiveAgentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}

	for _, agentID := range r.window(ids) {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("agent %s: %v", agentID, err))
			return result, nil
		}
		result.Processed++
		r.processAgent(ctx, agentID, height, now, result)
	}

	r.log("tick at height %d: %d processed, %d committed, %d no-op, %d skipped, %d errors",
		height, result.Processed, result.Committed, result.NoOps, result.NotConfigured, len(result.Errors))
	return result, nil
}

// window returns the slice of agents this tick covers, advancing the
// round-robin cursor when a cap is set.
func (r *Runner) window(ids []string) []string {
	if r.maxAgentsPerTick <= 0 || len(ids) <= r.maxAgentsPerTick {
		return ids
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.cursor % len(ids)
	out := make([]string, 0, r.maxAgentsPerTick)
	for i := 0; i < r.maxAgentsPerTick; i++ {
		out = append(out, ids[(start+i)%len(ids)])
	}
	r.cursor = (start + r.maxAgentsPerTick) % len(ids)
	return out
}

func (r *Runner) processAgent(ctx context.Context, agentID string, height, now int64, result *TickResult) {
	agent, err := r.registry.GetAgent(ctx, agentID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("agent %s: %v", agentID, err))
		return
	}

	state, err := r.reader.ReadAgent(ctx, agentID, height)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("agent %s: %v", agentID, err))
		return
	}
	if state.Curve == nil {
		// No curve deployed yet: nothing to price against, not a failure.
		result.NotConfigured++
		return
	}

	snap, err := r.aggregator.Aggregate(ctx, agentID, agent.Wallet, domain.DefaultCapabilities())
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("agent %s: %v", agentID, err))
		return
	}

	csnap := &domain.ComputationSnapshot{
		Height:   height,
		Previous: state.Previous,
		Curve:    state.Curve,
		Activity: snap,
		Now:      now,
	}

	outputs := make([]*consensus.PartyOutput, 0, len(r.parties))
	for _, party := range r.parties {
		outputs = append(outputs, party.Compute(csnap))
	}

	report, changed, err := consensus.Aggregate(height, outputs, r.threshold)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("agent %s: aggregate: %v", agentID, err))
		return
	}
	if !changed {
		result.NoOps++
		return
	}

	accepted, err := r.committer.Commit(ctx, report)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("agent %s: %v", agentID, err))
		return
	}
	if !accepted {
		result.Duplicates++
		return
	}
	result.Committed++
	r.log("agent %s committed report %s at height %d", agentID, report.ReportID, height)

	if r.history != nil {
		if err := r.history.RecordCommit(ctx, report); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			result.Errors = append(result.Errors, fmt.Sprintf("agent %s: history: %v", agentID, err))
		}
	}
}

func (r *Runner) log(format string, args ...interface{}) {
	if r.verbose {
		log.Printf("[tracker] "+format, args...)
	}
}
