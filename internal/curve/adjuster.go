package curve

import (
	"context"
	"errors"
	"fmt"
	"log"

	"agent-performance-lab/internal/ledger"
)

// Adjuster is the scheduled slope-adjustment job. It consumes committed
// metrics and writes new slopes through the same authorized-writer gate
// as the metrics commits; it never touches supply or reserve.
type Adjuster struct {
	metrics   ledger.MetricsLedger
	curves    ledger.CurveLedger
	policy    SlopePolicy
	submitter string
	verbose   bool
}

// NewAdjuster creates an Adjuster writing as the given principal.
func NewAdjuster(metrics ledger.MetricsLedger, curves ledger.CurveLedger, policy SlopePolicy, submitter string) *Adjuster {
	return &Adjuster{
		metrics:   metrics,
		curves:    curves,
		policy:    policy,
		submitter: submitter,
	}
}

// WithVerbose enables per-agent logging.
func (a *Adjuster) WithVerbose(v bool) *Adjuster {
	a.verbose = v
	return a
}

// RunResult summarizes one adjuster pass.
type RunResult struct {
	Adjusted      int
	Skipped       int // new slope equals current slope
	NotConfigured int // no committed metrics or no deployed curve
	Errors        []string
}

// Run adjusts each agent's slope in sequence. One agent's failure never
// blocks the rest of the batch.
func (a *Adjuster) Run(ctx context.Context, agentIDs []string) *RunResult {
	result := &RunResult{}

	for _, agentID := range agentIDs {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("adjust %s: %v", agentID, err))
			return result
		}

		switch err := a.adjustOne(ctx, agentID); {
		case err == nil:
			result.Adjusted++
		case errors.Is(err, errSlopeUnchanged):
			result.Skipped++
		case errors.Is(err, ledger.ErrNotFound):
			result.NotConfigured++
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("adjust %s: %v", agentID, err))
		}
	}

	return result
}

// errSlopeUnchanged marks the intentional idempotent skip.
var errSlopeUnchanged = errors.New("slope unchanged")

// adjustOne computes and, when changed, writes one agent's new slope.
func (a *Adjuster) adjustOne(ctx context.Context, agentID string) error {
	m, err := a.metrics.GetMetrics(ctx, agentID)
	if err != nil {
		return err
	}

	state, err := a.curves.GetCurve(ctx, agentID)
	if err != nil {
		return err
	}

	newSlope := ClampSlope(a.policy.NewSlope(state.Slope, m))
	if newSlope.Eq(state.Slope) {
		a.log("agent %s: slope unchanged (%s), skipping write", agentID, newSlope.Dec())
		return errSlopeUnchanged
	}

	if err := a.curves.AdjustSlope(ctx, a.submitter, agentID, newSlope); err != nil {
		return fmt.Errorf("write slope: %w", err)
	}

	a.log("agent %s: slope %s -> %s (policy %s)", agentID, state.Slope.Dec(), newSlope.Dec(), a.policy.Name())
	return nil
}

func (a *Adjuster) log(format string, args ...interface{}) {
	if a.verbose {
		log.Printf("[adjuster] "+format, args...)
	}
}
