package consensus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// Aggregate folds independent party outputs into one signed report.
// All outputs must carry the same digest: a single divergent party means
// the inputs were not read at the same finalized height (or the engine
// is non-deterministic) and the whole commit is aborted.
// Returns (nil, false, nil) when the parties agreed the tick is a no-op.
func Aggregate(height int64, outputs []*PartyOutput, threshold int) (*domain.SignedReport, bool, error) {
	if len(outputs) == 0 {
		return nil, false, ErrNoQuorum
	}

	first := outputs[0]
	for _, out := range outputs[1:] {
		if out.ReportID != first.ReportID {
			return nil, false, fmt.Errorf("%w: %s vs %s", ErrDivergentOutputs, first.ReportID, out.ReportID)
		}
	}

	if !first.Changed {
		return nil, false, nil
	}

	if len(outputs) < threshold {
		return nil, false, fmt.Errorf("%w: %d of %d", ErrNoQuorum, len(outputs), threshold)
	}

	sigs := make([]domain.PartySignature, 0, len(outputs))
	for _, out := range outputs {
		sigs = append(sigs, out.Signature)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].SignerIndex < sigs[j].SignerIndex })

	return &domain.SignedReport{
		ReportID:   first.ReportID,
		AgentID:    first.Metrics.AgentID,
		Height:     height,
		Metrics:    first.Metrics,
		Signatures: sigs,
	}, true, nil
}

// Committer submits aggregate reports to the metrics ledger, at most
// one accepted state transition per report. Resubmitting a report whose
// digest already went through is skipped entirely, so a retried tick
// never double-writes.
type Committer struct {
	metrics   ledger.MetricsLedger
	submitter string

	mu            sync.Mutex
	lastCommitted map[string]string // agentID -> last accepted report id
}

// NewCommitter creates a Committer writing as the given principal.
func NewCommitter(metrics ledger.MetricsLedger, submitter string) *Committer {
	return &Committer{
		metrics:       metrics,
		submitter:     submitter,
		lastCommitted: make(map[string]string),
	}
}

// Commit submits one signed report. The ledger re-verifies the quorum
// and the submitter before mutating anything; a rejection leaves the
// stored snapshot untouched. Returns true when a write was accepted and
// false for the duplicate-report skip.
func (c *Committer) Commit(ctx context.Context, report *domain.SignedReport) (bool, error) {
	c.mu.Lock()
	if c.lastCommitted[report.AgentID] == report.ReportID {
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Unlock()

	if err := c.metrics.UpdateMetrics(ctx, c.submitter, report); err != nil {
		return false, fmt.Errorf("submit report %s: %w", report.ReportID, err)
	}

	c.mu.Lock()
	c.lastCommitted[report.AgentID] = report.ReportID
	c.mu.Unlock()
	return true, nil
}
