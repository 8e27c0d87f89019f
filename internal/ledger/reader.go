package ledger

import (
	"context"
	"errors"
	"fmt"

	"agent-performance-lab/internal/domain"
)

// Reader assembles the raw ledger inputs for one agent at a pinned
// finalized height. It never mutates anything.
type Reader struct {
	heights HeightSource
	metrics MetricsLedger
	curves  CurveLedger
}

// NewReader creates a ledger reader over the given ledgers.
func NewReader(heights HeightSource, metrics MetricsLedger, curves CurveLedger) *Reader {
	return &Reader{heights: heights, metrics: metrics, curves: curves}
}

// AgentState is the ledger-side half of a computation snapshot.
type AgentState struct {
	Height   int64
	Previous *domain.PerformanceMetrics // nil when never committed
	Curve    *domain.CurveState         // nil when no curve is deployed
}

// PinHeight resolves the finalized height all reads of this tick pin to.
func (r *Reader) PinHeight(ctx context.Context) (int64, error) {
	height, err := r.heights.FinalizedHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("finalized height: %w", err)
	}
	return height, nil
}

// ReadAgent reads committed metrics and curve state for one agent at the
// given pinned height. A missing snapshot or curve is not an error: the
// caller distinguishes "not yet configured" from a broken read.
func (r *Reader) ReadAgent(ctx context.Context, agentID string, height int64) (*AgentState, error) {
	state := &AgentState{Height: height}

	prev, err := r.metrics.GetMetrics(ctx, agentID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("read metrics for %s: %w", agentID, err)
	}
	state.Previous = prev

	curve, err := r.curves.GetCurve(ctx, agentID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("read curve for %s: %w", agentID, err)
	}
	state.Curve = curve

	return state, nil
}
