package memory

import (
	"context"
	"sync/atomic"

	"agent-performance-lab/internal/ledger"
)

// HeightSource is an in-memory finalized-height counter. Tests and the
// fixture pipeline advance it explicitly; a real deployment reads the
// chain's finalized head instead.
type HeightSource struct {
	height atomic.Int64
}

// NewHeightSource creates a height source starting at the given height.
func NewHeightSource(start int64) *HeightSource {
	s := &HeightSource{}
	s.height.Store(start)
	return s
}

// FinalizedHeight returns the current finalized height.
func (s *HeightSource) FinalizedHeight(_ context.Context) (int64, error) {
	return s.height.Load(), nil
}

// Advance moves the finalized height forward by n and returns the new height.
func (s *HeightSource) Advance(n int64) int64 {
	return s.height.Add(n)
}

// Verify interface compliance at compile time.
var _ ledger.HeightSource = (*HeightSource)(nil)
