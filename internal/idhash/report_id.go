package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"agent-performance-lab/internal/domain"
)

// ComputeReportID computes the deterministic consensus report digest
// using SHA256 over a canonical field serialization. Every computing
// party must derive the same digest from the same snapshot; a single
// divergent field yields a different digest and breaks quorum.
// Formula: SHA256(agent_id|height|roi|win_rate|max_drawdown|sharpe|tvl|total_trades)
// Returns hex-encoded hash (64 characters).
func ComputeReportID(agentID string, height int64, m *domain.PerformanceMetrics) string {
	data := fmt.Sprintf("%s|%d|%d|%d|%d|%d|%d|%d",
		agentID,
		height,
		m.ROIBps,
		m.WinRateBps,
		m.MaxDrawdownBps,
		m.SharpeRatioScaled,
		m.TVLManaged,
		m.TotalTrades,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
