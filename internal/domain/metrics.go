package domain

// Basis-point bounds shared by all ratio metrics.
const (
	BpsMin = int64(0)
	BpsMax = int64(10000)
)

// PerformanceMetrics is the committed per-agent metric snapshot.
// Exactly one current snapshot exists per agent in the metrics ledger;
// each accepted commit overwrites it in place and bumps UpdateCount.
type PerformanceMetrics struct {
	AgentID           string
	ROIBps            int64 // signed, basis points
	WinRateBps        int64 // [0, 10000]
	MaxDrawdownBps    int64 // [0, 10000]
	SharpeRatioScaled int64 // Sharpe x100, never negative
	TVLManaged        int64 // micro-USD (1e6 = $1)
	TotalTrades       int64 // monotonically non-decreasing
	LastUpdated       int64 // Unix timestamp in milliseconds
	UpdateCount       int64 // ledger-side, incremented per accepted commit
}

// Equal reports whether every committed field matches m2.
// LastUpdated and UpdateCount are excluded: they change only as a
// consequence of an accepted commit and must not defeat the no-op guard.
func (m *PerformanceMetrics) Equal(m2 *PerformanceMetrics) bool {
	if m == nil || m2 == nil {
		return m == m2
	}
	return m.AgentID == m2.AgentID &&
		m.ROIBps == m2.ROIBps &&
		m.WinRateBps == m2.WinRateBps &&
		m.MaxDrawdownBps == m2.MaxDrawdownBps &&
		m.SharpeRatioScaled == m2.SharpeRatioScaled &&
		m.TVLManaged == m2.TVLManaged &&
		m.TotalTrades == m2.TotalTrades
}
