package domain

// MetricsHistoryRecord is one accepted metric commit, kept append-only
// for audit. The ledgers store only the latest snapshot; history lives
// in the analytical store.
type MetricsHistoryRecord struct {
	ReportID          string
	AgentID           string
	Height            int64
	ROIBps            int64
	WinRateBps        int64
	MaxDrawdownBps    int64
	SharpeRatioScaled int64
	TVLManaged        int64
	TotalTrades       int64
	SignerCount       int
	CommittedAt       int64 // Unix milliseconds
}

// ResolutionRecord is one market's terminal transition, kept append-only
// for audit. Stake totals are wei-denominated decimal strings, too wide
// for an integer column.
type ResolutionRecord struct {
	MarketID      string
	AgentID       string
	Metric        string
	Status        string
	Threshold     int64
	TotalYesStake string
	TotalNoStake  string
	ResolvedAt    int64 // Unix milliseconds
}
