package domain

// WalletTransaction is one decoded transaction from the activity source.
type WalletTransaction struct {
	Signature string
	Action    Action // decoded action name; may be unrecognized
	Success   bool
	NetUSD    int64 // signed realized profit in micro-USD
	GrossUSD  int64 // unsigned notional volume in micro-USD
	Timestamp int64 // Unix timestamp in milliseconds
}

// ActivitySnapshot is the normalized view of an agent's verified activity,
// produced by the aggregator from ledger events plus fetched history.
// Counts include only successful transactions with recognized actions.
type ActivitySnapshot struct {
	AgentID       string
	Trades        int64
	Wins          int64
	VolumeUSD     int64 // micro-USD, sum of gross values
	ProfitUSD     int64 // micro-USD, signed sum of net values
	LastActiveAt  int64 // timestamp of most recent counted transaction, 0 if none
	SourceHealthy bool  // false when the external fetch failed and only ledger events were used
}

// ComputationSnapshot is the full input tuple for one metric computation.
// Ephemeral: rebuilt from the ledger every tick at a pinned finalized
// height and never cached across ticks.
type ComputationSnapshot struct {
	Height   int64 // finalized ledger height all reads were pinned to
	Previous *PerformanceMetrics
	Curve    *CurveState
	Activity *ActivitySnapshot
	Now      int64 // tick timestamp passed in, never read from the wall clock
}
