package ledger

import (
	"context"

	"agent-performance-lab/internal/domain"
)

// MetricsHistoryStore is the append-only audit trail of accepted metric
// commits. It is written best-effort after the ledger write succeeds and
// is never read back by the pipeline itself.
type MetricsHistoryStore interface {
	// Insert appends one commit record.
	Insert(ctx context.Context, rec *domain.MetricsHistoryRecord) error

	// GetByAgent retrieves up to limit records for an agent, newest first.
	GetByAgent(ctx context.Context, agentID string, limit int) ([]*domain.MetricsHistoryRecord, error)
}

// ResolutionHistoryStore is the append-only audit trail of market
// resolutions.
type ResolutionHistoryStore interface {
	// Insert appends one resolution record.
	Insert(ctx context.Context, rec *domain.ResolutionRecord) error

	// GetByAgent retrieves up to limit records for an agent, newest first.
	GetByAgent(ctx context.Context, agentID string, limit int) ([]*domain.ResolutionRecord, error)
}
