// Package activity turns raw wallet activity into normalized counts the
// metric engine consumes. Only successful transactions with recognized
// protocol actions count; plain transfers never move a metric.
package activity

import (
	"context"

	"agent-performance-lab/internal/domain"
)

// Source fetches decoded transaction history for a wallet. The fetch is
// the pipeline's only off-chain suspension point; failures are transient
// and retried on the next scheduled tick.
type Source interface {
	// Transactions returns decoded transactions for the wallet, newest
	// last. The limit bounds the external-fetch budget per invocation.
	Transactions(ctx context.Context, wallet string, limit int) ([]domain.WalletTransaction, error)
}
