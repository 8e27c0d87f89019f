// Package stub provides a canned activity source for tests and the
// fixture pipeline.
package stub

import (
	"context"
	"sync"

	"agent-performance-lab/internal/activity"
	"agent-performance-lab/internal/domain"
)

// Source serves pre-loaded transactions per wallet.
type Source struct {
	mu   sync.RWMutex
	data map[string][]domain.WalletTransaction
	err  error
}

// NewSource creates an empty stub source.
func NewSource() *Source {
	return &Source{data: make(map[string][]domain.WalletTransaction)}
}

// Load replaces the canned transactions for a wallet.
func (s *Source) Load(wallet string, txs []domain.WalletTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[wallet] = txs
}

// Fail makes every subsequent fetch return err (nil restores success).
func (s *Source) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Transactions returns the canned history, truncated to limit.
func (s *Source) Transactions(_ context.Context, wallet string, limit int) ([]domain.WalletTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}

	txs := s.data[wallet]
	if limit > 0 && len(txs) > limit {
		txs = txs[len(txs)-limit:]
	}
	out := make([]domain.WalletTransaction, len(txs))
	copy(out, txs)
	return out, nil
}

// Verify interface compliance at compile time.
var _ activity.Source = (*Source)(nil)
