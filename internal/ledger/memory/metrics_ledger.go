package memory

import (
	"context"
	"sync"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// MetricsLedger is an in-memory implementation of ledger.MetricsLedger.
// Writes go through the same authorized-writer gate and quorum check the
// on-chain contract enforces: wrong submitter or bad report mutates
// nothing.
type MetricsLedger struct {
	verifier  ledger.ReportVerifier
	submitter string // the single authorized writer principal

	mu   sync.RWMutex
	data map[string]*domain.PerformanceMetrics // keyed by agent_id
}

// NewMetricsLedger creates an in-memory metrics ledger gated on the
// given verifier and authorized submitter.
func NewMetricsLedger(verifier ledger.ReportVerifier, submitter string) *MetricsLedger {
	return &MetricsLedger{
		verifier:  verifier,
		submitter: submitter,
		data:      make(map[string]*domain.PerformanceMetrics),
	}
}

// GetMetrics retrieves the committed snapshot. Returns ErrNotFound for
// agents that were never committed.
func (l *MetricsLedger) GetMetrics(_ context.Context, agentID string) (*domain.PerformanceMetrics, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, exists := l.data[agentID]
	if !exists {
		return nil, ledger.ErrNotFound
	}

	snapshot := *m
	return &snapshot, nil
}

// UpdateMetrics overwrites the stored snapshot atomically. All checks
// run before any field is written, so a rejection is a pure no-op.
func (l *MetricsLedger) UpdateMetrics(_ context.Context, submitter string, report *domain.SignedReport) error {
	if report == nil || report.Metrics == nil || report.AgentID == "" {
		return ledger.ErrInvalidInput
	}
	if submitter != l.submitter {
		return ledger.ErrUnauthorized
	}
	if err := l.verifier.VerifyReport(report); err != nil {
		return ledger.ErrInvalidReport
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := *report.Metrics
	snapshot.AgentID = report.AgentID
	if prev, exists := l.data[report.AgentID]; exists {
		snapshot.UpdateCount = prev.UpdateCount + 1
	} else {
		snapshot.UpdateCount = 1
	}
	l.data[report.AgentID] = &snapshot
	return nil
}

// Verify interface compliance at compile time.
var _ ledger.MetricsLedger = (*MetricsLedger)(nil)
