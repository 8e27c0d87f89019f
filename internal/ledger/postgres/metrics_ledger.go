package postgres

import (
	"context"
	"fmt"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// MetricsLedger implements ledger.MetricsLedger using PostgreSQL.
// The authorized-writer gate and the quorum check run before any row is
// touched; the upsert itself is a single statement, so a rejected report
// never leaves a partial snapshot.
type MetricsLedger struct {
	pool      *Pool
	verifier  ledger.ReportVerifier
	submitter string
}

// NewMetricsLedger creates a MetricsLedger gated on the given verifier
// and authorized submitter.
func NewMetricsLedger(pool *Pool, verifier ledger.ReportVerifier, submitter string) *MetricsLedger {
	return &MetricsLedger{pool: pool, verifier: verifier, submitter: submitter}
}

// Compile-time interface check.
var _ ledger.MetricsLedger = (*MetricsLedger)(nil)

// GetMetrics retrieves the committed snapshot. Returns ErrNotFound for
// agents that were never committed.
func (l *MetricsLedger) GetMetrics(ctx context.Context, agentID string) (*domain.PerformanceMetrics, error) {
	query := `
		SELECT agent_id, roi_bps, win_rate_bps, max_drawdown_bps, sharpe_ratio_scaled,
		       tvl_managed, total_trades, last_updated, update_count
		FROM performance_metrics
		WHERE agent_id = $1
	`

	var m domain.PerformanceMetrics
	err := l.pool.QueryRow(ctx, query, agentID).Scan(
		&m.AgentID,
		&m.ROIBps,
		&m.WinRateBps,
		&m.MaxDrawdownBps,
		&m.SharpeRatioScaled,
		&m.TVLManaged,
		&m.TotalTrades,
		&m.LastUpdated,
		&m.UpdateCount,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("get metrics by agent id: %w", err)
	}
	return &m, nil
}

// UpdateMetrics overwrites the stored snapshot and increments the update
// counter in one upsert.
func (l *MetricsLedger) UpdateMetrics(ctx context.Context, submitter string, report *domain.SignedReport) error {
	if report == nil || report.Metrics == nil || report.AgentID == "" {
		return ledger.ErrInvalidInput
	}
	if submitter != l.submitter {
		return ledger.ErrUnauthorized
	}
	if err := l.verifier.VerifyReport(report); err != nil {
		return ledger.ErrInvalidReport
	}

	query := `
		INSERT INTO performance_metrics (
			agent_id, roi_bps, win_rate_bps, max_drawdown_bps, sharpe_ratio_scaled,
			tvl_managed, total_trades, last_updated, update_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		ON CONFLICT (agent_id) DO UPDATE SET
			roi_bps             = EXCLUDED.roi_bps,
			win_rate_bps        = EXCLUDED.win_rate_bps,
			max_drawdown_bps    = EXCLUDED.max_drawdown_bps,
			sharpe_ratio_scaled = EXCLUDED.sharpe_ratio_scaled,
			tvl_managed         = EXCLUDED.tvl_managed,
			total_trades        = EXCLUDED.total_trades,
			last_updated        = EXCLUDED.last_updated,
			update_count        = performance_metrics.update_count + 1
	`

	m := report.Metrics
	_, err := l.pool.Exec(ctx, query,
		report.AgentID,
		m.ROIBps,
		m.WinRateBps,
		m.MaxDrawdownBps,
		m.SharpeRatioScaled,
		m.TVLManaged,
		m.TotalTrades,
		m.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upsert metrics: %w", err)
	}
	return nil
}
