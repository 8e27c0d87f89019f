package clickhouse

import (
	"context"
	"fmt"
	"time"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// MetricsHistoryStore implements ledger.MetricsHistoryStore using ClickHouse.
type MetricsHistoryStore struct {
	conn *Conn
}

// NewMetricsHistoryStore creates a new MetricsHistoryStore.
func NewMetricsHistoryStore(conn *Conn) *MetricsHistoryStore {
	return &MetricsHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ ledger.MetricsHistoryStore = (*MetricsHistoryStore)(nil)

// Insert appends one commit record.
func (s *MetricsHistoryStore) Insert(ctx context.Context, rec *domain.MetricsHistoryRecord) error {
	query := `
		INSERT INTO metrics_history (
			report_id, agent_id, height,
			roi_bps, win_rate_bps, max_drawdown_bps, sharpe_ratio_scaled,
			tvl_managed, total_trades, signer_count, committed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		rec.ReportID, rec.AgentID, rec.Height,
		rec.ROIBps, rec.WinRateBps, rec.MaxDrawdownBps, rec.SharpeRatioScaled,
		rec.TVLManaged, rec.TotalTrades, int32(rec.SignerCount), rec.CommittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert metrics history: %w", err)
	}
	return nil
}

// GetByAgent retrieves up to limit records for an agent, newest first.
func (s *MetricsHistoryStore) GetByAgent(ctx context.Context, agentID string, limit int) ([]*domain.MetricsHistoryRecord, error) {
	query := `
		SELECT report_id, agent_id, height,
		       roi_bps, win_rate_bps, max_drawdown_bps, sharpe_ratio_scaled,
		       tvl_managed, total_trades, signer_count, committed_at
		FROM metrics_history
		WHERE agent_id = ?
		ORDER BY committed_at DESC, height DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("get metrics history by agent: %w", err)
	}
	defer rows.Close()

	var records []*domain.MetricsHistoryRecord
	for rows.Next() {
		var (
			rec         domain.MetricsHistoryRecord
			signerCount int32
		)
		err := rows.Scan(
			&rec.ReportID, &rec.AgentID, &rec.Height,
			&rec.ROIBps, &rec.WinRateBps, &rec.MaxDrawdownBps, &rec.SharpeRatioScaled,
			&rec.TVLManaged, &rec.TotalTrades, &signerCount, &rec.CommittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metrics history row: %w", err)
		}
		rec.SignerCount = int(signerCount)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics history rows: %w", err)
	}
	return records, nil
}

// RecordCommit builds and appends a history record from a signed report,
// satisfying the tracker's history sink.
func (s *MetricsHistoryStore) RecordCommit(ctx context.Context, report *domain.SignedReport) error {
	m := report.Metrics
	return s.Insert(ctx, &domain.MetricsHistoryRecord{
		ReportID:          report.ReportID,
		AgentID:           report.AgentID,
		Height:            report.Height,
		ROIBps:            m.ROIBps,
		WinRateBps:        m.WinRateBps,
		MaxDrawdownBps:    m.MaxDrawdownBps,
		SharpeRatioScaled: m.SharpeRatioScaled,
		TVLManaged:        m.TVLManaged,
		TotalTrades:       m.TotalTrades,
		SignerCount:       len(report.Signatures),
		CommittedAt:       time.Now().UnixMilli(),
	})
}
