package clickhouse

import (
	"context"
	"fmt"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// ResolutionHistoryStore implements ledger.ResolutionHistoryStore using ClickHouse.
type ResolutionHistoryStore struct {
	conn *Conn
}

// NewResolutionHistoryStore creates a new ResolutionHistoryStore.
func NewResolutionHistoryStore(conn *Conn) *ResolutionHistoryStore {
	return &ResolutionHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ ledger.ResolutionHistoryStore = (*ResolutionHistoryStore)(nil)

// Insert appends one resolution record.
func (s *ResolutionHistoryStore) Insert(ctx context.Context, rec *domain.ResolutionRecord) error {
	query := `
		INSERT INTO resolution_history (
			market_id, agent_id, metric, status, threshold,
			total_yes_stake, total_no_stake, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		rec.MarketID, rec.AgentID, rec.Metric, rec.Status, rec.Threshold,
		rec.TotalYesStake, rec.TotalNoStake, rec.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert resolution history: %w", err)
	}
	return nil
}

// GetByAgent retrieves up to limit records for an agent, newest first.
func (s *ResolutionHistoryStore) GetByAgent(ctx context.Context, agentID string, limit int) ([]*domain.ResolutionRecord, error) {
	query := `
		SELECT market_id, agent_id, metric, status, threshold,
		       total_yes_stake, total_no_stake, resolved_at
		FROM resolution_history
		WHERE agent_id = ?
		ORDER BY resolved_at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("get resolution history by agent: %w", err)
	}
	defer rows.Close()

	var records []*domain.ResolutionRecord
	for rows.Next() {
		var rec domain.ResolutionRecord
		err := rows.Scan(
			&rec.MarketID, &rec.AgentID, &rec.Metric, &rec.Status, &rec.Threshold,
			&rec.TotalYesStake, &rec.TotalNoStake, &rec.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan resolution history row: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolution history rows: %w", err)
	}
	return records, nil
}
