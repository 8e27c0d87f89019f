package postgres

import (
	"context"
	"fmt"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// RegistryLedger implements ledger.RegistryLedger using PostgreSQL.
type RegistryLedger struct {
	pool *Pool
}

// NewRegistryLedger creates a new RegistryLedger.
func NewRegistryLedger(pool *Pool) *RegistryLedger {
	return &RegistryLedger{pool: pool}
}

// Compile-time interface check.
var _ ledger.RegistryLedger = (*RegistryLedger)(nil)

// Register adds a new agent. Returns ErrDuplicateKey if agent_id exists.
func (l *RegistryLedger) Register(ctx context.Context, a *domain.AgentRecord) error {
	if a == nil || a.AgentID == "" {
		return ledger.ErrInvalidInput
	}

	query := `
		INSERT INTO agents (agent_id, wallet, is_active, registered_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := l.pool.Exec(ctx, query, a.AgentID, a.Wallet, a.IsActive, a.RegisteredAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ledger.ErrDuplicateKey
		}
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by id. Returns ErrNotFound if not exists.
func (l *RegistryLedger) GetAgent(ctx context.Context, agentID string) (*domain.AgentRecord, error) {
	query := `
		SELECT agent_id, wallet, is_active, registered_at
		FROM agents
		WHERE agent_id = $1
	`

	var a domain.AgentRecord
	err := l.pool.QueryRow(ctx, query, agentID).Scan(
		&a.AgentID,
		&a.Wallet,
		&a.IsActive,
		&a.RegisteredAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("get agent by id: %w", err)
	}
	return &a, nil
}

// GetActiveAgentIDs retrieves ids of all active agents, sorted ascending.
func (l *RegistryLedger) GetActiveAgentIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT agent_id
		FROM agents
		WHERE is_active
		ORDER BY agent_id ASC
	`

	rows, err := l.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get active agent ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent ids: %w", err)
	}
	return ids, nil
}

// Deactivate clears the active flag. Idempotent; ErrNotFound if absent.
func (l *RegistryLedger) Deactivate(ctx context.Context, agentID string) error {
	query := `
		UPDATE agents
		SET is_active = FALSE
		WHERE agent_id = $1
	`

	tag, err := l.pool.Exec(ctx, query, agentID)
	if err != nil {
		return fmt.Errorf("deactivate agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
