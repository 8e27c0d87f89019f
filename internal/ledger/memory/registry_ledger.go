package memory

import (
	"context"
	"sort"
	"sync"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
)

// RegistryLedger is an in-memory implementation of ledger.RegistryLedger.
type RegistryLedger struct {
	mu   sync.RWMutex
	data map[string]*domain.AgentRecord // keyed by agent_id
}

// NewRegistryLedger creates a new in-memory registry ledger.
func NewRegistryLedger() *RegistryLedger {
	return &RegistryLedger{
		data: make(map[string]*domain.AgentRecord),
	}
}

// Register adds a new agent. Returns ErrDuplicateKey if agent_id exists.
func (l *RegistryLedger) Register(_ context.Context, a *domain.AgentRecord) error {
	if a == nil || a.AgentID == "" {
		return ledger.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.data[a.AgentID]; exists {
		return ledger.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	record := *a
	l.data[a.AgentID] = &record
	return nil
}

// GetAgent retrieves an agent by id. Returns ErrNotFound if not exists.
func (l *RegistryLedger) GetAgent(_ context.Context, agentID string) (*domain.AgentRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, exists := l.data[agentID]
	if !exists {
		return nil, ledger.ErrNotFound
	}

	record := *a
	return &record, nil
}

// GetActiveAgentIDs retrieves ids of all active agents, sorted ascending.
func (l *RegistryLedger) GetActiveAgentIDs(_ context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var ids []string
	for id, a := range l.data {
		if a.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Deactivate clears the active flag. Idempotent; ErrNotFound if absent.
func (l *RegistryLedger) Deactivate(_ context.Context, agentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, exists := l.data[agentID]
	if !exists {
		return ledger.ErrNotFound
	}
	a.IsActive = false
	return nil
}

// Verify interface compliance at compile time.
var _ ledger.RegistryLedger = (*RegistryLedger)(nil)
