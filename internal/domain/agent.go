package domain

// AgentRecord represents a registered autonomous agent.
// Corresponds to the agents table in the registry ledger.
// Records are created once at registration and never deleted;
// the liveness monitor may clear IsActive for dormant agents.
type AgentRecord struct {
	AgentID      string // PRIMARY KEY, opaque identifier
	Wallet       string // controlling wallet address (base58)
	IsActive     bool   // cleared by the liveness monitor, never re-set here
	RegisteredAt int64  // Unix timestamp in milliseconds
}
