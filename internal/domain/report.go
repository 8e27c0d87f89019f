package domain

// PartySignature is one computing party's signature over a report digest.
type PartySignature struct {
	SignerIndex int    // position in the registered signer set
	Signature   []byte // ed25519 signature over the report digest
}

// SignedReport is the aggregate consensus artifact submitted to the
// metrics ledger: one digest, one metric snapshot, and a quorum of
// signatures sorted by SignerIndex ascending.
type SignedReport struct {
	ReportID   string // deterministic hash of (agentID, metrics, height)
	AgentID    string
	Height     int64 // finalized height the inputs were read at
	Metrics    *PerformanceMetrics
	Signatures []PartySignature
}
