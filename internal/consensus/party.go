package consensus

import (
	"crypto/ed25519"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/engine"
	"agent-performance-lab/internal/idhash"
)

// Party is one independent computing node: it runs the metric engine
// over the shared pinned snapshot and signs the resulting digest.
type Party struct {
	index int
	key   ed25519.PrivateKey
}

// NewParty creates a party with its registered signer index.
func NewParty(index int, key ed25519.PrivateKey) *Party {
	return &Party{index: index, key: key}
}

// Index returns the party's position in the registered signer set.
func (p *Party) Index() int { return p.index }

// PartyOutput is one party's computation result over a snapshot.
type PartyOutput struct {
	SignerIndex int
	ReportID    string
	Metrics     *domain.PerformanceMetrics
	Changed     bool
	Signature   domain.PartySignature
}

// Compute runs the engine over the snapshot and signs the digest.
// The computation itself is the shared pure function; only the signature
// differs between parties.
func (p *Party) Compute(snap *domain.ComputationSnapshot) *PartyOutput {
	metrics, changed := engine.Compute(snap)
	reportID := idhash.ComputeReportID(metrics.AgentID, snap.Height, metrics)

	return &PartyOutput{
		SignerIndex: p.index,
		ReportID:    reportID,
		Metrics:     metrics,
		Changed:     changed,
		Signature: domain.PartySignature{
			SignerIndex: p.index,
			Signature:   ed25519.Sign(p.key, []byte(reportID)),
		},
	}
}
