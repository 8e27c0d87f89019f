// Package consensus wraps engine outputs in quorum-signed reports and
// submits exactly one ledger mutation per accepted report. It assumes
// the underlying BFT signing primitive (here: a registered ed25519
// signer set with an m-of-n threshold) and specifies only how this
// system uses it.
package consensus

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/idhash"
)

// Consensus errors.
var (
	// ErrNoQuorum is returned when fewer than threshold valid signatures
	// are present.
	ErrNoQuorum = errors.New("insufficient signatures for quorum")

	// ErrDivergentOutputs is returned when independent parties computed
	// different results from the same pinned snapshot.
	ErrDivergentOutputs = errors.New("party outputs diverge")

	// ErrUnknownSigner is returned for a signature by an index outside
	// the registered set.
	ErrUnknownSigner = errors.New("unknown signer index")

	// ErrBadSignature is returned when a signature fails verification.
	ErrBadSignature = errors.New("signature verification failed")

	// ErrDigestMismatch is returned when a report's digest does not match
	// its own metrics payload.
	ErrDigestMismatch = errors.New("report digest does not match payload")

	// ErrInvalidPublicKey is returned for non-canonical or low-order keys
	// at signer-set construction.
	ErrInvalidPublicKey = errors.New("invalid ed25519 public key")
)

// SignerSet is the registered set of computing-party public keys plus
// the quorum threshold. It is the single verification authority every
// gated ledger write goes through.
type SignerSet struct {
	keys      []ed25519.PublicKey
	threshold int
}

// NewSignerSet validates and registers the party public keys.
// Keys must be canonical edwards25519 encodings and must not be
// low-order points; either defect would let a signature verify under
// more than one key.
func NewSignerSet(keys []ed25519.PublicKey, threshold int) (*SignerSet, error) {
	if threshold < 1 || threshold > len(keys) {
		return nil, fmt.Errorf("threshold %d out of range for %d signers", threshold, len(keys))
	}

	identity := edwards25519.NewIdentityPoint()
	for i, key := range keys {
		point, err := new(edwards25519.Point).SetBytes(key)
		if err != nil {
			return nil, fmt.Errorf("signer %d: %w: %v", i, ErrInvalidPublicKey, err)
		}
		cofactorCleared := new(edwards25519.Point).MultByCofactor(point)
		if cofactorCleared.Equal(identity) == 1 {
			return nil, fmt.Errorf("signer %d: %w: low-order point", i, ErrInvalidPublicKey)
		}
	}

	registered := make([]ed25519.PublicKey, len(keys))
	copy(registered, keys)
	return &SignerSet{keys: registered, threshold: threshold}, nil
}

// Size returns the number of registered signers.
func (s *SignerSet) Size() int { return len(s.keys) }

// Threshold returns the quorum threshold.
func (s *SignerSet) Threshold() int { return s.threshold }

// Address returns the base58 form of a registered signer key, the
// convention wallet-facing surfaces use for signer identity.
func (s *SignerSet) Address(index int) (string, error) {
	if index < 0 || index >= len(s.keys) {
		return "", ErrUnknownSigner
	}
	return base58.Encode(s.keys[index]), nil
}

// VerifyReport checks the full aggregate report: the digest must match
// the metrics payload, signer indexes must be strictly ascending with no
// duplicates, every signature must verify, and at least threshold
// signatures must be present. A report that fails any check mutates
// nothing downstream.
func (s *SignerSet) VerifyReport(report *domain.SignedReport) error {
	if report == nil || report.Metrics == nil {
		return ErrDigestMismatch
	}

	expected := idhash.ComputeReportID(report.AgentID, report.Height, report.Metrics)
	if report.ReportID != expected {
		return ErrDigestMismatch
	}

	if len(report.Signatures) < s.threshold {
		return ErrNoQuorum
	}

	message := []byte(report.ReportID)
	prev := -1
	for _, sig := range report.Signatures {
		if sig.SignerIndex <= prev {
			return fmt.Errorf("%w: indexes must be strictly ascending", ErrBadSignature)
		}
		prev = sig.SignerIndex

		if sig.SignerIndex < 0 || sig.SignerIndex >= len(s.keys) {
			return ErrUnknownSigner
		}
		if !ed25519.Verify(s.keys[sig.SignerIndex], message, sig.Signature) {
			return fmt.Errorf("%w: signer %d", ErrBadSignature, sig.SignerIndex)
		}
	}

	return nil
}
