package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeMarketID computes a deterministic market_id using SHA256.
// Formula: SHA256(agent_id|metric|comparison|threshold|deadline|creator)
// Returns hex-encoded hash (64 characters).
func ComputeMarketID(
	agentID string,
	metric string,
	comparison string,
	threshold int64,
	deadline int64,
	creator string,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d|%s",
		agentID,
		metric,
		comparison,
		threshold,
		deadline,
		creator,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
