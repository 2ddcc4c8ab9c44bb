// Package idhash computes deterministic record identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeDecisionID computes a deterministic decision id using SHA256.
// Formula: SHA256(symbol|created_at_ms|eval_seq)
// Returns hex-encoded hash (64 characters).
func ComputeDecisionID(symbol string, createdAtMs int64, evalSeq uint64) string {
	data := fmt.Sprintf("%s|%d|%d", symbol, createdAtMs, evalSeq)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
