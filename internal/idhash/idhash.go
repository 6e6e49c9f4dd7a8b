// Package idhash computes deterministic record identifiers so that
// re-running the same operation against the same inputs yields the same ID.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeSnapshotID computes a deterministic snapshot ID.
// Formula: SHA256(curve_id|created_at)
// Returns hex-encoded hash (64 characters).
func ComputeSnapshotID(curveID string, createdAt int64) string {
	data := fmt.Sprintf("%s|%d", curveID, createdAt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputePlanID computes a deterministic distribution plan ID.
// Formula: SHA256(snapshot_id|token_mint|total_tokens)
func ComputePlanID(snapshotID, tokenMint string, totalTokens int64) string {
	data := fmt.Sprintf("%s|%s|%d", snapshotID, tokenMint, totalTokens)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeEventID computes a deterministic trade event ID.
// Formula: SHA256(curve_id|user_id|direction|supply_after|created_at)
func ComputeEventID(curveID, userID, direction string, supplyAfter, createdAt int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d", curveID, userID, direction, supplyAfter, createdAt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
