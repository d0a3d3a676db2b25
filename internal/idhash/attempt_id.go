package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeAttemptID computes a deterministic attempt_id using SHA256.
// Formula: SHA256(wallet_address|content_id|size_bytes|duration_seconds|started_at)
// Returns hex-encoded hash (64 characters).
func ComputeAttemptID(
	walletAddress string,
	contentID string,
	sizeBytes int64,
	durationSeconds int64,
	startedAt int64,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%d",
		walletAddress,
		contentID,
		sizeBytes,
		durationSeconds,
		startedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
