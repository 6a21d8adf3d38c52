package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-autopilot/internal/domain"
)

// ComputeEventID computes a deterministic event ID using SHA256.
// Formula: SHA256(kind|mint|signer|signature|slot|observed_at)
// Returns hex-encoded hash (64 characters). The same frame replayed
// through the codec always yields the same ID, which is what the
// per-event dispatch dedup and the archive key on.
func ComputeEventID(
	kind domain.EventKind,
	mint string,
	signer string,
	signature string,
	slot int64,
	observedAt int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		string(kind),
		mint,
		signer,
		signature,
		slot,
		observedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeExecutionID computes a deterministic execution fingerprint using
// SHA256. Formula: SHA256(profile_id|event_id|executed_at)
// The dry-run executor derives synthetic transaction signatures from it.
func ComputeExecutionID(profileID, eventID string, executedAt int64) string {
	data := fmt.Sprintf("%s|%s|%d", profileID, eventID, executedAt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
