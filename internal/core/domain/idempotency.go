package domain

import (
	"github.com/google/uuid"
)

// BuildIdempotencyKey constructs the cache key for a referenced ledger entry.
// Format: "wallet_id:reference_type:reference_id".
func BuildIdempotencyKey(walletID uuid.UUID, referenceType, referenceID string) string {
	return walletID.String() + ":" + referenceType + ":" + referenceID
}
