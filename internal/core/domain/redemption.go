package domain

import (
	"time"

	"github.com/google/uuid"
)

// Redemption marks a payment reference as consumed. It is kept apart from the
// chain, which is never rewritten.
type Redemption struct {
	ID          uuid.UUID `json:"id"`
	ReferenceID string    `json:"reference_id"`
	BlockIndex  uint64    `json:"block_index"`
	BlockHash   Digest    `json:"block_hash"`
	RedeemedBy  string    `json:"redeemed_by,omitempty"`
	RedeemedAt  time.Time `json:"redeemed_at"`
}

// RedemptionResult is returned to the caller after a code is checked.
type RedemptionResult struct {
	Block      Block       `json:"block"`
	Redeemed   bool        `json:"redeemed"`
	Redemption *Redemption `json:"redemption,omitempty"`
	ExpiresAt  *time.Time  `json:"expires_at,omitempty"`
}

// ValidationReport describes the outcome of a full-chain audit.
type ValidationReport struct {
	Valid        bool    `json:"valid"`
	Length       int     `json:"length"`
	FirstInvalid *uint64 `json:"first_invalid,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}
