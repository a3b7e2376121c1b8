package domain

import (
	"time"

	"github.com/google/uuid"
)

// SettlementStatus represents the delivery state of a settlement notice.
type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "PENDING"
	SettlementStatusDelivered SettlementStatus = "DELIVERED"
	SettlementStatusFailed    SettlementStatus = "FAILED"
)

// SettlementNotice is the body posted to the funds-movement collaborator
// once a code has been redeemed.
type SettlementNotice struct {
	RedemptionID string `json:"redemption_id"`
	ReferenceID  string `json:"reference_id"`
	BlockIndex   uint64 `json:"block_index"`
	BlockHash    string `json:"block_hash"`
	SenderID     string `json:"sender_id"`
	ReceiverID   string `json:"receiver_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	RedeemedAt   int64  `json:"redeemed_at"`
}

// SettlementDeliveryLog records each delivery attempt of a settlement notice.
type SettlementDeliveryLog struct {
	ID           uuid.UUID        `json:"id"`
	RedemptionID uuid.UUID        `json:"redemption_id"`
	ReferenceID  string           `json:"reference_id"`
	URL          string           `json:"url"`
	Payload      string           `json:"payload"` // JSON string
	HTTPStatus   *int             `json:"http_status"`
	Attempt      int              `json:"attempt"`
	Status       SettlementStatus `json:"status"`
	LastError    *string          `json:"last_error"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
