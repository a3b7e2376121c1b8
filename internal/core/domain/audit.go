package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionIssue         AuditAction = "ISSUE"
	AuditActionRedeem        AuditAction = "REDEEM"
	AuditActionRedeemDenied  AuditAction = "REDEEM_DENIED"
	AuditActionChainValidate AuditAction = "CHAIN_VALIDATE"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Subject      string      `json:"subject,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
