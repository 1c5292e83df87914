package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionTopUp             AuditAction = "WALLET_TOP_UP"
	AuditActionPayment           AuditAction = "WALLET_PAYMENT"
	AuditActionApplyTransaction  AuditAction = "WALLET_APPLY_TRANSACTION"
	AuditActionRedeemCertificate AuditAction = "CERTIFICATE_REDEEM"
	AuditActionWalletStatus      AuditAction = "WALLET_STATUS_CHANGE"
	AuditActionIssueCertificate  AuditAction = "CERTIFICATE_ISSUE"
	AuditActionCancelCertificate AuditAction = "CERTIFICATE_CANCEL"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID *uuid.UUID  `json:"organization_id,omitempty"`
	ActorID        *uuid.UUID  `json:"actor_id,omitempty"`
	ActorRole      string      `json:"actor_role,omitempty"`
	Action         AuditAction `json:"action"`
	ResourceType   string      `json:"resource_type"`
	ResourceID     string      `json:"resource_id,omitempty"`
	Details        string      `json:"details,omitempty"` // JSON string
	IPAddress      string      `json:"ip_address"`
	CreatedAt      time.Time   `json:"created_at"`
}
