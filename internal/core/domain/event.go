package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletEventType names a committed change published to subscribers.
type WalletEventType string

const (
	WalletEventTransaction   WalletEventType = "wallet.transaction"
	WalletEventStatusChanged WalletEventType = "wallet.status_changed"
)

// WalletEvent is the change notification emitted after a commit.
type WalletEvent struct {
	Type           WalletEventType `json:"type"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	WalletID       uuid.UUID       `json:"wallet_id"`
	TransactionID  *uuid.UUID      `json:"transaction_id,omitempty"`
	Balance        int64           `json:"balance"`
	Status         WalletStatus    `json:"status"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// NewTransactionEvent builds the event for a committed ledger entry.
func NewTransactionEvent(w *Wallet, tx *Transaction) WalletEvent {
	id := tx.ID
	return WalletEvent{
		Type:           WalletEventTransaction,
		OrganizationID: w.OrganizationID,
		CustomerID:     w.CustomerID,
		WalletID:       w.ID,
		TransactionID:  &id,
		Balance:        tx.BalanceAfter,
		Status:         w.Status,
		OccurredAt:     tx.CreatedAt,
	}
}
