package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletStatus represents the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusClosed    WalletStatus = "closed"
)

// Valid reports whether s is a known wallet status.
func (s WalletStatus) Valid() bool {
	switch s {
	case WalletStatusActive, WalletStatusSuspended, WalletStatusClosed:
		return true
	}
	return false
}

// Wallet is a customer's monetary balance within one organization.
// Balance is held in minor units and only changes by applying a Transaction.
type Wallet struct {
	ID             uuid.UUID    `json:"id"`
	OrganizationID uuid.UUID    `json:"organization_id"`
	CustomerID     uuid.UUID    `json:"customer_id"`
	Balance        int64        `json:"balance"`
	Currency       string       `json:"currency"`
	Status         WalletStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NewWallet builds an empty active wallet for the (organization, customer) pair.
func NewWallet(orgID, customerID uuid.UUID, currency string, now time.Time) *Wallet {
	return &Wallet{
		ID:             uuid.New(),
		OrganizationID: orgID,
		CustomerID:     customerID,
		Balance:        0,
		Currency:       currency,
		Status:         WalletStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsActive returns true if the wallet accepts every transaction type.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// Accepts reports whether a transaction of type t may be applied given the
// wallet status. Suspended wallets still receive credits.
func (w *Wallet) Accepts(t TransactionType) bool {
	switch w.Status {
	case WalletStatusActive:
		return true
	case WalletStatusSuspended:
		return t.IsCredit()
	default:
		return false
	}
}

// CanTransitionTo reports whether the wallet may move to next.
// Closed is terminal.
func (w *Wallet) CanTransitionTo(next WalletStatus) bool {
	if !next.Valid() || w.Status == WalletStatusClosed {
		return false
	}
	return w.Status != next
}
