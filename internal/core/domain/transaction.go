package domain

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of balance movement.
type TransactionType string

const (
	TransactionTypeCredit                TransactionType = "credit"
	TransactionTypeDebit                 TransactionType = "debit"
	TransactionTypeGiftCertificateRedeem TransactionType = "gift_certificate_redeem"
	TransactionTypeRefund                TransactionType = "refund"
	TransactionTypePayment               TransactionType = "payment"
	TransactionTypeTopUp                 TransactionType = "top_up"
)

// Reference types written by the built-in flows.
const (
	ReferenceTypeGiftCertificate = "gift_certificate"
	ReferenceTypeTopUp           = "top_up"
)

// ReferenceOwner returns the transaction type whose built-in flow writes
// refType. Other callers must not use an owned reference type.
func ReferenceOwner(refType string) (TransactionType, bool) {
	switch refType {
	case ReferenceTypeGiftCertificate:
		return TransactionTypeGiftCertificateRedeem, true
	case ReferenceTypeTopUp:
		return TransactionTypeTopUp, true
	}
	return "", false
}

var (
	// ErrNegativeBalance is returned by Apply when a debit would overdraw.
	ErrNegativeBalance = errors.New("balance would become negative")
	// ErrBalanceOverflow is returned by Apply when a credit exceeds int64.
	ErrBalanceOverflow = errors.New("balance would overflow")
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t.IsCredit() || t.IsDebit()
}

// IsCredit reports whether t increases the balance.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionTypeCredit, TransactionTypeGiftCertificateRedeem, TransactionTypeRefund, TransactionTypeTopUp:
		return true
	}
	return false
}

// IsDebit reports whether t decreases the balance.
func (t TransactionType) IsDebit() bool {
	return t == TransactionTypeDebit || t == TransactionTypePayment
}

// Signed returns amount with the sign implied by t.
func (t TransactionType) Signed(amount int64) int64 {
	if t.IsDebit() {
		return -amount
	}
	return amount
}

// Apply returns the balance after applying amount of type t to before.
func (t TransactionType) Apply(before, amount int64) (int64, error) {
	if t.IsCredit() && before > math.MaxInt64-amount {
		return before, ErrBalanceOverflow
	}
	after := before + t.Signed(amount)
	if after < 0 {
		return before, ErrNegativeBalance
	}
	return after, nil
}

// Metadata is an open key-value bag passed through the ledger unopened.
type Metadata map[string]any

// Transaction is an immutable ledger entry. Seq is assigned by storage and
// orders entries of one wallet in commit order.
type Transaction struct {
	ID                 uuid.UUID       `json:"id"`
	Seq                int64           `json:"seq"`
	WalletID           uuid.UUID       `json:"wallet_id"`
	OrganizationID     uuid.UUID       `json:"organization_id"`
	CustomerID         uuid.UUID       `json:"customer_id"`
	Type               TransactionType `json:"type"`
	Amount             int64           `json:"amount"`
	Description        string          `json:"description"`
	ReferenceType      *string         `json:"reference_type,omitempty"`
	ReferenceID        *string         `json:"reference_id,omitempty"`
	BalanceBefore      int64           `json:"balance_before"`
	BalanceAfter       int64           `json:"balance_after"`
	Metadata           Metadata        `json:"metadata,omitempty"`
	ProcessedByStaffID *uuid.UUID      `json:"processed_by_staff_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// HasReference reports whether the entry carries a full idempotency reference.
func (t *Transaction) HasReference() bool {
	return t.ReferenceType != nil && *t.ReferenceType != "" &&
		t.ReferenceID != nil && *t.ReferenceID != ""
}

// SignedAmount is the entry's contribution to the wallet balance.
func (t *Transaction) SignedAmount() int64 {
	return t.Type.Signed(t.Amount)
}

// ReplayBalance sums the signed amounts of txns. Input order does not matter.
func ReplayBalance(txns []Transaction) int64 {
	var total int64
	for i := range txns {
		total += txns[i].SignedAmount()
	}
	return total
}
